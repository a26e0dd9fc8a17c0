package bolt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MoonlightOffice/IDBWrapper/lib/engine"
	"github.com/MoonlightOffice/IDBWrapper/lib/engine/codec"
	"github.com/lni/dragonboat/v4/logger"
	bolt "go.etcd.io/bbolt"
)

var log = logger.GetLogger("engine/bolt")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

var (
	metaBucket = []byte("__meta")  // schema bookkeeping, hidden from store listings
	versionKey = []byte("version") // stored schema version (uint64, big endian)
)

// --------------------------------------------------------------------------
// Engine Options and Setup
// --------------------------------------------------------------------------

// EngineOptions configures the bolt engine during initialization
type EngineOptions struct {
	Dir         string             // Directory holding one file per database
	FileMode    os.FileMode        // Database file mode (0 = 0600)
	OpenTimeout time.Duration      // How long Open waits for the file lock (0 = use default)
	Codec       codec.IRecordCodec // Record envelope codec (nil = binary)
	QueueSize   int                // Request queue size per connection (0 = use default)
}

// DefaultOptions returns the default engine options for the given directory
func DefaultOptions(dir string) *EngineOptions {
	return &EngineOptions{
		Dir:         dir,
		FileMode:    0600,
		OpenTimeout: time.Second,
		Codec:       codec.NewBinaryCodec(),
		QueueSize:   64,
	}
}

// engineImpl implements engine.Engine on top of bbolt: one file per
// database, one bucket per store, a meta bucket carrying the schema
// version. bbolt's exclusive file lock provides the "blocked by another
// connection" semantics: a second Open of the same database fails once the
// lock wait times out.
type engineImpl struct {
	dir         string
	fileMode    os.FileMode
	openTimeout time.Duration
	codec       codec.IRecordCodec
	queueSize   int
}

// NewEngine creates a new bolt-backed engine with the specified options
// (optional).
func NewEngine(opts *EngineOptions) engine.Engine {
	defaults := DefaultOptions("")
	if opts == nil {
		opts = defaults
	}
	if opts.FileMode == 0 {
		opts.FileMode = defaults.FileMode
	}
	if opts.OpenTimeout == 0 {
		opts.OpenTimeout = defaults.OpenTimeout
	}
	if opts.Codec == nil {
		opts.Codec = defaults.Codec
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaults.QueueSize
	}
	return &engineImpl{
		dir:         opts.Dir,
		fileMode:    opts.FileMode,
		openTimeout: opts.OpenTimeout,
		codec:       opts.Codec,
		queueSize:   opts.QueueSize,
	}
}

// path returns the database file for a database name
func (e *engineImpl) path(name string) string {
	return filepath.Join(e.dir, name+".db")
}

// --------------------------------------------------------------------------
// Engine Interface Methods (docu see engine.Engine)
// --------------------------------------------------------------------------

func (e *engineImpl) Open(name string, version uint64, reconcile engine.ReconcileFunc) (engine.Conn, error) {
	if name == "" {
		return nil, fmt.Errorf("engine/bolt: empty database name")
	}

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("engine/bolt: creating data directory: %w", err)
	}

	db, err := bolt.Open(e.path(name), e.fileMode, &bolt.Options{Timeout: e.openTimeout})
	if err != nil {
		return nil, fmt.Errorf("engine/bolt: opening database %q: %w", name, err)
	}

	// Version check and schema reconciliation run in one update
	// transaction: this is the upgrade transaction, the only place where
	// buckets are created or deleted.
	var stores []string
	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return fmt.Errorf("engine/bolt: creating meta bucket: %w", err)
		}

		stored := uint64(0)
		if raw := meta.Get(versionKey); len(raw) == 8 {
			stored = binary.BigEndian.Uint64(raw)
		}

		if stored > version {
			return fmt.Errorf("%w: stored v%d, requested v%d", engine.ErrVersionMismatch, stored, version)
		}

		if stored < version {
			if reconcile != nil {
				if err := reconcile(&schemaTxn{tx: tx}, stored, version); err != nil {
					return fmt.Errorf("engine/bolt: reconciling schema: %w", err)
				}
			}
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, version)
			if err := meta.Put(versionKey, buf); err != nil {
				return fmt.Errorf("engine/bolt: storing version: %w", err)
			}
		}

		stores = bucketNames(tx)
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Infof("opened database %q at v%d (%d stores)", name, version, len(stores))

	storeSet := make(map[string]struct{}, len(stores))
	for _, s := range stores {
		storeSet[s] = struct{}{}
	}

	return &connImpl{
		name:   name,
		db:     db,
		stores: storeSet,
		codec:  e.codec,
		disp:   engine.NewDispatcher(e.queueSize),
	}, nil
}

func (e *engineImpl) DeleteDatabase(name string) *engine.Request {
	req := engine.NewRequest()
	go func() {
		// Unlinking detaches any open connection: it keeps reading and
		// writing the removed file until it closes, while later Opens
		// create the database fresh
		err := os.Remove(e.path(name))
		if err != nil && !os.IsNotExist(err) {
			log.Warningf("deleting database %q: %v", name, err)
			req.Fail(fmt.Errorf("engine/bolt: deleting database %q: %w", name, err))
			return
		}
		req.Succeed()
	}()
	return req
}

// --------------------------------------------------------------------------
// Upgrade Transaction
// --------------------------------------------------------------------------

// schemaTxn exposes bucket management of a single bolt update transaction
// as the engine's upgrade transaction. The meta bucket is invisible and
// protected.
type schemaTxn struct {
	tx *bolt.Tx
}

func (s *schemaTxn) StoreNames() []string {
	return bucketNames(s.tx)
}

func (s *schemaTxn) CreateStore(name string) error {
	if name == "" || bytes.Equal([]byte(name), metaBucket) {
		return fmt.Errorf("engine/bolt: invalid store name %q", name)
	}
	if _, err := s.tx.CreateBucketIfNotExists([]byte(name)); err != nil {
		return fmt.Errorf("engine/bolt: creating store %q: %w", name, err)
	}
	return nil
}

func (s *schemaTxn) DeleteStore(name string) error {
	if bytes.Equal([]byte(name), metaBucket) {
		return fmt.Errorf("engine/bolt: invalid store name %q", name)
	}
	err := s.tx.DeleteBucket([]byte(name))
	if err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
		return fmt.Errorf("engine/bolt: deleting store %q: %w", name, err)
	}
	return nil
}

// bucketNames lists all top-level buckets except the meta bucket
func bucketNames(tx *bolt.Tx) []string {
	var names []string
	_ = tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
		if !bytes.Equal(name, metaBucket) {
			names = append(names, string(name))
		}
		return nil
	})
	return names
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// connImpl owns one open bolt database. All requests funnel through a
// single dispatcher; each request runs its own bolt View/Update
// transaction, so every logical operation is independently atomic.
type connImpl struct {
	name      string
	db        *bolt.DB
	stores    map[string]struct{}
	codec     codec.IRecordCodec
	disp      *engine.Dispatcher
	closed    atomic.Bool
	closeOnce sync.Once
}

func (c *connImpl) Transact(store string, mode engine.Mode) (engine.Txn, error) {
	if c.closed.Load() {
		return nil, engine.ErrConnClosed
	}
	if _, ok := c.stores[store]; !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrStoreNotFound, store)
	}
	return &txnImpl{conn: c, store: store, mode: mode}, nil
}

func (c *connImpl) StoreNames() []string {
	names := make([]string, 0, len(c.stores))
	for name := range c.stores {
		names = append(names, name)
	}
	return names
}

// Close marks the connection closed, drains requests that were already
// accepted and releases the database file. Close is idempotent.
func (c *connImpl) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.disp.Close()
		if err := c.db.Close(); err != nil {
			log.Errorf("closing database %q: %v", c.name, err)
		}
		log.Debugf("closed database %q", c.name)
	})
	return nil
}

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

// txnImpl is a single-store transaction descriptor. Each request maps to
// one bolt transaction executed on the connection's dispatcher.
type txnImpl struct {
	conn  *connImpl
	store string
	mode  engine.Mode
}

// bucket resolves the transaction's store inside a running bolt transaction
func (t *txnImpl) bucket(btx *bolt.Tx) (*bolt.Bucket, error) {
	b := btx.Bucket([]byte(t.store))
	if b == nil {
		return nil, fmt.Errorf("%w: %q", engine.ErrStoreNotFound, t.store)
	}
	return b, nil
}

// submit schedules a job and converts a rejected submission into a failed
// request, so callers always get their notification.
func (t *txnImpl) submit(req *engine.Request, job engine.Job) *engine.Request {
	if !t.conn.disp.Submit(job) {
		req.Fail(engine.ErrConnClosed)
	}
	return req
}

func (t *txnImpl) Read(key string) *engine.Request {
	req := engine.NewRequest()
	return t.submit(req, func() {
		var (
			value []byte
			found bool
		)
		err := t.conn.db.View(func(btx *bolt.Tx) error {
			b, err := t.bucket(btx)
			if err != nil {
				return err
			}
			raw := b.Get([]byte(key))
			if raw == nil {
				return nil
			}
			var rec engine.Record
			if err := t.conn.codec.Decode(raw, &rec); err != nil {
				return fmt.Errorf("engine/bolt: decoding record %q: %w", key, err)
			}
			value, found = rec.Value, true
			return nil
		})
		if err != nil {
			req.Fail(err)
			return
		}
		req.SucceedValue(value, found)
	})
}

func (t *txnImpl) Write(key string, value []byte) *engine.Request {
	req := engine.NewRequest()
	if t.mode != engine.ReadWrite {
		req.Fail(engine.ErrReadOnlyTxn)
		return req
	}
	return t.submit(req, func() {
		err := t.conn.db.Update(func(btx *bolt.Tx) error {
			b, err := t.bucket(btx)
			if err != nil {
				return err
			}
			raw, err := t.conn.codec.Encode(engine.Record{Key: key, Value: value})
			if err != nil {
				return fmt.Errorf("engine/bolt: encoding record %q: %w", key, err)
			}
			return b.Put([]byte(key), raw)
		})
		if err != nil {
			req.Fail(err)
			return
		}
		req.Succeed()
	})
}

func (t *txnImpl) Delete(key string) *engine.Request {
	req := engine.NewRequest()
	if t.mode != engine.ReadWrite {
		req.Fail(engine.ErrReadOnlyTxn)
		return req
	}
	return t.submit(req, func() {
		err := t.conn.db.Update(func(btx *bolt.Tx) error {
			b, err := t.bucket(btx)
			if err != nil {
				return err
			}
			// bolt treats deleting an absent key as a no-op
			return b.Delete([]byte(key))
		})
		if err != nil {
			req.Fail(err)
			return
		}
		req.Succeed()
	})
}

func (t *txnImpl) ListKeys() *engine.Request {
	req := engine.NewRequest()
	return t.submit(req, func() {
		var keys []string
		err := t.conn.db.View(func(btx *bolt.Tx) error {
			b, err := t.bucket(btx)
			if err != nil {
				return err
			}
			return b.ForEach(func(k, _ []byte) error {
				keys = append(keys, string(k))
				return nil
			})
		})
		if err != nil {
			req.Fail(err)
			return
		}
		req.SucceedKeys(keys)
	})
}
