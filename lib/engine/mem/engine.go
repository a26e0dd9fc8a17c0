package mem

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/MoonlightOffice/IDBWrapper/lib/engine"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("engine/mem")

// --------------------------------------------------------------------------
// Engine
// --------------------------------------------------------------------------

// EngineOptions configures the mem engine during initialization
type EngineOptions struct {
	QueueSize int // Request queue size per connection (0 = use default)
}

// DefaultOptions returns the default mem engine options
func DefaultOptions() *EngineOptions {
	return &EngineOptions{
		QueueSize: 64,
	}
}

// engineImpl is a process-local, in-memory implementation of
// engine.Engine. Databases live in concurrent maps and disappear with the
// process. It exists as a test double for the persistent engines and for
// cache-style deployments that do not need durability.
type engineImpl struct {
	queueSize int
	dbs       *xsync.MapOf[string, *database]
}

// NewEngine creates a new in-memory engine with the specified options
// (optional).
func NewEngine(opts *EngineOptions) engine.Engine {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultOptions().QueueSize
	}
	return &engineImpl{
		queueSize: opts.QueueSize,
		dbs:       xsync.NewMapOf[string, *database](),
	}
}

// database is one named in-memory database: a version and a mutable set of
// stores. The mutex only guards Open (version check + schema
// reconciliation); data access goes through the stores' own concurrent
// maps.
type database struct {
	mu      sync.Mutex
	version uint64
	stores  *xsync.MapOf[string, *memStore]
}

// memStore holds the records of one store
type memStore struct {
	data *xsync.MapOf[string, []byte]
}

// --------------------------------------------------------------------------
// Engine Interface Methods (docu see engine.Engine)
// --------------------------------------------------------------------------

func (e *engineImpl) Open(name string, version uint64, reconcile engine.ReconcileFunc) (engine.Conn, error) {
	if name == "" {
		return nil, fmt.Errorf("engine/mem: empty database name")
	}

	db, _ := e.dbs.LoadOrCompute(name, func() *database {
		return &database{stores: xsync.NewMapOf[string, *memStore]()}
	})

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.version > version {
		return nil, fmt.Errorf("%w: stored v%d, requested v%d", engine.ErrVersionMismatch, db.version, version)
	}

	if db.version < version {
		if reconcile != nil {
			if err := reconcile(&schemaTxn{db: db}, db.version, version); err != nil {
				return nil, fmt.Errorf("engine/mem: reconciling schema: %w", err)
			}
		}
		db.version = version
	}

	storeSet := make(map[string]struct{})
	db.stores.Range(func(name string, _ *memStore) bool {
		storeSet[name] = struct{}{}
		return true
	})

	log.Debugf("opened database %q at v%d (%d stores)", name, version, len(storeSet))

	return &connImpl{
		name:   name,
		db:     db,
		stores: storeSet,
		disp:   engine.NewDispatcher(e.queueSize),
	}, nil
}

func (e *engineImpl) DeleteDatabase(name string) *engine.Request {
	req := engine.NewRequest()
	go func() {
		// Open connections hold their own *database pointer and stay
		// detached on the removed data; only later Opens see the deletion
		e.dbs.Delete(name)
		req.Succeed()
	}()
	return req
}

// --------------------------------------------------------------------------
// Upgrade Transaction
// --------------------------------------------------------------------------

type schemaTxn struct {
	db *database
}

func (s *schemaTxn) StoreNames() []string {
	var names []string
	s.db.stores.Range(func(name string, _ *memStore) bool {
		names = append(names, name)
		return true
	})
	return names
}

func (s *schemaTxn) CreateStore(name string) error {
	if name == "" {
		return fmt.Errorf("engine/mem: invalid store name %q", name)
	}
	s.db.stores.LoadOrCompute(name, func() *memStore {
		return &memStore{data: xsync.NewMapOf[string, []byte]()}
	})
	return nil
}

func (s *schemaTxn) DeleteStore(name string) error {
	s.db.stores.Delete(name)
	return nil
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

type connImpl struct {
	name      string
	db        *database
	stores    map[string]struct{}
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

func (c *connImpl) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.disp.Close()
		log.Debugf("closed database %q", c.name)
	})
	return nil
}

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

type txnImpl struct {
	conn  *connImpl
	store string
	mode  engine.Mode
}

// resolve looks the transaction's store up in the live schema. The store
// may have been dropped by a later upgrade on another connection.
func (t *txnImpl) resolve() (*memStore, error) {
	ms, ok := t.conn.db.stores.Load(t.store)
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrStoreNotFound, t.store)
	}
	return ms, nil
}

func (t *txnImpl) submit(req *engine.Request, job engine.Job) *engine.Request {
	if !t.conn.disp.Submit(job) {
		req.Fail(engine.ErrConnClosed)
	}
	return req
}

func (t *txnImpl) Read(key string) *engine.Request {
	req := engine.NewRequest()
	return t.submit(req, func() {
		ms, err := t.resolve()
		if err != nil {
			req.Fail(err)
			return
		}
		raw, found := ms.data.Load(key)
		if !found {
			req.SucceedValue(nil, false)
			return
		}
		// Copy out so callers can't corrupt the stored value
		value := make([]byte, len(raw))
		copy(value, raw)
		req.SucceedValue(value, true)
	})
}

func (t *txnImpl) Write(key string, value []byte) *engine.Request {
	req := engine.NewRequest()
	if t.mode != engine.ReadWrite {
		req.Fail(engine.ErrReadOnlyTxn)
		return req
	}
	return t.submit(req, func() {
		ms, err := t.resolve()
		if err != nil {
			req.Fail(err)
			return
		}
		stored := make([]byte, len(value))
		copy(stored, value)
		ms.data.Store(key, stored)
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
		ms, err := t.resolve()
		if err != nil {
			req.Fail(err)
			return
		}
		// Deleting an absent key is a no-op
		ms.data.Delete(key)
		req.Succeed()
	})
}

func (t *txnImpl) ListKeys() *engine.Request {
	req := engine.NewRequest()
	return t.submit(req, func() {
		ms, err := t.resolve()
		if err != nil {
			req.Fail(err)
			return
		}
		var keys []string
		ms.data.Range(func(key string, _ []byte) bool {
			keys = append(keys, key)
			return true
		})
		// Deterministic key order, matching the persistent engines
		sort.Strings(keys)
		req.SucceedKeys(keys)
	})
}
