package store

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/MoonlightOffice/IDBWrapper/lib/engine"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// Per-operation request counters, split by outcome. Failures cover every
// sentinel return: closed handle, unknown store, engine error, expired
// context.
var (
	connectsTotal   = metrics.GetOrCreateCounter(`idb_connects_total`)
	connectFailures = metrics.GetOrCreateCounter(`idb_connect_failures_total`)

	getCalls     = metrics.GetOrCreateCounter(`idb_requests_total{op="get"}`)
	getFailures  = metrics.GetOrCreateCounter(`idb_request_failures_total{op="get"}`)
	putCalls     = metrics.GetOrCreateCounter(`idb_requests_total{op="put"}`)
	putFailures  = metrics.GetOrCreateCounter(`idb_request_failures_total{op="put"}`)
	delCalls     = metrics.GetOrCreateCounter(`idb_requests_total{op="delete"}`)
	delFailures  = metrics.GetOrCreateCounter(`idb_request_failures_total{op="delete"}`)
	keysCalls    = metrics.GetOrCreateCounter(`idb_requests_total{op="getallkeys"}`)
	keysFailures = metrics.GetOrCreateCounter(`idb_request_failures_total{op="getallkeys"}`)
	hasCalls     = metrics.GetOrCreateCounter(`idb_requests_total{op="iskeyexist"}`)
	hasFailures  = metrics.GetOrCreateCounter(`idb_request_failures_total{op="iskeyexist"}`)
)

// --------------------------------------------------------------------------
// Connection Manager
// --------------------------------------------------------------------------

// Connect opens (or creates) the configured database on the given engine
// and returns a ready-to-use handle. If the stored schema version is below
// cfg.Version, the database is rebuilt inside the engine's upgrade
// transaction: every existing store is dropped and the declared stores are
// created empty. Equal versions leave all data untouched; a stored version
// above cfg.Version fails the Connect.
func Connect(eng engine.Engine, cfg Config) (IStore, error) {
	if eng == nil {
		return nil, NewError(RetCInvalidConfig, "engine must not be nil")
	}
	if cfg.DBName == "" {
		return nil, NewError(RetCInvalidConfig, "database name must not be empty")
	}
	if cfg.Version == 0 {
		return nil, NewError(RetCInvalidConfig, "version must be at least 1")
	}

	connectsTotal.Inc()

	conn, err := eng.Open(cfg.DBName, cfg.Version, func(txn engine.SchemaTxn, oldVersion, newVersion uint64) error {
		// Destructive reset: the declared store set fully replaces
		// whatever the database contained before.
		for _, name := range txn.StoreNames() {
			if err := txn.DeleteStore(name); err != nil {
				return fmt.Errorf("dropping store %q: %w", name, err)
			}
		}
		for _, name := range cfg.Stores {
			if err := txn.CreateStore(name); err != nil {
				return fmt.Errorf("creating store %q: %w", name, err)
			}
		}
		log.Infof("rebuilt database %q: v%d -> v%d (%d stores)", cfg.DBName, oldVersion, newVersion, len(cfg.Stores))
		return nil
	})
	if err != nil {
		connectFailures.Inc()
		log.Errorf("connecting to %q failed: %v", cfg.DBName, err)
		return nil, NewError(RetCConnectFailed, err.Error())
	}

	return &storeImpl{conn: conn}, nil
}

// DeleteDatabase removes the named database from the engine and reports
// whether the deletion completed in time. Deleting a database that does
// not exist succeeds.
func DeleteDatabase(ctx context.Context, eng engine.Engine, name string) bool {
	if err := eng.DeleteDatabase(name).Await(ctx); err != nil {
		log.Errorf("deleting database %q failed: %v", name, err)
		return false
	}
	return true
}

// --------------------------------------------------------------------------
// Operation Adapter
// --------------------------------------------------------------------------

// storeImpl adapts the engine's request-based transactions to the blocking
// IStore operations. Each call opens one single-store transaction, issues
// one request and awaits it.
//
// Thread-safety: all methods are safe for concurrent use; Close may race
// with in-flight operations, which then resolve to their sentinel values.
type storeImpl struct {
	conn   engine.Conn
	closed atomic.Bool
}

// transact guards every operation: a closed handle never reaches the
// engine.
func (s *storeImpl) transact(store string, mode engine.Mode) (engine.Txn, error) {
	if s.closed.Load() {
		return nil, engine.ErrConnClosed
	}
	return s.conn.Transact(store, mode)
}

func (s *storeImpl) GetAllKeys(ctx context.Context, store string) []string {
	keysCalls.Inc()

	txn, err := s.transact(store, engine.ReadOnly)
	if err != nil {
		keysFailures.Inc()
		log.Debugf("getallkeys %q: %v", store, err)
		return []string{}
	}

	req := txn.ListKeys()
	if err := req.Await(ctx); err != nil {
		keysFailures.Inc()
		log.Debugf("getallkeys %q: %v", store, err)
		return []string{}
	}

	keys := req.Keys()
	if keys == nil {
		keys = []string{}
	}
	return keys
}

func (s *storeImpl) IsKeyExist(ctx context.Context, store, key string) bool {
	hasCalls.Inc()

	txn, err := s.transact(store, engine.ReadOnly)
	if err != nil {
		hasFailures.Inc()
		log.Debugf("iskeyexist %q/%q: %v", store, key, err)
		return false
	}

	req := txn.Read(key)
	if err := req.Await(ctx); err != nil {
		hasFailures.Inc()
		log.Debugf("iskeyexist %q/%q: %v", store, key, err)
		return false
	}

	_, loaded := req.Value()
	return loaded
}

func (s *storeImpl) Get(ctx context.Context, store, key string) ([]byte, bool) {
	getCalls.Inc()

	txn, err := s.transact(store, engine.ReadOnly)
	if err != nil {
		getFailures.Inc()
		log.Debugf("get %q/%q: %v", store, key, err)
		return nil, false
	}

	req := txn.Read(key)
	if err := req.Await(ctx); err != nil {
		getFailures.Inc()
		log.Debugf("get %q/%q: %v", store, key, err)
		return nil, false
	}

	return req.Value()
}

func (s *storeImpl) Put(ctx context.Context, store, key string, value []byte) bool {
	putCalls.Inc()

	txn, err := s.transact(store, engine.ReadWrite)
	if err != nil {
		putFailures.Inc()
		log.Debugf("put %q/%q: %v", store, key, err)
		return false
	}

	if err := txn.Write(key, value).Await(ctx); err != nil {
		putFailures.Inc()
		log.Debugf("put %q/%q: %v", store, key, err)
		return false
	}

	return true
}

func (s *storeImpl) Delete(ctx context.Context, store, key string) bool {
	delCalls.Inc()

	txn, err := s.transact(store, engine.ReadWrite)
	if err != nil {
		delFailures.Inc()
		log.Debugf("delete %q/%q: %v", store, key, err)
		return false
	}

	if err := txn.Delete(key).Await(ctx); err != nil {
		delFailures.Inc()
		log.Debugf("delete %q/%q: %v", store, key, err)
		return false
	}

	return true
}

func (s *storeImpl) Close() {
	if s.closed.CompareAndSwap(false, true) {
		if err := s.conn.Close(); err != nil {
			log.Warningf("closing connection: %v", err)
		}
	}
}
