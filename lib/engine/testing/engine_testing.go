package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/MoonlightOffice/IDBWrapper/lib/engine"
)

// EngineFactory is a function that creates a new instance of an engine
// implementation. Every call must return an independent engine; databases
// created through one factory result may be reopened through the same
// result.
type EngineFactory func() engine.Engine

// RunEngineTests runs a conformance test suite for an engine implementation.
func RunEngineTests(t *testing.T, name string, factory EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("OpenCreatesStores", func(t *testing.T) {
			testOpenCreatesStores(t, factory())
		})

		t.Run("WriteRead", func(t *testing.T) {
			testWriteRead(t, factory())
		})

		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, factory())
		})

		t.Run("DeleteKey", func(t *testing.T) {
			testDeleteKey(t, factory())
		})

		t.Run("ListKeys", func(t *testing.T) {
			testListKeys(t, factory())
		})

		t.Run("ReadOnlyMode", func(t *testing.T) {
			testReadOnlyMode(t, factory())
		})

		t.Run("UnknownStore", func(t *testing.T) {
			testUnknownStore(t, factory())
		})

		t.Run("SameVersionKeepsData", func(t *testing.T) {
			testSameVersionKeepsData(t, factory())
		})

		t.Run("UpgradeResetsStores", func(t *testing.T) {
			testUpgradeResetsStores(t, factory())
		})

		t.Run("VersionDowngrade", func(t *testing.T) {
			testVersionDowngrade(t, factory())
		})

		t.Run("CloseSemantics", func(t *testing.T) {
			testCloseSemantics(t, factory())
		})

		t.Run("DeleteDatabase", func(t *testing.T) {
			testDeleteDatabase(t, factory())
		})

		t.Run("ConcurrentRequests", func(t *testing.T) {
			testConcurrentRequests(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// resetReconcile is the destructive reconciliation policy of the store
// facade: drop everything, create exactly the target stores.
func resetReconcile(stores ...string) engine.ReconcileFunc {
	return func(txn engine.SchemaTxn, _, _ uint64) error {
		for _, name := range txn.StoreNames() {
			if err := txn.DeleteStore(name); err != nil {
				return err
			}
		}
		for _, name := range stores {
			if err := txn.CreateStore(name); err != nil {
				return err
			}
		}
		return nil
	}
}

// open connects to a database with the reset policy and fails the test on
// error.
func open(t testing.TB, eng engine.Engine, name string, version uint64, stores ...string) engine.Conn {
	t.Helper()
	conn, err := eng.Open(name, version, resetReconcile(stores...))
	if err != nil {
		t.Fatalf("Open(%q, v%d) failed: %v", name, version, err)
	}
	return conn
}

// await waits for a request to succeed and fails the test otherwise.
func await(t testing.TB, req *engine.Request) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := req.Await(ctx); err != nil {
		t.Fatalf("request failed: %v", err)
	}
}

// awaitErr waits for a request and returns its error (nil on success).
func awaitErr(t testing.TB, req *engine.Request) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return req.Await(ctx)
}

// txn opens a transaction and fails the test on error.
func txn(t testing.TB, conn engine.Conn, store string, mode engine.Mode) engine.Txn {
	t.Helper()
	tx, err := conn.Transact(store, mode)
	if err != nil {
		t.Fatalf("Transact(%q, %s) failed: %v", store, mode, err)
	}
	return tx
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testOpenCreatesStores(t *testing.T, eng engine.Engine) {
	conn := open(t, eng, "testdb", 1, "alpha", "beta")
	defer conn.Close()

	names := conn.StoreNames()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("Expected stores [alpha beta], got %v", names)
	}
}

func testWriteRead(t *testing.T, eng engine.Engine) {
	conn := open(t, eng, "testdb", 1, "s")
	defer conn.Close()

	testValue := []byte("test-value")

	await(t, txn(t, conn, "s", engine.ReadWrite).Write("k", testValue))

	req := txn(t, conn, "s", engine.ReadOnly).Read("k")
	await(t, req)
	value, found := req.Value()
	if !found {
		t.Fatalf("Expected key to exist after Write")
	}
	if !bytes.Equal(value, testValue) {
		t.Errorf("Expected value %s, got %s", testValue, value)
	}

	// Absent key resolves found=false, not an error
	req = txn(t, conn, "s", engine.ReadOnly).Read("nonexistent-key")
	await(t, req)
	if _, found := req.Value(); found {
		t.Errorf("Expected nonexistent key to resolve found=false")
	}

	// Empty value round-trips as present
	await(t, txn(t, conn, "s", engine.ReadWrite).Write("empty", []byte{}))
	req = txn(t, conn, "s", engine.ReadOnly).Read("empty")
	await(t, req)
	value, found = req.Value()
	if !found {
		t.Errorf("Expected empty value to be found")
	}
	if len(value) != 0 {
		t.Errorf("Expected empty value, got %v", value)
	}
}

func testOverwrite(t *testing.T, eng engine.Engine) {
	conn := open(t, eng, "testdb", 1, "s")
	defer conn.Close()

	await(t, txn(t, conn, "s", engine.ReadWrite).Write("k", []byte("v1")))
	await(t, txn(t, conn, "s", engine.ReadWrite).Write("k", []byte("v2")))

	req := txn(t, conn, "s", engine.ReadOnly).Read("k")
	await(t, req)
	value, found := req.Value()
	if !found || !bytes.Equal(value, []byte("v2")) {
		t.Errorf("Expected overwritten value v2, got %s (found=%v)", value, found)
	}

	// Upsert keeps exactly one record per key
	req = txn(t, conn, "s", engine.ReadOnly).ListKeys()
	await(t, req)
	if keys := req.Keys(); len(keys) != 1 {
		t.Errorf("Expected exactly one key after overwrite, got %v", keys)
	}
}

func testDeleteKey(t *testing.T, eng engine.Engine) {
	conn := open(t, eng, "testdb", 1, "s")
	defer conn.Close()

	await(t, txn(t, conn, "s", engine.ReadWrite).Write("k", []byte("v")))
	await(t, txn(t, conn, "s", engine.ReadWrite).Delete("k"))

	req := txn(t, conn, "s", engine.ReadOnly).Read("k")
	await(t, req)
	if _, found := req.Value(); found {
		t.Errorf("Expected key to be gone after Delete")
	}

	// Deleting an absent key succeeds
	await(t, txn(t, conn, "s", engine.ReadWrite).Delete("nonexistent-key"))
}

func testListKeys(t *testing.T, eng engine.Engine) {
	conn := open(t, eng, "testdb", 1, "s")
	defer conn.Close()

	// Empty store lists no keys
	req := txn(t, conn, "s", engine.ReadOnly).ListKeys()
	await(t, req)
	if keys := req.Keys(); len(keys) != 0 {
		t.Errorf("Expected no keys in empty store, got %v", keys)
	}

	numKeys := 100
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("key-%03d", i)
		await(t, txn(t, conn, "s", engine.ReadWrite).Write(key, []byte(fmt.Sprintf("value-%d", i))))
	}

	req = txn(t, conn, "s", engine.ReadOnly).ListKeys()
	await(t, req)
	keys := req.Keys()
	if len(keys) != numKeys {
		t.Fatalf("Expected %d keys, got %d", numKeys, len(keys))
	}

	// Keys come back in key order, each exactly once
	for i, key := range keys {
		expected := fmt.Sprintf("key-%03d", i)
		if key != expected {
			t.Errorf("Expected key %s at position %d, got %s", expected, i, key)
		}
	}
}

func testReadOnlyMode(t *testing.T, eng engine.Engine) {
	conn := open(t, eng, "testdb", 1, "s")
	defer conn.Close()

	err := awaitErr(t, txn(t, conn, "s", engine.ReadOnly).Write("k", []byte("v")))
	if !errors.Is(err, engine.ErrReadOnlyTxn) {
		t.Errorf("Expected ErrReadOnlyTxn for Write on read-only txn, got %v", err)
	}

	err = awaitErr(t, txn(t, conn, "s", engine.ReadOnly).Delete("k"))
	if !errors.Is(err, engine.ErrReadOnlyTxn) {
		t.Errorf("Expected ErrReadOnlyTxn for Delete on read-only txn, got %v", err)
	}
}

func testUnknownStore(t *testing.T, eng engine.Engine) {
	conn := open(t, eng, "testdb", 1, "s")
	defer conn.Close()

	_, err := conn.Transact("unknown-store", engine.ReadOnly)
	if !errors.Is(err, engine.ErrStoreNotFound) {
		t.Errorf("Expected ErrStoreNotFound, got %v", err)
	}
}

func testSameVersionKeepsData(t *testing.T, eng engine.Engine) {
	conn := open(t, eng, "testdb", 1, "s")
	await(t, txn(t, conn, "s", engine.ReadWrite).Write("k", []byte("v")))
	conn.Close()

	// Reopening at the same version must not run the reconcile step
	conn = open(t, eng, "testdb", 1, "s")
	defer conn.Close()

	req := txn(t, conn, "s", engine.ReadOnly).Read("k")
	await(t, req)
	if _, found := req.Value(); !found {
		t.Errorf("Expected data to survive a same-version reopen")
	}
}

func testUpgradeResetsStores(t *testing.T, eng engine.Engine) {
	conn := open(t, eng, "testdb", 1, "a")
	await(t, txn(t, conn, "a", engine.ReadWrite).Write("k", []byte("v")))
	conn.Close()

	// Version bump with a different store set: full reset
	conn = open(t, eng, "testdb", 2, "b")
	defer conn.Close()

	names := conn.StoreNames()
	if len(names) != 1 || names[0] != "b" {
		t.Errorf("Expected stores [b] after upgrade, got %v", names)
	}

	if _, err := conn.Transact("a", engine.ReadOnly); !errors.Is(err, engine.ErrStoreNotFound) {
		t.Errorf("Expected store 'a' to be gone after upgrade, got %v", err)
	}

	req := txn(t, conn, "b", engine.ReadOnly).ListKeys()
	await(t, req)
	if keys := req.Keys(); len(keys) != 0 {
		t.Errorf("Expected new store 'b' to be empty, got %v", keys)
	}
}

func testVersionDowngrade(t *testing.T, eng engine.Engine) {
	conn := open(t, eng, "testdb", 2, "s")
	conn.Close()

	_, err := eng.Open("testdb", 1, resetReconcile("s"))
	if !errors.Is(err, engine.ErrVersionMismatch) {
		t.Errorf("Expected ErrVersionMismatch for downgrade, got %v", err)
	}
}

func testCloseSemantics(t *testing.T, eng engine.Engine) {
	conn := open(t, eng, "testdb", 1, "s")

	tx := txn(t, conn, "s", engine.ReadWrite)

	// Close is idempotent
	if err := conn.Close(); err != nil {
		t.Errorf("Unexpected error on Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("Unexpected error on second Close: %v", err)
	}

	// New transactions fail cleanly
	if _, err := conn.Transact("s", engine.ReadOnly); !errors.Is(err, engine.ErrConnClosed) {
		t.Errorf("Expected ErrConnClosed after Close, got %v", err)
	}

	// Requests on a pre-close transaction fail cleanly, they must not hang
	err := awaitErr(t, tx.Write("k", []byte("v")))
	if !errors.Is(err, engine.ErrConnClosed) {
		t.Errorf("Expected ErrConnClosed for request after Close, got %v", err)
	}
}

func testDeleteDatabase(t *testing.T, eng engine.Engine) {
	conn := open(t, eng, "testdb", 1, "s")
	await(t, txn(t, conn, "s", engine.ReadWrite).Write("k", []byte("v")))
	conn.Close()

	await(t, eng.DeleteDatabase("testdb"))

	// The database is gone: reopening at v1 recreates it from scratch
	conn = open(t, eng, "testdb", 1, "s")
	defer conn.Close()

	req := txn(t, conn, "s", engine.ReadOnly).Read("k")
	await(t, req)
	if _, found := req.Value(); found {
		t.Errorf("Expected data to be gone after DeleteDatabase")
	}

	// Deleting a database that does not exist succeeds
	await(t, eng.DeleteDatabase("no-such-db"))
}

func testConcurrentRequests(t *testing.T, eng engine.Engine) {
	conn := open(t, eng, "testdb", 1, "s")
	defer conn.Close()

	numKeys := 200
	var wg sync.WaitGroup
	wg.Add(numKeys)

	for i := 0; i < numKeys; i++ {
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i)
			tx, err := conn.Transact("s", engine.ReadWrite)
			if err != nil {
				t.Errorf("Transact failed: %v", err)
				return
			}
			if err := awaitErr(t, tx.Write(key, []byte(fmt.Sprintf("value-%d", i)))); err != nil {
				t.Errorf("Write %s failed: %v", key, err)
			}
		}(i)
	}

	wg.Wait()

	req := txn(t, conn, "s", engine.ReadOnly).ListKeys()
	await(t, req)
	if keys := req.Keys(); len(keys) != numKeys {
		t.Errorf("Expected %d keys after concurrent writes, got %d", numKeys, len(keys))
	}
}
