package bolt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MoonlightOffice/IDBWrapper/lib/engine"
	enginetesting "github.com/MoonlightOffice/IDBWrapper/lib/engine/testing"
)

func Test(t *testing.T) {
	enginetesting.RunEngineTests(t, "BoltEngine", func() engine.Engine {
		return NewEngine(DefaultOptions(t.TempDir()))
	})
}

// --------------------------------------------------------------------------
// Bolt-specific behavior
// --------------------------------------------------------------------------

// reconcile recreates the given stores from scratch
func reconcile(stores ...string) engine.ReconcileFunc {
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

func await(t *testing.T, req *engine.Request) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := req.Await(ctx); err != nil {
		t.Fatalf("request failed: %v", err)
	}
}

func TestDataSurvivesEngineRestart(t *testing.T) {
	dir := t.TempDir()

	eng := NewEngine(DefaultOptions(dir))
	conn, err := eng.Open("db", 1, reconcile("items"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	tx, err := conn.Transact("items", engine.ReadWrite)
	if err != nil {
		t.Fatalf("Transact failed: %v", err)
	}
	await(t, tx.Write("k", []byte("persisted")))

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// A fresh engine instance on the same directory must see the data
	eng = NewEngine(DefaultOptions(dir))
	conn, err = eng.Open("db", 1, reconcile("items"))
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer conn.Close()

	tx, err = conn.Transact("items", engine.ReadOnly)
	if err != nil {
		t.Fatalf("Transact failed: %v", err)
	}
	req := tx.Read("k")
	await(t, req)

	if value, found := req.Value(); !found || string(value) != "persisted" {
		t.Errorf("Expected persisted value, got %q found=%v", value, found)
	}
}

func TestConcurrentOpenFailsAfterLockTimeout(t *testing.T) {
	dir := t.TempDir()

	opts := DefaultOptions(dir)
	opts.OpenTimeout = 250 * time.Millisecond

	conn, err := NewEngine(opts).Open("db", 1, reconcile("items"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close()

	// The file lock is held by the first connection, so a second engine
	// instance must give up once the timeout elapses
	if _, err := NewEngine(opts).Open("db", 1, reconcile("items")); err == nil {
		t.Fatalf("Expected concurrent Open to fail")
	}
}

func TestVersionMismatchError(t *testing.T) {
	dir := t.TempDir()

	eng := NewEngine(DefaultOptions(dir))
	conn, err := eng.Open("db", 2, reconcile("items"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	conn.Close()

	_, err = eng.Open("db", 1, reconcile("items"))
	if !errors.Is(err, engine.ErrVersionMismatch) {
		t.Errorf("Expected ErrVersionMismatch, got %v", err)
	}
}

func TestMetaBucketIsHidden(t *testing.T) {
	eng := NewEngine(DefaultOptions(t.TempDir()))
	conn, err := eng.Open("db", 1, reconcile("a", "b"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close()

	for _, name := range conn.StoreNames() {
		if name == string(metaBucket) {
			t.Errorf("Expected schema bookkeeping bucket to stay hidden, got store list %v", conn.StoreNames())
		}
	}
}
