package mem

import (
	"context"
	"testing"
	"time"

	"github.com/MoonlightOffice/IDBWrapper/lib/engine"
	enginetesting "github.com/MoonlightOffice/IDBWrapper/lib/engine/testing"
)

func Test(t *testing.T) {
	enginetesting.RunEngineTests(t, "MemEngine", func() engine.Engine {
		return NewEngine(nil)
	})
}

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

func TestDeleteDatabaseDetachesOpenConnection(t *testing.T) {
	eng := NewEngine(nil)

	conn, err := eng.Open("db", 1, reconcile("items"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close()

	tx, err := conn.Transact("items", engine.ReadWrite)
	if err != nil {
		t.Fatalf("Transact failed: %v", err)
	}
	await(t, tx.Write("k", []byte("v")))

	await(t, eng.DeleteDatabase("db"))

	// The open connection keeps serving against the removed data
	tx, err = conn.Transact("items", engine.ReadOnly)
	if err != nil {
		t.Fatalf("Transact after deletion failed: %v", err)
	}
	req := tx.Read("k")
	await(t, req)
	if _, found := req.Value(); !found {
		t.Errorf("Expected detached connection to still see its data")
	}

	// A later Open gets a fresh database
	fresh, err := eng.Open("db", 1, reconcile("items"))
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer fresh.Close()

	tx, err = fresh.Transact("items", engine.ReadOnly)
	if err != nil {
		t.Fatalf("Transact failed: %v", err)
	}
	req = tx.Read("k")
	await(t, req)
	if _, found := req.Value(); found {
		t.Errorf("Expected a fresh database after deletion")
	}
}
