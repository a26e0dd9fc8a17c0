package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/MoonlightOffice/IDBWrapper/lib/engine"
	"github.com/MoonlightOffice/IDBWrapper/lib/engine/bolt"
	"github.com/MoonlightOffice/IDBWrapper/lib/engine/mem"
	"github.com/MoonlightOffice/IDBWrapper/lib/store"
)

// connect opens a fresh in-memory database with the given stores and fails
// the test if the connection cannot be established.
func connect(t *testing.T, eng engine.Engine, name string, version uint64, stores ...string) store.IStore {
	t.Helper()
	s, err := store.Connect(eng, store.Config{DBName: name, Version: version, Stores: stores})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return s
}

// --------------------------------------------------------------------------
// Connect
// --------------------------------------------------------------------------

func TestConnectValidation(t *testing.T) {
	eng := mem.NewEngine(nil)

	tests := []struct {
		name string
		eng  engine.Engine
		cfg  store.Config
	}{
		{"NilEngine", nil, store.Config{DBName: "db", Version: 1}},
		{"EmptyDBName", eng, store.Config{DBName: "", Version: 1}},
		{"ZeroVersion", eng, store.Config{DBName: "db", Version: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Connect(tt.eng, tt.cfg)
			var serr *store.Error
			if !errors.As(err, &serr) {
				t.Fatalf("Expected *store.Error, got %v", err)
			}
			if serr.Code != store.RetCInvalidConfig {
				t.Errorf("Expected RetCInvalidConfig, got %d", serr.Code)
			}
		})
	}
}

func TestConnectVersionDowngrade(t *testing.T) {
	eng := mem.NewEngine(nil)

	s := connect(t, eng, "db", 3, "items")
	s.Close()

	_, err := store.Connect(eng, store.Config{DBName: "db", Version: 2, Stores: []string{"items"}})
	var serr *store.Error
	if !errors.As(err, &serr) {
		t.Fatalf("Expected *store.Error, got %v", err)
	}
	if serr.Code != store.RetCConnectFailed {
		t.Errorf("Expected RetCConnectFailed, got %d", serr.Code)
	}
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := connect(t, mem.NewEngine(nil), "db", 1, "items")
	defer s.Close()

	if !s.Put(ctx, "items", "k", []byte("hello world")) {
		t.Fatalf("Put failed")
	}

	value, loaded := s.Get(ctx, "items", "k")
	if !loaded || string(value) != "hello world" {
		t.Errorf("Expected 'hello world' loaded=true, got %q loaded=%v", value, loaded)
	}
}

func TestGetDistinguishesEmptyValueFromAbsence(t *testing.T) {
	ctx := context.Background()
	s := connect(t, mem.NewEngine(nil), "db", 1, "items")
	defer s.Close()

	if !s.Put(ctx, "items", "empty", []byte{}) {
		t.Fatalf("Put failed")
	}

	value, loaded := s.Get(ctx, "items", "empty")
	if !loaded {
		t.Errorf("Expected stored empty value to be loaded")
	}
	if len(value) != 0 {
		t.Errorf("Expected empty value, got %q", value)
	}

	if _, loaded := s.Get(ctx, "items", "missing"); loaded {
		t.Errorf("Expected absent key not to be loaded")
	}
}

func TestPutOverwrites(t *testing.T) {
	ctx := context.Background()
	s := connect(t, mem.NewEngine(nil), "db", 1, "items")
	defer s.Close()

	s.Put(ctx, "items", "k", []byte("old"))
	if !s.Put(ctx, "items", "k", []byte("new")) {
		t.Fatalf("Overwriting Put failed")
	}

	if value, _ := s.Get(ctx, "items", "k"); string(value) != "new" {
		t.Errorf("Expected overwritten value 'new', got %q", value)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := connect(t, mem.NewEngine(nil), "db", 1, "items")
	defer s.Close()

	s.Put(ctx, "items", "k", []byte("v"))
	if !s.Delete(ctx, "items", "k") {
		t.Fatalf("Delete failed")
	}

	if s.IsKeyExist(ctx, "items", "k") {
		t.Errorf("Expected key to be gone after Delete")
	}

	// Deleting an absent key succeeds
	if !s.Delete(ctx, "items", "k") {
		t.Errorf("Expected Delete of absent key to succeed")
	}
}

func TestGetAllKeys(t *testing.T) {
	ctx := context.Background()
	s := connect(t, mem.NewEngine(nil), "db", 1, "items")
	defer s.Close()

	keys := s.GetAllKeys(ctx, "items")
	if keys == nil || len(keys) != 0 {
		t.Errorf("Expected empty non-nil slice for empty store, got %#v", keys)
	}

	for _, k := range []string{"cherry", "apple", "banana"} {
		s.Put(ctx, "items", k, []byte("x"))
	}

	keys = s.GetAllKeys(ctx, "items")
	want := []string{"apple", "banana", "cherry"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("Expected keys %v, got %v", want, keys)
	}
}

func TestIsKeyExistAgreesWithGet(t *testing.T) {
	ctx := context.Background()
	s := connect(t, mem.NewEngine(nil), "db", 1, "items")
	defer s.Close()

	s.Put(ctx, "items", "present", []byte("v"))

	for _, key := range []string{"present", "absent"} {
		_, loaded := s.Get(ctx, "items", key)
		if exists := s.IsKeyExist(ctx, "items", key); exists != loaded {
			t.Errorf("IsKeyExist(%q)=%v disagrees with Get loaded=%v", key, exists, loaded)
		}
	}
}

func TestUnknownStoreSentinels(t *testing.T) {
	ctx := context.Background()
	s := connect(t, mem.NewEngine(nil), "db", 1, "items")
	defer s.Close()

	if keys := s.GetAllKeys(ctx, "nope"); len(keys) != 0 {
		t.Errorf("Expected empty key list for unknown store, got %v", keys)
	}
	if s.IsKeyExist(ctx, "nope", "k") {
		t.Errorf("Expected IsKeyExist to return false for unknown store")
	}
	if _, loaded := s.Get(ctx, "nope", "k"); loaded {
		t.Errorf("Expected Get to return not-loaded for unknown store")
	}
	if s.Put(ctx, "nope", "k", []byte("v")) {
		t.Errorf("Expected Put to fail for unknown store")
	}
	if s.Delete(ctx, "nope", "k") {
		t.Errorf("Expected Delete to fail for unknown store")
	}
}

func TestExpiredContextSentinels(t *testing.T) {
	s := connect(t, mem.NewEngine(nil), "db", 1, "items")
	defer s.Close()

	s.Put(context.Background(), "items", "k", []byte("v"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, loaded := s.Get(ctx, "items", "k"); loaded {
		t.Errorf("Expected Get with cancelled context to return not-loaded")
	}
	if s.Put(ctx, "items", "k2", []byte("v")) {
		t.Errorf("Expected Put with cancelled context to report failure")
	}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func TestClosedHandleSentinels(t *testing.T) {
	ctx := context.Background()
	s := connect(t, mem.NewEngine(nil), "db", 1, "items")

	s.Put(ctx, "items", "k", []byte("v"))
	s.Close()

	if keys := s.GetAllKeys(ctx, "items"); len(keys) != 0 {
		t.Errorf("Expected empty key list on closed handle, got %v", keys)
	}
	if s.IsKeyExist(ctx, "items", "k") {
		t.Errorf("Expected IsKeyExist to return false on closed handle")
	}
	if _, loaded := s.Get(ctx, "items", "k"); loaded {
		t.Errorf("Expected Get to return not-loaded on closed handle")
	}
	if s.Put(ctx, "items", "k", []byte("v")) {
		t.Errorf("Expected Put to fail on closed handle")
	}
	if s.Delete(ctx, "items", "k") {
		t.Errorf("Expected Delete to fail on closed handle")
	}

	// Close is idempotent
	s.Close()
}

func TestSameVersionKeepsData(t *testing.T) {
	ctx := context.Background()
	eng := mem.NewEngine(nil)

	s := connect(t, eng, "db", 1, "items")
	s.Put(ctx, "items", "k", []byte("v"))
	s.Close()

	s = connect(t, eng, "db", 1, "items")
	defer s.Close()

	if value, loaded := s.Get(ctx, "items", "k"); !loaded || string(value) != "v" {
		t.Errorf("Expected data to survive same-version reconnect, got %q loaded=%v", value, loaded)
	}
}

func TestUpgradeRebuildsDatabase(t *testing.T) {
	ctx := context.Background()
	eng := mem.NewEngine(nil)

	s := connect(t, eng, "db", 1, "users", "sessions")
	s.Put(ctx, "users", "alice", []byte("a"))
	s.Put(ctx, "sessions", "s1", []byte("b"))
	s.Close()

	// v2 drops "users", keeps "sessions" by name and adds "events"; all
	// three outcomes are empty stores
	s = connect(t, eng, "db", 2, "sessions", "events")
	defer s.Close()

	if s.IsKeyExist(ctx, "users", "alice") {
		t.Errorf("Expected dropped store to be unknown after upgrade")
	}
	if keys := s.GetAllKeys(ctx, "sessions"); len(keys) != 0 {
		t.Errorf("Expected recreated store to be empty, got %v", keys)
	}
	if !s.Put(ctx, "events", "e1", []byte("x")) {
		t.Errorf("Expected new store to be writable")
	}
}

func TestDeleteDatabase(t *testing.T) {
	ctx := context.Background()
	eng := mem.NewEngine(nil)

	s := connect(t, eng, "db", 2, "items")
	s.Put(ctx, "items", "k", []byte("v"))
	s.Close()

	if !store.DeleteDatabase(ctx, eng, "db") {
		t.Fatalf("DeleteDatabase failed")
	}

	// Deleting a database that does not exist succeeds
	if !store.DeleteDatabase(ctx, eng, "db") {
		t.Errorf("Expected deleting an absent database to succeed")
	}

	// The name is free again, even at a lower version
	s = connect(t, eng, "db", 1, "items")
	defer s.Close()

	if s.IsKeyExist(ctx, "items", "k") {
		t.Errorf("Expected fresh database after deletion")
	}
}

// --------------------------------------------------------------------------
// Bolt-backed Scenarios
// --------------------------------------------------------------------------

func TestBlockedByConcurrentConnection(t *testing.T) {
	dir := t.TempDir()

	opts := bolt.DefaultOptions(dir)
	opts.OpenTimeout = 250 * time.Millisecond

	s := connect(t, bolt.NewEngine(opts), "db", 1, "items")
	defer s.Close()

	// A second engine instance competes for the same database file and
	// must give up once the lock timeout elapses
	_, err := store.Connect(bolt.NewEngine(opts), store.Config{
		DBName:  "db",
		Version: 1,
		Stores:  []string{"items"},
	})
	var serr *store.Error
	if !errors.As(err, &serr) {
		t.Fatalf("Expected *store.Error, got %v", err)
	}
	if serr.Code != store.RetCConnectFailed {
		t.Errorf("Expected RetCConnectFailed, got %d", serr.Code)
	}
}

type pokemon struct {
	Name  string   `json:"name"`
	Level int      `json:"level"`
	Moves []string `json:"moves"`
}

func TestDocumentScenario(t *testing.T) {
	ctx := context.Background()
	s := connect(t, bolt.NewEngine(bolt.DefaultOptions(t.TempDir())), "pokedex", 1, "pokemon")
	defer s.Close()

	pikachu := pokemon{Name: "Pikachu", Level: 25, Moves: []string{"Thunderbolt", "Quick Attack"}}

	encoded, err := json.Marshal(pikachu)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !s.Put(ctx, "pokemon", pikachu.Name, encoded) {
		t.Fatalf("Put failed")
	}

	if !s.IsKeyExist(ctx, "pokemon", "Pikachu") {
		t.Errorf("Expected stored document to exist")
	}
	if keys := s.GetAllKeys(ctx, "pokemon"); !reflect.DeepEqual(keys, []string{"Pikachu"}) {
		t.Errorf("Expected single key 'Pikachu', got %v", keys)
	}

	raw, loaded := s.Get(ctx, "pokemon", "Pikachu")
	if !loaded {
		t.Fatalf("Expected document to be loaded")
	}
	var decoded pokemon
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(decoded, pikachu) {
		t.Errorf("Expected %+v, got %+v", pikachu, decoded)
	}

	if !s.Delete(ctx, "pokemon", "Pikachu") {
		t.Fatalf("Delete failed")
	}
	if s.IsKeyExist(ctx, "pokemon", "Pikachu") {
		t.Errorf("Expected document to be gone after Delete")
	}
}

func TestPersistentReconnectScenario(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := connect(t, bolt.NewEngine(bolt.DefaultOptions(dir)), "db", 1, "items")
	s.Put(ctx, "items", "k", []byte("survives"))
	s.Close()

	// A fresh engine on the same directory sees the data on disk
	s = connect(t, bolt.NewEngine(bolt.DefaultOptions(dir)), "db", 1, "items")
	defer s.Close()

	if value, loaded := s.Get(ctx, "items", "k"); !loaded || string(value) != "survives" {
		t.Errorf("Expected persisted value, got %q loaded=%v", value, loaded)
	}
}
