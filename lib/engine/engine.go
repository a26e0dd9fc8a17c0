package engine

import "errors"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplBolt Implementation = "bolt"
	ImplMem  Implementation = "mem"
)

// Mode declares the access mode of a transaction.
// Read-only transactions reject Write and Delete requests.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "readonly"
	case ReadWrite:
		return "readwrite"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Sentinel Errors
// --------------------------------------------------------------------------

var (
	// ErrStoreNotFound is the failure of a transaction scoped to a store
	// that is not part of the database schema.
	ErrStoreNotFound = errors.New("engine: store not part of database schema")

	// ErrReadOnlyTxn is the failure of a write request issued against a
	// read-only transaction.
	ErrReadOnlyTxn = errors.New("engine: write request on read-only transaction")

	// ErrConnClosed is the failure of any request submitted after the
	// connection has been closed.
	ErrConnClosed = errors.New("engine: connection closed")

	// ErrVersionMismatch is returned by Open when the stored schema version
	// is newer than the requested one. Downgrades are not supported.
	ErrVersionMismatch = errors.New("engine: stored version newer than requested")
)

// --------------------------------------------------------------------------
// Engine Interface
// --------------------------------------------------------------------------

// ReconcileFunc is invoked by Open inside the upgrade transaction whenever
// the stored schema version is lower than the requested one (including a
// freshly created database, whose stored version is zero). It is the only
// place where stores may be created or deleted. The schema the function
// leaves behind is the schema all connections observe afterwards.
type ReconcileFunc func(txn SchemaTxn, oldVersion, newVersion uint64) error

// SchemaTxn is the upgrade transaction handed to a ReconcileFunc.
// It is only valid for the duration of the callback.
type SchemaTxn interface {
	// StoreNames returns the names of all stores currently in the database.
	StoreNames() []string
	// CreateStore creates a store. Creating an existing store is a no-op.
	CreateStore(name string) error
	// DeleteStore deletes a store and all of its records.
	// Deleting an absent store is a no-op.
	DeleteStore(name string) error
}

// Engine is the narrow contract this module requires from an underlying
// object-store engine: open a named versioned database (running schema
// reconciliation in an upgrade transaction when the version increases) and
// destroy a database out-of-band. Everything else happens through the Conn
// returned by Open.
//
// Engines complete every data request asynchronously through a *Request,
// never by blocking the caller.
type Engine interface {
	// Open opens or creates the named database at the requested version.
	// It returns an error if the database cannot be opened, e.g. because
	// another connection holds it, the environment denies storage access,
	// or the stored version is newer than the requested one.
	Open(name string, version uint64, reconcile ReconcileFunc) (Conn, error)

	// DeleteDatabase requests destruction of the named database and all of
	// its stores. It does not require the database to be open and succeeds
	// if the database does not exist.
	//
	// A connection that is still open when the deletion runs is detached,
	// not revoked: it keeps operating on the removed data until it is
	// closed, and only connections opened afterwards observe the deletion.
	// Callers that need a clean cut close their connections first.
	DeleteDatabase(name string) *Request
}

// Conn is a live connection to an open database. It exclusively owns the
// underlying database resource until Close is called.
type Conn interface {
	// Transact opens a short-lived transaction scoped to exactly one store.
	// It fails with ErrStoreNotFound if the store is not part of the schema
	// and with ErrConnClosed after Close.
	Transact(store string, mode Mode) (Txn, error)

	// StoreNames returns the names of the stores in the schema this
	// connection was opened against.
	StoreNames() []string

	// Close releases the connection. Requests already submitted run to
	// completion; later requests fail with ErrConnClosed. Close is
	// idempotent.
	Close() error
}

// Txn is a single-store transaction. Each method issues one engine request
// and returns immediately; the outcome arrives through the request's
// completion notification. The transaction commits (or aborts) with the
// request, there is no separate commit step.
type Txn interface {
	// Read retrieves the record for a key. The request resolves with the
	// value and a found flag; an absent key is found=false, not an error.
	Read(key string) *Request

	// Write upserts the record for a key. Requires ReadWrite mode.
	Write(key string, value []byte) *Request

	// Delete removes the record for a key. An absent key is not an error.
	// Requires ReadWrite mode.
	Delete(key string) *Request

	// ListKeys enumerates all keys in the store in engine order.
	ListKeys() *Request
}
