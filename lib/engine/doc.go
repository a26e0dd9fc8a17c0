// Package engine defines the narrow contract between the storage facade and
// an underlying transactional object-store engine. It is deliberately small:
// open a named, versioned database, reconcile its schema inside an upgrade
// transaction, run one request per single-store transaction, and destroy a
// database out-of-band.
//
// The package focuses on:
//   - A unified interface (Engine, Conn, Txn) for object-store backends
//   - Asynchronous request completion through an explicit state machine
//   - Schema reconciliation confined to the upgrade transaction
//   - A self-keyed record envelope shared by all backends
//
// Key Components:
//
//   - Engine Interface: the entry point a backend must satisfy. Open either
//     creates, opens or upgrades a database; when the stored schema version
//     is lower than the requested one, the provided ReconcileFunc runs inside
//     the single upgrade transaction (SchemaTxn) - the only context in which
//     stores may be created or deleted. DeleteDatabase destroys a database
//     without requiring it to be open.
//
//   - Request: the adaptation of event-callback completion into an awaitable
//     notification. A request is a {pending, succeeded, failed} state machine
//     completed exactly once by the engine; callers block on Done() or
//     Await(ctx) and then read the result. There is no cancellation of an
//     issued operation - abandoning the wait does not stop the engine.
//
//   - Dispatcher: the per-connection event loop used by the bundled backends.
//     It serializes all requests of one connection and defines the close
//     semantics: accepted requests drain to completion, later requests are
//     rejected with ErrConnClosed.
//
//   - Record: the persisted {key, value} envelope. Records are self-keyed to
//     satisfy the engines' primary-key requirement; encodings are pluggable
//     through the codec package.
//
// Related Packages:
//
// The bolt package (github.com/MoonlightOffice/IDBWrapper/lib/engine/bolt)
// implements the interface on top of bbolt with one file per database and
// one bucket per store.
//
// The mem package (github.com/MoonlightOffice/IDBWrapper/lib/engine/mem)
// provides a process-local in-memory implementation used as a test double
// and for cache-style deployments.
//
// The testing package (github.com/MoonlightOffice/IDBWrapper/lib/engine/testing)
// provides a conformance suite (RunEngineTests) that every implementation is
// expected to pass.
package engine
