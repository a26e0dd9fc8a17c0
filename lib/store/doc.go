// Package store provides a high-level key-value facade over the
// request-based storage engines in lib/engine. It hides transactions,
// requests and engine errors behind a small blocking API whose operations
// never return errors: failure is communicated through sentinel return
// values (false, nil value, empty key list), so callers can treat the
// store like an in-process map.
//
// Key Components:
//
//   - IStore Interface: The core abstraction with five data operations
//     (GetAllKeys, IsKeyExist, Get, Put, Delete) plus Close. All engine
//     backends are reached through this one interface, so applications can
//     switch between the persistent bolt engine and the in-memory engine
//     without code changes.
//
//   - Connect: The single entry point. It opens the configured database on
//     an engine and reconciles the schema: raising the version rebuilds the
//     database from scratch (all existing stores dropped, the declared
//     stores created empty). Connect is also the only place an error can
//     surface, as a typed *Error with a RetCode.
//
//   - DeleteDatabase: Removes a whole database from an engine, reporting
//     plain success or failure.
//
// Every operation opens one short-lived, single-store transaction, issues
// one engine request and awaits its completion. The caller-supplied context
// only bounds the wait, never the engine-side execution.
package store
