// Package bolt implements the engine interface on top of bbolt
// (embedded B+ tree). Each database is one file under the engine's data
// directory, each store is one top-level bucket, and a hidden meta bucket
// carries the schema version. bbolt's exclusive file lock makes a database
// that is already held by another process fail to open once the lock wait
// times out, which is exactly the "blocked by a concurrent connection"
// failure the facade reports as a connection error.
//
// Every request runs in its own bolt transaction on the connection's
// dispatcher, so a logical operation is atomic and durable on completion.
// Records are persisted as encoded envelopes (see the codec package);
// keys are stored in bolt's byte order, which is what ListKeys returns.
package bolt
