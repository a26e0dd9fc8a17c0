// Package mem provides a process-local, in-memory implementation of the
// engine interface backed by xsync concurrent maps. It has no durability
// and no cross-process locking; it exists as a test double for the
// persistent engines and for cache-style deployments. Semantics otherwise
// match the bolt engine, including the upgrade transaction, request
// dispatching and close behavior.
package mem
