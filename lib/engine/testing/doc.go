// Package testing provides a standardized conformance suite for engine
// implementations. RunEngineTests validates the parts of the contract the
// store facade relies on: schema reconciliation inside the upgrade
// transaction, request completion semantics, access modes, close behavior
// and database deletion.
package testing
