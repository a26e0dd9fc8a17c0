package store

import (
	"context"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Config describes the database a Connect call targets: its identity, its
// schema version and the complete set of store names. Raising the version
// above the stored one triggers the destructive reset-and-recreate upgrade;
// after a successful Connect the database contains exactly the declared
// stores, nothing else.
type Config struct {
	DBName  string
	Version uint64
	Stores  []string
}

// IStore is the public interface of a connected storage handle. Every
// operation runs one short-lived, single-store transaction against the
// underlying engine and reports failure through its sentinel return value
// (false, nil value, empty key list) instead of an error. Only Connect
// itself can fail with an error.
//
// The context bounds how long the caller waits for a result; the issued
// engine request always runs to its own completion.
type IStore interface {
	// GetAllKeys enumerates all keys of a store in engine order. It
	// returns an empty slice if the store is unknown or the request fails.
	GetAllKeys(ctx context.Context, store string) []string
	// IsKeyExist reports whether the store is part of the schema and
	// contains the key.
	IsKeyExist(ctx context.Context, store, key string) bool
	// Get returns the value stored for a key. The boolean return value
	// distinguishes an absent key from a stored empty value.
	Get(ctx context.Context, store, key string) (value []byte, loaded bool)
	// Put inserts or updates a key-value pair.
	Put(ctx context.Context, store, key string, value []byte) bool
	// Delete removes a key-value pair. Deleting an absent key succeeds.
	Delete(ctx context.Context, store, key string) bool
	// Close releases the underlying connection. Safe to call more than
	// once; operations on a closed handle fail with their sentinel values.
	Close()
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message. It is only produced by Connect; steady-state
// operations never return errors.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCInvalidConfig:
		errorCode = "InvalidConfig"
	case RetCConnectFailed:
		errorCode = "ConnectFailed"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("StorageError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new storage Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess       RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                // 1: Operation failed due to an internal error.
	RetCInvalidConfig                // 2: The Connect configuration is invalid.
	RetCConnectFailed                // 3: The engine could not open the database.
)
