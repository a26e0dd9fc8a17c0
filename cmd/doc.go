// Package cmd implements the command-line interface for the idb key-value
// storage tool. It provides a hierarchical command structure for opening
// versioned databases and operating on their stores.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value store operations (get, set, delete, etc.)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See idb -help for a list of all commands.
package cmd
