package kv

import (
	"github.com/MoonlightOffice/IDBWrapper/cmd/util"
	"github.com/MoonlightOffice/IDBWrapper/lib/store"
	"github.com/spf13/cobra"
)

var (
	kvStore store.IStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform key-value store operations",
		PersistentPreRunE: setupStore,
		PersistentPostRun: teardownStore,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common database flags to the KV command
	util.SetupStoreFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupStore opens the configured database and keeps the handle for the
// subcommand
func setupStore(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Configure logging before the first engine call
	util.InitLoggers(util.GetLogLevel())

	// Create the engine (bolt or mem)
	eng, err := util.GetEngine()
	if err != nil {
		return err
	}

	// Connect to the configured database
	kvStore, err = store.Connect(eng, util.GetStoreConfig())

	return err
}

// teardownStore releases the database handle after the subcommand ran
func teardownStore(_ *cobra.Command, _ []string) {
	if kvStore != nil {
		kvStore.Close()
	}
}
