package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/MoonlightOffice/IDBWrapper/cmd/kv"
	"github.com/MoonlightOffice/IDBWrapper/cmd/util"
	"github.com/MoonlightOffice/IDBWrapper/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "idb",
		Short: "versioned key-value storage",
		Long: fmt.Sprintf(`idb (v%s)

A key-value storage tool built on versioned, schema-managed databases.
Databases hold named stores; raising the schema version rebuilds a
database with exactly the declared stores.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of idb",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("idb v%s\n", Version)
		},
	}

	// dropDBCmd deletes a whole database from the configured engine
	dropDBCmd = &cobra.Command{
		Use:   "dropdb [name]",
		Short: "Delete a database and all its stores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}
			util.InitLoggers(util.GetLogLevel())

			eng, err := util.GetEngine()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if !store.DeleteDatabase(ctx, eng, args[0]) {
				return fmt.Errorf("failed to delete database %s", args[0])
			}
			fmt.Printf("database %s deleted\n", args[0])
			return nil
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(dropDBCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags for dropdb command
	dropDBCmd.Flags().String("data", "./data", util.WrapString("Directory the database files live in (bolt engine only)"))

	// Add Flags
	key := "engine"
	RootCmd.PersistentFlags().String(key, "bolt", util.WrapString("storage engine to use (bolt, mem)"))
	key = "codec"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("record codec to use (json, gob, binary)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("log level to use (debug, info, warn, error)"))
	if err := viper.BindPFlags(RootCmd.PersistentFlags()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
