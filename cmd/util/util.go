package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/MoonlightOffice/IDBWrapper/lib/engine"
	"github.com/MoonlightOffice/IDBWrapper/lib/engine/bolt"
	"github.com/MoonlightOffice/IDBWrapper/lib/engine/codec"
	"github.com/MoonlightOffice/IDBWrapper/lib/engine/mem"
	"github.com/MoonlightOffice/IDBWrapper/lib/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the common database connection flags to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "data"
	cmd.PersistentFlags().String(key, "./data", WrapString("Directory the database files live in (bolt engine only)"))

	key = "dbname"
	cmd.PersistentFlags().String(key, "default", WrapString("Name of the database to open"))

	key = "db-version"
	cmd.PersistentFlags().Uint64(key, 1, WrapString("Schema version to open the database at - raising it above the stored version rebuilds the database with exactly the declared stores"))

	key = "db-stores"
	cmd.PersistentFlags().String(key, "default", WrapString("Comma-separated list of stores the database must contain"))

	key = "store"
	cmd.PersistentFlags().String(key, "default", WrapString("Store to run the operation against"))

	key = "open-timeout"
	cmd.PersistentFlags().Int(key, 1000, WrapString("How long to wait for the database file lock in milliseconds (bolt engine only)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("idb")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetStoreConfig reads the database configuration from viper
func GetStoreConfig() store.Config {
	return store.Config{
		DBName:  viper.GetString("dbname"),
		Version: viper.GetUint64("db-version"),
		Stores:  strings.Split(viper.GetString("db-stores"), ","),
	}
}

// GetStoreName retrieves the configured store name
func GetStoreName() string {
	return viper.GetString("store")
}

// GetLogLevel retrieves the configured log level
func GetLogLevel() string {
	return viper.GetString("log-level")
}

// GetCodec creates a record codec based on configuration
func GetCodec() (codec.IRecordCodec, error) {
	switch viper.GetString("codec") {
	case "json":
		return codec.NewJSONCodec(), nil
	case "gob":
		return codec.NewGOBCodec(), nil
	case "binary":
		return codec.NewBinaryCodec(), nil
	default:
		return nil, fmt.Errorf("invalid codec %s", viper.GetString("codec"))
	}
}

// GetEngine creates an engine based on configuration
func GetEngine() (engine.Engine, error) {
	switch engine.Implementation(viper.GetString("engine")) {
	case engine.ImplBolt:
		c, err := GetCodec()
		if err != nil {
			return nil, err
		}
		opts := bolt.DefaultOptions(viper.GetString("data"))
		opts.Codec = c
		opts.OpenTimeout = time.Duration(viper.GetInt("open-timeout")) * time.Millisecond
		return bolt.NewEngine(opts), nil
	case engine.ImplMem:
		return mem.NewEngine(nil), nil
	default:
		return nil, fmt.Errorf("invalid engine %s", viper.GetString("engine"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
