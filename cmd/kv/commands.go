package kv

import (
	"fmt"

	"github.com/MoonlightOffice/IDBWrapper/cmd/util"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]
			if !kvStore.Put(cmd.Context(), util.GetStoreName(), key, []byte(value)) {
				return fmt.Errorf("set failed for key %s", key)
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			resp, ok := kvStore.Get(cmd.Context(), util.GetStoreName(), key)
			fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if !kvStore.Delete(cmd.Context(), util.GetStoreName(), key) {
				return fmt.Errorf("delete failed for key %s", key)
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			found := kvStore.IsKeyExist(cmd.Context(), util.GetStoreName(), key)
			fmt.Printf("key=%s, found=%t\n", key, found)
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Lists all keys of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := kvStore.GetAllKeys(cmd.Context(), util.GetStoreName())
			fmt.Printf("%d key(s)\n", len(keys))
			for _, key := range keys {
				fmt.Println(key)
			}
			return nil
		},
	}
)
