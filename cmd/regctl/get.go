package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a resource's raw stored payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		stores, err := openAllStores(cmd.Context())
		if err != nil {
			return err
		}
		defer closeAll(stores)

		for _, s := range stores {
			rec, ok, err := s.Get(cmd.Context(), id)
			if err != nil {
				continue
			}
			if !ok {
				continue
			}
			if jsonOut {
				out := map[string]any{
					"id":      id,
					"doc":     rec.Meta.Doc,
					"payload": json.RawMessage(rec.Payload),
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			fmt.Println(string(rec.Payload))
			return nil
		}
		return fmt.Errorf("regctl: %s not found in path", id)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
