package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls [prefix]",
	Short: "List resource IDs across the whole path",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}

		stores, err := openAllStores(cmd.Context())
		if err != nil {
			return err
		}
		defer closeAll(stores)

		seen := make(map[string]bool)
		var ids []string
		for _, s := range stores {
			found, _, err := s.ListPrefix(cmd.Context(), prefix, false)
			if err != nil {
				fmt.Fprintf(os.Stderr, "regctl: ls: %v\n", err)
				continue
			}
			for _, id := range found {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
		sort.Strings(ids)

		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ids)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
