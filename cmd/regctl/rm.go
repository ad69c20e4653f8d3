package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a resource from the writable store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close()

		ok, err := backend.Delete(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("regctl: rm %s: %w", args[0], err)
		}
		if !ok {
			return fmt.Errorf("regctl: %s not found", args[0])
		}
		fmt.Println(args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
