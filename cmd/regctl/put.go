package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/basepair/resourcereg/internal/types"
)

var (
	putDoc      string
	putCreateBy string
)

var putCmd = &cobra.Command{
	Use:   "put <id> [file]",
	Short: "Write a raw JSON payload under id, reading from file or stdin",
	Long: `put writes exactly the bytes it is given as id's payload; it does not
run them through the Codec's persistent-ID substitution (that only applies
to object graphs produced by internal/codec.Dump from within application
code that owns the Go types). Use this for seeding simple scalar or
map-shaped resources, or for replaying a payload captured from 'regctl get'.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if putDoc == "" {
			return fmt.Errorf("%w: --doc is required", types.ErrMissingDocstring)
		}

		var r io.Reader = os.Stdin
		if len(args) == 2 {
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("regctl: open %s: %w", args[1], err)
			}
			defer f.Close()
			r = f
		}
		payload, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("regctl: read payload: %w", err)
		}
		if !json.Valid(payload) {
			return fmt.Errorf("regctl: payload is not valid JSON")
		}

		backend, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close()

		meta := types.Meta{
			Doc:         putDoc,
			CreatedBy:   putCreateBy,
			CreatedAt:   time.Now(),
			PayloadSize: len(payload),
		}
		if err := backend.Put(cmd.Context(), args[0], payload, meta); err != nil {
			return fmt.Errorf("regctl: put %s: %w", args[0], err)
		}
		fmt.Println(args[0])
		return nil
	},
}

func init() {
	putCmd.Flags().StringVar(&putDoc, "doc", "", "docstring describing the resource (required)")
	putCmd.Flags().StringVar(&putCreateBy, "created-by", "", "attribution recorded in the resource's metadata")
	rootCmd.AddCommand(putCmd)
}
