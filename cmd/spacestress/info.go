package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/spacekit/space"
)

var (
	infoPrefixBits uint
	infoWordBits   uint
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the derived geometry for a configuration",
		Long: `The info command validates a classification configuration and prints
the derived geometry: tracked address bits, per-space size and alignment,
and the size of the state table.

Example:
  spacestress info --prefix-bits 16
  spacestress info --prefix-bits 16 --word-bits 64 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo()
		},
	}
	cmd.Flags().UintVar(&infoPrefixBits, "prefix-bits", 16, "Prefix bits N (the table has 2^N spaces)")
	cmd.Flags().UintVar(&infoWordBits, "word-bits", 0, "Target word width (0 = this platform)")
	return cmd
}

func runInfo() error {
	geo, err := space.NewGeometry(space.Config{
		PrefixBits: infoPrefixBits,
		WordBits:   infoWordBits,
	})
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"prefixBits":     geo.PrefixBits(),
			"wordBits":       geo.WordBits(),
			"spaceShift":     geo.Shift(),
			"spaceSizeBytes": uint64(geo.SpaceSize()),
			"numSpaces":      geo.NumSpaces(),
		})
	}

	fmt.Printf("Geometry:\n")
	fmt.Printf("  prefix bits (N):  %d\n", geo.PrefixBits())
	fmt.Printf("  word width (W):   %d\n", geo.WordBits())
	fmt.Printf("  space shift (L):  %d\n", geo.Shift())
	fmt.Printf("  space size:       %d bytes\n", geo.SpaceSize())
	fmt.Printf("  tracked spaces:   %d\n", geo.NumSpaces())
	return nil
}
