package cli

import (
	"fmt"

	"github.com/Velocidex/ordereddict"
	"github.com/spf13/cobra"

	"github.com/marrow-forensics/marrow/internal/config"
	"github.com/marrow-forensics/marrow/internal/logging"
	"github.com/marrow-forensics/marrow/internal/objects"
	"github.com/marrow-forensics/marrow/internal/symbols"
)

func newTypesCmd() *cobra.Command {
	var symbolsPath string
	var table string

	cmd := &cobra.Command{
		Use:   "types [structure]",
		Short: "Dump structures declared by a symbol table",
		Long: `Without arguments, list every structure in the table with its size.
With a structure name, list its members with their relative offsets.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader().Load()
			if err != nil {
				return err
			}
			log := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
			if symbolsPath == "" {
				return fmt.Errorf("--symbols is required")
			}

			space := symbols.NewSpace(log)
			loaded, err := space.LoadTableFile(table, symbolsPath)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				return dumpStructure(cmd, space, table, args[0])
			}

			cmd.Printf("table %s (fingerprint %016x)\n", loaded.Name(), loaded.Fingerprint())
			for _, name := range loaded.Structures() {
				tmpl, _ := loaded.Get(name)
				size, err := tmpl.Size()
				if err != nil {
					return fmt.Errorf("sizing %s: %w", name, err)
				}
				cmd.Printf("%-40s %6d bytes\n", name, size)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&symbolsPath, "symbols", "s", "", "path to the intermediate symbol file")
	cmd.Flags().StringVarP(&table, "table", "t", "nt", "name to register the symbol table under")
	return cmd
}

func dumpStructure(cmd *cobra.Command, space *symbols.Space, table, name string) error {
	tmpl, err := space.GetStructure(table + "!" + name)
	if err != nil {
		return err
	}
	size, err := tmpl.Size()
	if err != nil {
		return err
	}
	cmd.Printf("%s (%d bytes)\n", name, size)

	raw, ok := tmpl.Parameters().Get(objects.ParamMembers)
	if !ok {
		return nil
	}
	members, ok := raw.(*ordereddict.Dict)
	if !ok {
		return nil
	}
	for _, member := range members.Keys() {
		offset, err := tmpl.RelativeChildOffset(member)
		if err != nil {
			return err
		}
		cmd.Printf("  %#06x %s\n", offset, member)
	}
	return nil
}
