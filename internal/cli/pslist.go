package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marrow-forensics/marrow/internal/errors"
	"github.com/marrow-forensics/marrow/internal/winmem"
)

func newPsListCmd() *cobra.Command {
	var opts imageOptions
	var listHead string

	cmd := &cobra.Command{
		Use:   "pslist",
		Short: "List processes by walking the active-process ring",
		RunE: func(cmd *cobra.Command, args []string) error {
			head, err := strconv.ParseUint(listHead, 0, 64)
			if err != nil {
				return fmt.Errorf("list head %q: %w", listHead, err)
			}

			state, err := setup(opts)
			if err != nil {
				return err
			}
			defer errors.DeferClose(state.log, state.image, "closing image layer")

			cmd.Printf("%-18s %8s %8s %s\n", "OFFSET", "PID", "PPID", "NAME")
			return winmem.ListProcesses(state.ctx, opts.table, PhysicalLayerName, head,
				func(p *winmem.Process) (bool, error) {
					pid, err := p.PID()
					if err != nil {
						return false, err
					}
					ppid, err := p.PPID()
					if err != nil {
						return false, err
					}
					name, err := p.Name()
					if err != nil {
						return false, err
					}
					cmd.Printf("%#-18x %8d %8d %s\n", p.Offset(), pid, ppid, name)
					return true, nil
				})
		},
	}

	addImageFlags(cmd.Flags(), &opts)
	cmd.Flags().StringVar(&listHead, "list-head", "", "offset of the active process list head")
	errors.Must(cmd.MarkFlagRequired("list-head"), "marking list-head required")
	return cmd
}
