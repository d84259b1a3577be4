package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/imgload"
	"github.com/unkn0wn-root/imgload/store"
)

func newInspectCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <locator>",
		Short: "Show the stored metadata for a locator",
		Long:  "inspect reads the framed store entry for a locator. It needs store.framed=true.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := imgload.HashLocator(args[0])
			if err != nil {
				return err
			}
			rt, stop, err := root.runtime(cmd)
			if err != nil {
				return err
			}
			defer stop()
			if rt.Framed == nil {
				return errors.New("inspect needs a framed store (store.framed: true)")
			}

			m, err := rt.Framed.ReadMeta(cmd.Context(), string(key))
			switch {
			case errors.Is(err, store.ErrNotFound):
				return fmt.Errorf("%s: not stored", args[0])
			case errors.Is(err, store.ErrCorrupt):
				return fmt.Errorf("%s: entry was corrupt and has been removed", args[0])
			case err != nil:
				return err
			}

			printPairs(cmd.OutOrStdout(), [][2]string{
				{"locator", args[0]},
				{"key", m.Key},
				{"content type", m.ContentType},
				{"size", humanize.IBytes(uint64(m.Size))},
				{"stored", m.StoredAt.Format(time.RFC3339) + " (" + humanize.Time(m.StoredAt) + ")"},
			})
			return nil
		},
	}
}
