package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/imgload"
)

type warmOptions struct {
	file    string
	timeout time.Duration
}

func newWarmCmd(root *rootOptions) *cobra.Command {
	opts := &warmOptions{}
	cmd := &cobra.Command{
		Use:   "warm [locator...]",
		Short: "Load images through the cache and report where each came from",
		Example: `  imgload warm https://example.com/a.png https://example.com/b.jpg
  imgload warm -f urls.txt --config imgload.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			locators := append([]string(nil), args...)
			if opts.file != "" {
				more, err := readLocators(opts.file)
				if err != nil {
					return err
				}
				locators = append(locators, more...)
			}
			if len(locators) == 0 {
				return fmt.Errorf("no locators given")
			}

			rt, stop, err := root.runtime(cmd)
			if err != nil {
				return err
			}
			defer stop()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			results := warm(ctx, rt.Loader, locators)

			rows := make([][]string, 0, len(results))
			failed := 0
			for _, r := range results {
				rows = append(rows, r.row())
				if r.err != nil {
					failed++
				}
			}
			printTable(cmd.OutOrStdout(), []string{"locator", "key", "source", "bytes", "error"}, rows)
			if failed > 0 {
				return fmt.Errorf("%d of %d images failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read locators from file, one per line")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "overall deadline")
	return cmd
}

// readLocators skips blank lines and # comments.
func readLocators(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// warmSlot receives a single result. Each locator gets its own slot so
// duplicates in the input still report individually.
type warmSlot struct {
	alive atomic.Bool
	ch    chan imgload.Result
}

func newWarmSlot() *warmSlot {
	s := &warmSlot{ch: make(chan imgload.Result, 1)}
	s.alive.Store(true)
	return s
}

func (s *warmSlot) IsAlive() bool { return s.alive.Load() }

func (s *warmSlot) Deliver(r imgload.Result) {
	select {
	case s.ch <- r:
	default:
	}
}

type warmResult struct {
	locator string
	key     imgload.Key
	source  imgload.Source
	size    int64
	err     error
}

func (r warmResult) row() []string {
	src, size, msg := "-", "-", ""
	if r.err != nil {
		msg = r.err.Error()
	} else {
		src = r.source.String()
		size = humanize.IBytes(uint64(r.size))
	}
	return []string{r.locator, string(r.key), src, size, msg}
}

func warm(ctx context.Context, l imgload.Loader, locators []string) []warmResult {
	out := make([]warmResult, len(locators))
	slots := make([]*warmSlot, len(locators))
	for i, loc := range locators {
		out[i].locator = loc
		slots[i] = newWarmSlot()
		if err := l.Request(loc, slots[i]); err != nil {
			out[i].err = err
			slots[i] = nil
		}
	}

	for i, s := range slots {
		if s == nil {
			continue
		}
		select {
		case r := <-s.ch:
			out[i].key, out[i].source, out[i].err = r.Key, r.Source, r.Err
			if r.Image != nil {
				out[i].size = r.Image.SizeBytes()
			}
		case <-ctx.Done():
			s.alive.Store(false)
			l.Release(s)
			out[i].err = ctx.Err()
		}
		if out[i].key == "" {
			out[i].key, _ = imgload.HashLocator(out[i].locator)
		}
	}
	return out
}
