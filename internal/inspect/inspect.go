package inspect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/einsums/docpost/internal/log"
	"github.com/einsums/docpost/internal/rewrite"
	"github.com/einsums/docpost/internal/transform"
)

// ErrWouldChange is returned when at least one file differs from its
// transformed form.
var ErrWouldChange = errors.New("files would change")

type Summary struct {
	Checked []string
	Changed []string
}

// Run applies mode to every file without writing and prints one line per
// file. Read and decode failures stop the check like a rewrite would.
func Run(reg *transform.Registry, mode string, files []string, out io.Writer, logger *log.Logger) (*Summary, error) {
	tr, err := rewrite.Resolve(reg, mode, files)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stdout
	}
	sum := &Summary{}
	for _, path := range files {
		before, after, err := rewrite.Apply(path, tr)
		if err != nil {
			return sum, err
		}
		sum.Checked = append(sum.Checked, path)
		if bytes.Equal(before, after) {
			fmt.Fprintf(out, "unchanged %s (%s)\n", path, humanize.Bytes(uint64(len(before))))
			continue
		}
		sum.Changed = append(sum.Changed, path)
		fmt.Fprintf(out, "changed   %s (%s -> %s)\n", path,
			humanize.Bytes(uint64(len(before))), humanize.Bytes(uint64(len(after))))
	}
	if logger != nil {
		logger.Infof("check complete: %d of %d files would change", len(sum.Changed), len(sum.Checked))
	}
	if len(sum.Changed) > 0 {
		return sum, fmt.Errorf("%w: %d of %d", ErrWouldChange, len(sum.Changed), len(sum.Checked))
	}
	return sum, nil
}
