package plan

import (
	"fmt"
	"io"
	"os"

	"github.com/einsums/docpost/internal/log"
	"github.com/einsums/docpost/internal/transform"
)

// Run prints every registered mode with the transformer it resolves to.
func Run(reg *transform.Registry, out io.Writer, logger *log.Logger) error {
	if reg == nil {
		reg = transform.NewRegistry()
	}
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintln(out, "Modes:")
	for _, mode := range reg.Modes() {
		tr, err := reg.Build(mode)
		if err != nil {
			return fmt.Errorf("mode %s: %w", mode, err)
		}
		fmt.Fprintf(out, "- %s: %s\n", mode, tr.Name())
	}
	if logger != nil {
		logger.Infof("plan complete")
	}
	return nil
}
