package rewrite

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/moby/sys/atomicwriter"
	"golang.org/x/text/encoding"
	xtransform "golang.org/x/text/transform"

	"github.com/einsums/docpost/internal/log"
	"github.com/einsums/docpost/internal/transform"
)

type Status string

const (
	StatusRewritten Status = "rewritten"
	StatusUnchanged Status = "unchanged"
	StatusFailed    Status = "failed"
)

type Options struct {
	Mode            string
	Files           []string
	Registry        *transform.Registry
	ContinueOnError bool
	Atomic          bool
	Logger          *log.Logger
}

type Result struct {
	Path        string
	Status      Status
	BytesBefore int64
	BytesAfter  int64
	SHABefore   string
	SHAAfter    string
	Err         error
}

func (r Result) Changed() bool {
	return r.Status == StatusRewritten
}

type Report struct {
	Mode        string
	Transformer string
	Started     time.Time
	Finished    time.Time
	Results     []Result
}

func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

func (r *Report) ChangedCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Changed() {
			n++
		}
	}
	return n
}

// Resolve validates the invocation and returns the transformer for its
// mode. No file is touched.
func Resolve(registry *transform.Registry, mode string, files []string) (transform.Transformer, error) {
	if len(files) == 0 {
		return nil, &ConfigurationError{Mode: mode, Reason: "at least one file is required"}
	}
	if registry == nil {
		registry = transform.NewRegistry()
	}
	tr, err := registry.Build(mode)
	if err != nil {
		return nil, &ConfigurationError{Mode: mode, Err: err}
	}
	return tr, nil
}

// Run rewrites every file in order. With ContinueOnError unset the first
// failing file stops the run; files already written stay written.
func Run(ctx context.Context, opts Options) (*Report, error) {
	tr, err := Resolve(opts.Registry, opts.Mode, opts.Files)
	if err != nil {
		return nil, err
	}
	report := &Report{Mode: opts.Mode, Transformer: tr.Name(), Started: time.Now()}
	var errs []error
	for _, path := range opts.Files {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res := rewriteFile(path, tr, opts.Atomic)
		report.Results = append(report.Results, res)
		if res.Err != nil {
			if opts.Logger != nil {
				opts.Logger.Debugf("%s: %v", path, res.Err)
			}
			errs = append(errs, res.Err)
			if !opts.ContinueOnError {
				break
			}
			continue
		}
		if opts.Logger != nil {
			opts.Logger.Debugf("%s: %s (%s -> %s)", path, res.Status,
				humanize.Bytes(uint64(res.BytesBefore)), humanize.Bytes(uint64(res.BytesAfter)))
		}
	}
	report.Finished = time.Now()
	if opts.Logger != nil {
		opts.Logger.Infof("mode %s: %d of %d files rewritten, %d failed",
			opts.Mode, report.ChangedCount(), len(report.Results), len(report.Failed()))
	}
	return report, errors.Join(errs...)
}

// Apply reads path and runs it through tr without writing anything. The
// returned slices are the original and transformed contents.
func Apply(path string, tr transform.Transformer) (before, after []byte, err error) {
	before, err = os.ReadFile(path)
	if err != nil {
		return nil, nil, &IOError{Path: path, Op: "read", Err: err}
	}
	if err := validUTF8(before); err != nil {
		return before, nil, &IOError{Path: path, Op: "decode", Err: err}
	}
	lines, err := tr.Transform(path, transform.SplitLines(string(before)))
	if err != nil {
		return before, nil, &IOError{Path: path, Op: "transform", Err: err}
	}
	after = []byte(transform.JoinLines(lines))
	if err := validUTF8(after); err != nil {
		return before, nil, &IOError{Path: path, Op: "encode", Err: err}
	}
	return before, after, nil
}

func rewriteFile(path string, tr transform.Transformer, atomic bool) Result {
	res := Result{Path: path, Status: StatusFailed}
	info, err := os.Stat(path)
	if err != nil {
		res.Err = &IOError{Path: path, Op: "read", Err: err}
		return res
	}
	if info.IsDir() {
		res.Err = &IOError{Path: path, Op: "read", Err: fmt.Errorf("is a directory")}
		return res
	}
	before, after, err := Apply(path, tr)
	if before != nil {
		res.BytesBefore = int64(len(before))
		res.SHABefore = digest(before)
	}
	if err != nil {
		res.Err = err
		return res
	}
	res.BytesAfter = int64(len(after))
	res.SHAAfter = digest(after)
	if bytes.Equal(before, after) {
		res.Status = StatusUnchanged
		return res
	}
	if atomic {
		err = writeAtomic(path, after, info.Mode().Perm())
	} else {
		err = writeInPlace(path, after)
	}
	if err != nil {
		res.Err = &IOError{Path: path, Op: "write", Err: err}
		return res
	}
	res.Status = StatusRewritten
	return res
}

// writeAtomic replaces the file through a temporary sibling and a rename.
// Symlinks are resolved first so the link itself survives.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return err
	}
	return atomicwriter.WriteFile(target, data, perm)
}

func writeInPlace(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = f.Write(data)
	return err
}

func validUTF8(data []byte) error {
	_, _, err := xtransform.Bytes(encoding.UTF8Validator, data)
	return err
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
