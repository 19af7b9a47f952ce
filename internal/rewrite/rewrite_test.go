package rewrite

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einsums/docpost/internal/config"
	"github.com/einsums/docpost/internal/log"
	"github.com/einsums/docpost/internal/transform"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func quietLogger() *log.Logger {
	return log.New(log.LevelDebug, io.Discard)
}

func TestHTMLModeKeepsContent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "line1\nline2\n")

	report, err := Run(context.Background(), Options{
		Mode:   "html",
		Files:  []string{path},
		Atomic: true,
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", readFile(t, path))
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusUnchanged, report.Results[0].Status)
	assert.Equal(t, "Identity", report.Transformer)
	assert.Equal(t, report.Results[0].SHABefore, report.Results[0].SHAAfter)
}

func TestIdentityRoundTripIsByteExact(t *testing.T) {
	contents := map[string]string{
		"empty.html":    "",
		"notail.html":   "<p>no trailing newline</p>",
		"crlf.html":     "<html>\r\n<body>\r\n</body>\r\n</html>\r\n",
		"blank.html":    "\n\n\n",
		"unicode.html":  "<p>∑ᵢ Aᵢⱼ Bⱼₖ ψ</p>\n",
		"trailing.html": "spaces   \n\ttabs\t\n",
	}
	dir := t.TempDir()
	var files []string
	for name, content := range contents {
		files = append(files, writeFile(t, dir, name, content))
	}
	for _, atomic := range []bool{true, false} {
		for i := 0; i < 2; i++ {
			_, err := Run(context.Background(), Options{Mode: "html", Files: files, Atomic: atomic})
			require.NoError(t, err)
		}
	}
	for name, content := range contents {
		assert.Equal(t, content, readFile(t, filepath.Join(dir, name)), name)
	}
}

func TestUnknownModeTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.html", "x\n")
	before, err := os.Stat(path)
	require.NoError(t, err)

	report, err := Run(context.Background(), Options{
		Mode:  "xml",
		Files: []string{path, filepath.Join(dir, "missing.html")},
	})
	require.Error(t, err)
	assert.Nil(t, report)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "xml", cfgErr.Mode)
	assert.ErrorIs(t, err, transform.ErrUnknownMode)

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
	assert.Equal(t, "x\n", readFile(t, path))
}

func TestNoFilesIsConfigurationError(t *testing.T) {
	_, err := Run(context.Background(), Options{Mode: "html"})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "at least one file")
}

func tidyRegistry(t *testing.T) *transform.Registry {
	t.Helper()
	reg := transform.NewRegistry()
	require.NoError(t, reg.AddConfigModes(&config.Config{Modes: map[string]*config.ModeConfig{
		"tidy": {Rules: []config.RuleConfig{{Type: "trimtrailingspace"}}},
	}}))
	return reg
}

func TestMissingFileFailFast(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "first.html", "a  \n")
	missing := filepath.Join(dir, "missing.html")
	last := writeFile(t, dir, "last.html", "b  \n")

	report, err := Run(context.Background(), Options{
		Mode:     "tidy",
		Files:    []string{first, missing, last},
		Registry: tidyRegistry(t),
		Atomic:   true,
	})
	require.Error(t, err)

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, missing, ioErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Equal(t, "a\n", readFile(t, first), "earlier file keeps its rewrite")
	assert.Equal(t, "b  \n", readFile(t, last), "later file is not attempted")
	require.Len(t, report.Results, 2)
	assert.Equal(t, StatusRewritten, report.Results[0].Status)
	assert.Equal(t, StatusFailed, report.Results[1].Status)
}

func TestMissingFileContinue(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "first.html", "a  \n")
	missing1 := filepath.Join(dir, "missing1.html")
	missing2 := filepath.Join(dir, "missing2.html")
	last := writeFile(t, dir, "last.html", "b  \n")

	report, err := Run(context.Background(), Options{
		Mode:            "tidy",
		Files:           []string{first, missing1, last, missing2},
		Registry:        tidyRegistry(t),
		ContinueOnError: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing1.html")
	assert.Contains(t, err.Error(), "missing2.html")
	assert.Equal(t, "a\n", readFile(t, first))
	assert.Equal(t, "b\n", readFile(t, last))
	assert.Len(t, report.Results, 4)
	assert.Len(t, report.Failed(), 2)
	assert.Equal(t, 2, report.ChangedCount())
}

func TestInvalidUTF8IsDecodeError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.html")
	original := []byte{'o', 'k', '\n', 0xff, 0xfe, '\n'}
	require.NoError(t, os.WriteFile(path, original, 0o644))

	_, err := Run(context.Background(), Options{Mode: "html", Files: []string{path}})
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "decode", ioErr.Op)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, data)
}

func TestDirectoryIsIOError(t *testing.T) {
	_, err := Run(context.Background(), Options{Mode: "html", Files: []string{t.TempDir()}})
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read", ioErr.Op)
}

func TestTransformErrorIsReported(t *testing.T) {
	reg := transform.NewRegistry()
	boom := errors.New("boom")
	require.NoError(t, reg.Register("explode", func() (transform.Transformer, error) {
		return failing{err: boom}, nil
	}))
	path := writeFile(t, t.TempDir(), "a.html", "x\n")

	_, err := Run(context.Background(), Options{Mode: "explode", Files: []string{path}, Registry: reg})
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "transform", ioErr.Op)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "x\n", readFile(t, path))
}

func TestAtomicWritePreservesModeAndSymlink(t *testing.T) {
	dir := t.TempDir()
	target := writeFile(t, dir, "real.html", "a \n")
	require.NoError(t, os.Chmod(target, 0o600))
	link := filepath.Join(dir, "link.html")
	require.NoError(t, os.Symlink(target, link))

	_, err := Run(context.Background(), Options{
		Mode:     "tidy",
		Files:    []string{link},
		Registry: tidyRegistry(t),
		Atomic:   true,
	})
	require.NoError(t, err)

	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "link is kept")

	info, err = os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, "a\n", readFile(t, target))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "temp file left behind: %s", e.Name())
	}
}

func TestCancelledContextStopsBeforeNextFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.html", "a  \n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx, Options{Mode: "tidy", Files: []string{path}, Registry: tidyRegistry(t)})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Results)
	assert.Equal(t, "a  \n", readFile(t, path))
}

func TestApplyDoesNotWrite(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.html", "a  \n")
	before, after, err := Apply(path, transform.TrimTrailingSpace{})
	require.NoError(t, err)
	assert.Equal(t, "a  \n", string(before))
	assert.Equal(t, "a\n", string(after))
	assert.Equal(t, "a  \n", readFile(t, path))
}

type failing struct{ err error }

func (failing) Name() string { return "Failing" }

func (f failing) Transform(string, []string) ([]string, error) { return nil, f.err }

func TestAtomicWriteSplitsHardLink(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.html", "a  \n")
	alias := filepath.Join(dir, "alias.html")
	require.NoError(t, os.Link(path, alias))

	_, err := Run(context.Background(), Options{Mode: "tidy", Files: []string{path}, Registry: tidyRegistry(t), Atomic: true})
	require.NoError(t, err)
	assert.Equal(t, "a\n", readFile(t, path))
	assert.Equal(t, "a  \n", readFile(t, alias), "rename leaves the other link on the old inode")
}

func TestInPlaceWriteKeepsHardLink(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.html", "a  \n")
	alias := filepath.Join(dir, "alias.html")
	require.NoError(t, os.Link(path, alias))

	_, err := Run(context.Background(), Options{Mode: "tidy", Files: []string{path}, Registry: tidyRegistry(t), Atomic: false})
	require.NoError(t, err)
	assert.Equal(t, "a\n", readFile(t, path))
	assert.Equal(t, "a\n", readFile(t, alias))

	pi, err := os.Stat(path)
	require.NoError(t, err)
	ai, err := os.Stat(alias)
	require.NoError(t, err)
	assert.True(t, os.SameFile(pi, ai))
}
