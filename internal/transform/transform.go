package transform

import (
	"fmt"
	"regexp"
	"strings"
)

// Transformer rewrites the lines of one file. Lines keep their terminators
// and the result is written back verbatim, so a transformer that drops a
// terminator changes the file layout.
type Transformer interface {
	Name() string
	Transform(file string, lines []string) ([]string, error)
}

// SplitLines splits s after every '\n'. Joining the result reproduces s
// byte for byte; a final line without a terminator is kept as is.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func JoinLines(lines []string) string {
	return strings.Join(lines, "")
}

// splitEOL separates a line from its terminator ("\r\n", "\n" or none).
func splitEOL(line string) (body, eol string) {
	if strings.HasSuffix(line, "\r\n") {
		return line[:len(line)-2], "\r\n"
	}
	if strings.HasSuffix(line, "\n") {
		return line[:len(line)-1], "\n"
	}
	return line, ""
}

type Identity struct{}

func (Identity) Name() string { return "Identity" }

func (Identity) Transform(file string, lines []string) ([]string, error) {
	return lines, nil
}

type TrimTrailingSpace struct{}

func (TrimTrailingSpace) Name() string { return "TrimTrailingSpace" }

func (TrimTrailingSpace) Transform(file string, lines []string) ([]string, error) {
	out := make([]string, len(lines))
	for i, line := range lines {
		body, eol := splitEOL(line)
		out[i] = strings.TrimRight(body, " \t") + eol
	}
	return out, nil
}

type NormalizeNewlines struct{}

func (NormalizeNewlines) Name() string { return "NormalizeNewlines" }

func (NormalizeNewlines) Transform(file string, lines []string) ([]string, error) {
	out := make([]string, len(lines))
	for i, line := range lines {
		body, eol := splitEOL(line)
		if eol != "" {
			eol = "\n"
		}
		out[i] = body + eol
	}
	return out, nil
}

// RegexReplace applies a replacement to each line body. The terminator is
// never visible to the pattern.
type RegexReplace struct {
	re   *regexp.Regexp
	repl string
}

func NewRegexReplace(pattern, repl string) (*RegexReplace, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &RegexReplace{re: re, repl: repl}, nil
}

func (t *RegexReplace) Name() string { return "RegexReplace" }

func (t *RegexReplace) Transform(file string, lines []string) ([]string, error) {
	out := make([]string, len(lines))
	for i, line := range lines {
		body, eol := splitEOL(line)
		out[i] = t.re.ReplaceAllString(body, t.repl) + eol
	}
	return out, nil
}

// Chain runs its steps in order, feeding each step the previous output.
type Chain struct {
	steps []Transformer
}

func NewChain(steps ...Transformer) *Chain {
	return &Chain{steps: steps}
}

func (t *Chain) Name() string {
	names := make([]string, len(t.steps))
	for i, s := range t.steps {
		names[i] = s.Name()
	}
	return "Chain(" + strings.Join(names, ", ") + ")"
}

func (t *Chain) Transform(file string, lines []string) ([]string, error) {
	var err error
	for _, s := range t.steps {
		lines, err = s.Transform(file, lines)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name(), err)
		}
	}
	return lines, nil
}
