// Package prompt reads user input either interactively (pterm) or, in non-interactive
// mode, line by line from the command's stdin.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
)

// Reader collects answers for one command invocation.
type Reader struct {
	nonInteractive bool
	lines          *bufio.Scanner
}

// New returns a Reader. In non-interactive mode answers are read from in, one per line.
func New(in io.Reader, nonInteractive bool) *Reader {
	return &Reader{nonInteractive: nonInteractive, lines: bufio.NewScanner(in)}
}

// Text returns value when set, otherwise asks for label.
func (r *Reader) Text(label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	if r.nonInteractive {
		return r.line(label)
	}
	return pterm.DefaultInteractiveTextInput.Show(label)
}

// Secret asks for label without echoing it.
func (r *Reader) Secret(label string) (string, error) {
	if r.nonInteractive {
		return r.line(label)
	}
	return pterm.DefaultInteractiveTextInput.WithMask("*").Show(label)
}

func (r *Reader) line(label string) (string, error) {
	if !r.lines.Scan() {
		if err := r.lines.Err(); err != nil {
			return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
		}
		return "", errors.New(strings.ToLower(label) + " is required (non-interactive mode reads it from stdin)")
	}
	return strings.TrimRight(r.lines.Text(), "\r"), nil
}
