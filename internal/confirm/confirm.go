package confirm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ErrNotInteractive is returned when a prompt is needed but stdin is not a terminal.
var ErrNotInteractive = errors.New("confirmation required: stdin is not a terminal (use --yes)")

var affirmative = map[string]bool{
	"s":   true,
	"si":  true,
	"sí":  true,
	"y":   true,
	"yes": true,
}

// IsAffirmative reports whether answer accepts the prompt.
func IsAffirmative(answer string) bool {
	return affirmative[strings.ToLower(strings.TrimSpace(answer))]
}

// Ask writes question to out and reads one line from in. EOF counts as no.
func Ask(in io.Reader, out io.Writer, question string) (bool, error) {
	if _, err := fmt.Fprintf(out, "%s [s/N]: ", question); err != nil {
		return false, err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	return IsAffirmative(line), nil
}

// Gate decides whether a destructive action may proceed. assumeYes skips the
// prompt; otherwise stdin must be a terminal.
type Gate struct {
	In        io.Reader
	Out       io.Writer
	AssumeYes bool
	// Interactive overrides terminal detection when non-nil.
	Interactive func() bool
}

// Confirm returns true to proceed, false when the operator declined.
func (g Gate) Confirm(question string) (bool, error) {
	if g.AssumeYes {
		return true, nil
	}
	interactive := g.Interactive
	if interactive == nil {
		interactive = stdinIsTerminal
	}
	if !interactive() {
		return false, ErrNotInteractive
	}
	return Ask(g.In, g.Out, question)
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
