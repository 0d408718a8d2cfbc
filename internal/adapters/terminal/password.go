package terminal

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TermPassword reads from the terminal on in with echo off. It returns nil when in is not a
// terminal, leaving the shell to read passwords as ordinary lines.
func TermPassword(in *os.File, out io.Writer) PasswordReader {
	if !IsTerminal(in) {
		return nil
	}
	fd := int(in.Fd())
	return func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
}
