// Package prompt reads credential fields and secrets from an interactive
// shell. Secrets are read without echo when the input is a terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/atinyakov/passvault/internal/service"
)

// ErrEOF indicates the input ended before the answer was read.
var ErrEOF = errors.New("prompt: unexpected end of input")

// Prompter asks questions on out and reads answers from in. Lines and
// secrets share one buffered reader.
type Prompter struct {
	in      *bufio.Reader
	out     io.Writer
	fd      int
	noEcho  bool
	readRaw func(fd int) ([]byte, error)
}

// New returns a Prompter. Secret answers are read without echo if in is a
// terminal.
func New(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out, readRaw: term.ReadPassword}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd, p.noEcho = int(f.Fd()), true
	}
	return p
}

// readLine returns the next line without its line ending. A last line
// without a newline is still returned.
func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if line == "" {
			return "", ErrEOF
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Line prints label and returns the trimmed answer.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	s, err := p.readLine()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// Optional is Line returning nil for an empty answer.
func (p *Prompter) Optional(label string) (*string, error) {
	s, err := p.Line(label)
	if err != nil || s == "" {
		return nil, err
	}
	return &s, nil
}

// Secret prints label and reads an answer without echoing it. The answer is
// not trimmed. Input already buffered, such as pasted lines, is consumed
// first; it has been echoed by the terminal anyway.
func (p *Prompter) Secret(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.noEcho || p.in.Buffered() > 0 {
		return p.readLine()
	}

	b, err := p.readRaw(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return string(b), nil
}

// NewSecret asks for a secret twice and fails if the answers differ.
func (p *Prompter) NewSecret(label string) (string, error) {
	first, err := p.Secret(label)
	if err != nil {
		return "", err
	}
	second, err := p.Secret("Repeat to confirm: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("secrets do not match")
	}
	return first, nil
}

// Confirm asks a yes/no question; anything but y or yes is no.
func (p *Prompter) Confirm(label string) (bool, error) {
	s, err := p.Line(label + " [y/N]: ")
	if err != nil {
		return false, err
	}
	s = strings.ToLower(s)
	return s == "y" || s == "yes", nil
}

// PromptForCredential asks for every field of a new credential. categoryID is
// used as-is; an empty value means uncategorized.
func (p *Prompter) PromptForCredential(categoryID string) (service.NewCredential, error) {
	var (
		in  = service.NewCredential{CategoryID: categoryID}
		err error
	)
	if in.Title, err = p.Line("Title: "); err != nil {
		return in, err
	}
	if in.Username, err = p.Line("Username: "); err != nil {
		return in, err
	}
	if in.Secret, err = p.NewSecret("Secret (will be encrypted): "); err != nil {
		return in, err
	}
	if in.Website, err = p.Optional("Website (optional): "); err != nil {
		return in, err
	}
	if in.Notes, err = p.Optional("Notes (optional): "); err != nil {
		return in, err
	}
	return in, nil
}

// PromptEditCredential asks for changes to an existing credential. Empty
// answers keep the current value. The returned secret is nil unless the user
// chose to replace it.
func (p *Prompter) PromptEditCredential() (service.CredentialPatch, *string, error) {
	var patch service.CredentialPatch
	var err error
	if patch.Title, err = p.Optional("New title (leave empty to keep): "); err != nil {
		return patch, nil, err
	}
	if patch.Username, err = p.Optional("New username (leave empty to keep): "); err != nil {
		return patch, nil, err
	}
	if patch.Website, err = p.Optional("New website (leave empty to keep): "); err != nil {
		return patch, nil, err
	}
	if patch.Notes, err = p.Optional("New notes (leave empty to keep): "); err != nil {
		return patch, nil, err
	}

	replace, err := p.Confirm("Replace the secret?")
	if err != nil || !replace {
		return patch, nil, err
	}
	secret, err := p.NewSecret("New secret: ")
	if err != nil {
		return patch, nil, err
	}
	return patch, &secret, nil
}
