package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/absfs/deniable"
	"golang.org/x/term"
)

var errPasswordMismatch = errors.New("passwords didn't match")

// prompter reads operator answers. Passwords are read without echo when
// input is a terminal and as plain lines otherwise.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int // terminal file descriptor, or -1
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
	}
	return p
}

func (p *prompter) line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	s, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// Password reads one password
func (p *prompter) Password(prompt string) ([]byte, error) {
	if p.fd < 0 {
		s, err := p.line(prompt)
		return []byte(s), err
	}
	fmt.Fprint(p.out, prompt)
	pw, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	return pw, err
}

// NewPassword reads a non-empty password twice until both entries match
func (p *prompter) NewPassword(prompt string) ([]byte, error) {
	for {
		pw, err := p.Password(prompt)
		if err != nil {
			return nil, err
		}
		if len(pw) == 0 {
			fmt.Fprintln(p.out, "Password cannot be empty!")
			continue
		}
		again, err := p.Password("Re-enter: ")
		if err != nil {
			return nil, err
		}
		if bytes.Equal(pw, again) {
			return pw, nil
		}
		fmt.Fprintf(p.out, "%s!\n", capitalize(errPasswordMismatch.Error()))
	}
}

// Bool asks a yes/no question; an empty answer picks def
func (p *prompter) Bool(prompt string, def bool) (bool, error) {
	suffix := " (y/N) "
	if def {
		suffix = " (Y/n) "
	}
	for {
		s, err := p.line(prompt + suffix)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, `Enter "Y" or "N"...`)
	}
}

// Blocks reads a block count or suffixed size, asking again on bad input
// or when the value is not below limit (0 means no limit)
func (p *prompter) Blocks(prompt string, blockSize int, limit uint64, tooBig string) (uint64, error) {
	for {
		s, err := p.line(prompt)
		if err != nil {
			return 0, err
		}
		n, err := deniable.ParseBlocks(s, blockSize)
		if err != nil {
			continue
		}
		if limit > 0 && n >= limit {
			fmt.Fprintln(p.out, tooBig)
			continue
		}
		return n, nil
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
