package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ashureev/authchat/internal/domain"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	fieldStyle   = lipgloss.NewStyle().Faint(true)
)

// prompter reads form values from the terminal. Secrets are read without
// echo when stdin is a terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok {
		p.fd = int(f.Fd())
		p.tty = term.IsTerminal(p.fd)
	}
	return p
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	s, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (p *prompter) secret(label string) (string, error) {
	if !p.tty {
		return p.line(label)
	}
	fmt.Fprintf(p.out, "%s: ", label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return string(b), nil
}

// printer implements controller.Effects for one command. Notices are
// printed as they arrive; the first navigation is kept for the caller.
type printer struct {
	out   io.Writer
	route domain.Route
}

func (p *printer) Navigate(route domain.Route) {
	if p.route == "" {
		p.route = route
	}
}

func (p *printer) Notify(n domain.Notice) {
	if n.Kind == domain.NoticeError {
		fmt.Fprintln(p.out, errorStyle.Render("✗ "+n.Text))
		return
	}
	fmt.Fprintln(p.out, successStyle.Render("✓ "+n.Text))
}

func printFieldErrors(w io.Writer, errs domain.FieldErrors) {
	for _, f := range domain.Fields {
		if msg := errs.Get(f); msg != "" {
			fmt.Fprintf(w, "  %s %s\n", fieldStyle.Render(string(f)+":"), msg)
		}
	}
}
