// Package console runs the interactive prompt loop.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"home-dispatch/internal/application"
)

const banner = `Smart home assistant ready. Try:
  - Turn on the kitchen light and set the thermostat to 21.5
  - Play some jazz
  - What's the status?
Type "exit" or "quit" to leave, "reset" to forget the conversation.`

// REPL reads one command per line and prints the response followed by the
// status snapshot.
type REPL struct {
	session *application.Session
	in      io.Reader
	out     io.Writer
}

// New starts a console session that remembers the last historyTurns
// exchanges.
func New(dispatcher *application.Dispatcher, historyTurns int, in io.Reader, out io.Writer) *REPL {
	return &REPL{
		session: dispatcher.NewSession(historyTurns),
		in:      in,
		out:     out,
	}
}

// Run returns nil on exit/quit or end of input, and ctx.Err() when the
// context ends first.
func (r *REPL) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	fmt.Fprintln(r.out, banner)

	for {
		fmt.Fprint(r.out, "\nYou: ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return ctx.Err()
		case err := <-readErr:
			fmt.Fprintln(r.out)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			return nil
		case line = <-lines:
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "exit", "quit":
			fmt.Fprintln(r.out, "Bye!")
			return nil
		case "reset":
			r.session.Reset()
			fmt.Fprintln(r.out, "Conversation cleared.")
			continue
		}

		res := r.session.Handle(ctx, line)
		fmt.Fprintf(r.out, "\nAssistant: %s\n\n%s\n", res.Response(), res.Status)
	}
}
