package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	authsession "github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/navigation"
)

// syncWriter serializes writes from the event loop, provider workers and the
// command goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// terminal renders navigation and messages as lines of text.
type terminal struct {
	out io.Writer
}

var (
	_ navigation.Navigator = (*terminal)(nil)
	_ navigation.Notifier  = (*terminal)(nil)
)

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out}
}

func (t *terminal) Navigate(_ context.Context, dest navigation.Destination, clearBackStack bool) error {
	if clearBackStack {
		_, err := fmt.Fprintf(t.out, "navigate: %s (back stack cleared)\n", dest)
		return err
	}
	_, err := fmt.Fprintf(t.out, "navigate: %s\n", dest)
	return err
}

func (t *terminal) Notify(_ context.Context, message string) error {
	_, err := fmt.Fprintf(t.out, "! %s\n", message)
	return err
}

// progress shows the loading indicator.
func (t *terminal) progress(state authsession.AuthState) {
	switch state.Method {
	case authsession.MethodFederated:
		fmt.Fprintln(t.out, "Waiting for account selection...")
	default:
		fmt.Fprintln(t.out, "Signing in...")
	}
}
