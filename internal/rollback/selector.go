// Package rollback maps an operator directive to the control flow the
// reconciliation driver follows after a failed repair.
package rollback

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Directive tells the driver loop how to proceed
type Directive string

const (
	Continue Directive = "CONTINUE"
	Abort    Directive = "ABORT"
	Skip     Directive = "SKIP"
	Restart  Directive = "RESTART"
)

// Default is used when no directive is supplied
const Default = Restart

// ErrUnknownDirective is returned for a directive missing from the table
var ErrUnknownDirective = errors.New("unknown rollback directive")

// Directives lists every known directive
var Directives = []Directive{Continue, Abort, Skip, Restart}

func (d Directive) String() string {
	return string(d)
}

// ParseDirective converts user input, case-insensitively. Empty input is Default.
func ParseDirective(s string) (Directive, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Default, nil
	}
	d := Directive(strings.ToUpper(s))
	for _, known := range Directives {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDirective, s)
}

// Handler is the policy hook of a directive. Returning false stops the driver.
type Handler func() bool

func succeed() bool { return true }

// Selector dispatches a directive through a fixed handler table
type Selector struct {
	handlers map[Directive]Handler
}

// NewSelector returns a selector whose handlers all report success
func NewSelector() *Selector {
	s := &Selector{handlers: make(map[Directive]Handler, len(Directives))}
	for _, d := range Directives {
		s.handlers[d] = succeed
	}
	return s
}

// Register replaces the handler of a known directive
func (s *Selector) Register(d Directive, h Handler) error {
	if _, ok := s.handlers[d]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDirective, string(d))
	}
	if h == nil {
		h = succeed
	}
	s.handlers[d] = h
	return nil
}

// Select runs the handler of d. An empty directive selects Default; a
// directive not in the table fails without running anything.
func (s *Selector) Select(d Directive) (bool, error) {
	if d == "" {
		d = Default
	}
	h, ok := s.handlers[d]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownDirective, string(d))
	}
	return h(), nil
}

// Known returns the registered directives in sorted order
func (s *Selector) Known() []string {
	names := make([]string, 0, len(s.handlers))
	for d := range s.handlers {
		names = append(names, string(d))
	}
	sort.Strings(names)
	return names
}
