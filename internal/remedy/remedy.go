// Package remedy attaches ordered "next steps" to errors so every failure
// reaching the operator carries a remediation hint instead of a bare message.
package remedy

import (
	"errors"
	"fmt"
	"strings"
)

// Error wraps an underlying error with remediation steps.
type Error struct {
	Err   error
	Steps []string
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches steps to err. A nil err yields nil.
func Wrap(err error, steps ...string) error {
	if err == nil {
		return nil
	}
	return &Error{Err: err, Steps: steps}
}

// Wrapf formats a message around a sentinel and attaches steps.
//
//	remedy.Wrapf(ErrTeamNotFound, []string{"List teams: agent-tasks teams list"}, "team %q", id)
func Wrapf(sentinel error, steps []string, format string, args ...any) error {
	return &Error{
		Err:   fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel),
		Steps: steps,
	}
}

// Steps returns the remediation steps of the outermost remedy.Error in the
// chain, or nil.
func Steps(err error) []string {
	var re *Error
	if errors.As(err, &re) {
		return re.Steps
	}
	return nil
}

// Format renders an error and its steps the way the CLI prints them.
func Format(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("❌ Error: ")
	b.WriteString(err.Error())
	b.WriteString("\n")
	if steps := Steps(err); len(steps) > 0 {
		b.WriteString("\nNext steps:\n")
		for i, s := range steps {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
		}
	}
	return b.String()
}
