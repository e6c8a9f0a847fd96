package vm

import (
	"fmt"
	"strings"
)

// StackFrame is one call-stack entry captured at the moment an uncaught
// exception reaches the embedder (spec.md §6 "Traceback assembly"):
// which function was running and the source line that function was
// declared on.
type StackFrame struct {
	Name       string
	SourceLine int
}

// RuntimeError is a raised-but-uncaught lily exception surfaced to the
// embedder, carrying the call stack active when it escaped every `try`
// (adapted from the teacher's StackFrame/RuntimeError shape).
type RuntimeError struct {
	ClassName string
	Message   string
	Stack     []StackFrame
}

// Error implements the error interface, rendering the traceback the way
// spec.md §6/§7 describe it: innermost frame first, then each caller.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.ClassName, e.Message)
	if len(e.Stack) > 0 {
		b.WriteString("\nTraceback:")
		for i := len(e.Stack) - 1; i >= 0; i-- {
			f := e.Stack[i]
			fmt.Fprintf(&b, "\n    from %s", f.Name)
			if f.SourceLine > 0 {
				fmt.Fprintf(&b, " (line %d)", f.SourceLine)
			}
		}
	}
	return b.String()
}

func newRuntimeError(className, message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{ClassName: className, Message: message, Stack: stack}
}
