package kernel

import "fmt"

// Error reports a geometry operation the kernel rejected, such as a box
// with a non-positive extent or a profile that does not form a polygon.
// Generators and the composer propagate it wrapped, so callers can recover
// it with errors.As.
type Error struct {
	Op  string // kernel operation, e.g. "box", "extrude"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("kernel: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds an *Error for op.
func Errorf(op, format string, args ...any) error {
	return &Error{Op: op, Err: fmt.Errorf(format, args...)}
}
