package defs

import "fmt"

// Error is the single error kind raised by the expansion pipeline. The
// message carries the taxonomy; Category, Name and Key carry whatever
// context was known at the point of failure so callers can act on it.
type Error struct {
	Category string // definition category, when known
	Name     string // definition or fragment name, when known
	Key      string // offending key, when applicable
	Msg      string
}

// Errorf creates an Error with a formatted message and no context fields.
func Errorf(format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// In returns a copy of the error annotated with category and name context.
func (e *Error) In(category, name string) *Error {
	out := *e
	out.Category = category
	out.Name = name
	return &out
}

func (e *Error) Error() string {
	return e.Msg
}
