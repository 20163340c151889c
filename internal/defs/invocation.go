package defs

// Invocation is one component reference inside a fragment list: either a
// bare fragment name, or a name with an argument value (usually a mapping,
// sometimes a plain string such as a shell command).
type Invocation struct {
	Name string
	Args any // nil for a bare reference
}

// Bare reports whether the invocation carries no arguments.
func (inv Invocation) Bare() bool {
	return inv.Args == nil
}

// ArgsMap returns the arguments as a Map, or an empty Map when the
// arguments are absent or not a mapping.
func (inv Invocation) ArgsMap() *Map {
	if m, ok := inv.Args.(*Map); ok {
		return m
	}
	return NewMap()
}

// ParseInvocation normalizes the two reference forms found in fragment
// lists: a bare string, or a singleton mapping {name: args}.
func ParseInvocation(v any) (Invocation, error) {
	switch t := v.(type) {
	case string:
		return Invocation{Name: t}, nil
	case *Map:
		if t.Len() != 1 {
			return Invocation{}, Errorf(
				"component reference must be a name or a singleton mapping, got %d keys: %v",
				t.Len(), t.Keys())
		}
		name := t.Keys()[0]
		args, _ := t.Get(name)
		return Invocation{Name: name, Args: args}, nil
	default:
		return Invocation{}, Errorf("component reference must be a string or a mapping, got %T", v)
	}
}
