package reactive

// Mode selects how a wrapper behaves on reads and writes.
//
//   - Mutable: writes trigger subscribers, nested containers are wrapped
//     lazily on access.
//   - Readonly: writes are rejected with a diagnostic, nested containers are
//     wrapped readonly on access.
//   - ShallowMutable / ShallowReadonly: only root-level access is
//     intercepted; nested values are returned as-is and cells are not
//     unwrapped.
type Mode int

const (
	Mutable Mode = iota
	Readonly
	ShallowMutable
	ShallowReadonly
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case Mutable:
		return "mutable"
	case Readonly:
		return "readonly"
	case ShallowMutable:
		return "shallow-mutable"
	case ShallowReadonly:
		return "shallow-readonly"
	default:
		return "unknown"
	}
}

// readonly reports whether writes through this mode are rejected.
func (m Mode) readonly() bool {
	return m == Readonly || m == ShallowReadonly
}

// shallow reports whether nested values skip interception.
func (m Mode) shallow() bool {
	return m == ShallowMutable || m == ShallowReadonly
}
