package wl

import "fmt"

// Interface identifies a global advertised by the registry.
type Interface struct {
	Name    string
	Version uint32
}

// Is reports whether the global satisfies the named interface at at
// least the given version.
func (i Interface) Is(name string, version uint32) bool {
	return (i.Name == name) && (i.Version >= version)
}

func eventName(names []string, op uint16) string {
	if int(op) < len(names) {
		return names[op]
	}
	return fmt.Sprintf("unknown(%v)", op)
}
