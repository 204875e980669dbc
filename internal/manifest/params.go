package manifest

// A declared build parameter.
type Param struct {
	Name    string // Parameter name, referenced in manifests as param.<name>.
	Default string // Value used when no override is supplied.
}

// Resolves declared parameters against caller-supplied overrides.
//
// For every declared parameter the resolved value is the override when the
// overrides map contains that name, else the declared default. An override
// naming an undeclared parameter fails with [UnknownParameterError]; silently
// ignoring a misspelled override would mask the mistake until the resulting
// image misbehaves. Resolution happens exactly once, before any stage is
// constructed, and has no side effects.
func ResolveParams(declared []Param, overrides map[string]string) (map[string]string, error) {
	names := make(map[string]bool, len(declared))
	for _, p := range declared {
		names[p.Name] = true
	}

	for name := range overrides {
		if !names[name] {
			return nil, &UnknownParameterError{Name: name}
		}
	}

	values := make(map[string]string, len(declared))
	for _, p := range declared {
		if v, ok := overrides[p.Name]; ok {
			values[p.Name] = v
			continue
		}
		values[p.Name] = p.Default
	}

	return values, nil
}
