package ldtest

// Capabilities is a list of optional features declared by the platform under test.
type Capabilities []string

func (c Capabilities) Has(name string) bool {
	for _, n := range c {
		if n == name {
			return true
		}
	}
	return false
}

// HasAll returns true if every one of the specified names is present.
func (c Capabilities) HasAll(names ...string) bool {
	for _, n := range names {
		if !c.Has(n) {
			return false
		}
	}
	return true
}
