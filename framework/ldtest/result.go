package ldtest

import (
	"strings"
)

type Results struct {
	Tests    []TestResult
	Failures []TestResult
}

type TestResult struct {
	TestID  TestID
	Errors  []error
	Skipped bool
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Skipped returns the results of tests that were skipped at runtime, such as for a missing
// capability. Tests excluded by a filter never run and are not included.
func (r Results) Skipped() []TestResult {
	var ret []TestResult
	for _, t := range r.Tests {
		if t.Skipped {
			ret = append(ret, t)
		}
	}
	return ret
}

// TestID identifies a test by its path in the test tree. The root of the tree has an empty path.
type TestID struct {
	Path []string
}

// Plus returns the ID of a subtest.
func (t TestID) Plus(name string) TestID {
	path := make([]string, 0, len(t.Path)+1)
	path = append(path, t.Path...)
	return TestID{Path: append(path, name)}
}

// Parent returns the ID of the enclosing test.
func (t TestID) Parent() TestID {
	if len(t.Path) == 0 {
		return t
	}
	return TestID{Path: t.Path[:len(t.Path)-1]}
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}
