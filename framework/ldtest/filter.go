package ldtest

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter is a function that can determine whether to run a specific test or not.
type Filter func(TestID) bool

// RegexFilters selects tests the same way "go test -run" and "-skip" do: each pattern is split
// on "/" and every element is matched, unanchored, against the test name at the same depth.
type RegexFilters struct {
	MustMatch    RegexList
	MustNotMatch RegexList
}

// AsFilter reports whether the test should run. A test runs if it is selected by MustMatch (or
// MustMatch is empty), and it is not selected by MustNotMatch.
func (r RegexFilters) AsFilter(id TestID) bool {
	return (!r.MustMatch.IsDefined() || r.MustMatch.matchesRun(id)) &&
		!r.MustNotMatch.matchesSkip(id)
}

// RegexList is a list of slash-separated regex patterns. It implements the flag/pflag Value
// interface so it can be used for a repeatable command-line option.
type RegexList struct {
	raw      []string
	patterns [][]*regexp.Regexp
}

func (r RegexList) String() string {
	var ss []string
	for _, p := range r.raw {
		ss = append(ss, `"`+p+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser
func (r *RegexList) Set(value string) error {
	var levels []*regexp.Regexp
	for _, element := range strings.Split(value, "/") {
		rx, err := regexp.Compile(element)
		if err != nil {
			return fmt.Errorf("invalid regex %q: %w", element, err)
		}
		levels = append(levels, rx)
	}
	r.raw = append(r.raw, value)
	r.patterns = append(r.patterns, levels)
	return nil
}

func (r *RegexList) Type() string {
	return "regex"
}

func (r RegexList) IsDefined() bool {
	return len(r.patterns) != 0
}

// A test matches a run pattern if every pattern element that is deep enough to apply to it
// matches. Ancestors of a selected test therefore always match.
func (r RegexList) matchesRun(id TestID) bool {
	for _, p := range r.patterns {
		if levelsMatch(p, id.Path) {
			return true
		}
	}
	return false
}

// A test matches a skip pattern only if it is at least as deep as the pattern, so a skip
// pattern never excludes the ancestors of the tests it names.
func (r RegexList) matchesSkip(id TestID) bool {
	for _, p := range r.patterns {
		if len(id.Path) >= len(p) && levelsMatch(p, id.Path) {
			return true
		}
	}
	return false
}

func levelsMatch(pattern []*regexp.Regexp, path []string) bool {
	for i := 0; i < len(pattern) && i < len(path); i++ {
		if !pattern[i].MatchString(path[i]) {
			return false
		}
	}
	return true
}

// ExactPattern returns a pattern that selects exactly the specified test and its subtests.
func ExactPattern(id TestID) string {
	elements := make([]string, 0, len(id.Path))
	for _, name := range id.Path {
		elements = append(elements, "^"+regexp.QuoteMeta(name)+"$")
	}
	return strings.Join(elements, "/")
}
