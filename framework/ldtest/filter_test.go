package ldtest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(s string) TestID {
	if s == "" {
		return TestID{}
	}
	return TestID{Path: strings.Split(s, "/")}
}

func TestRunPatternSelectsAncestorsAndDescendants(t *testing.T) {
	var f RegexFilters
	require.NoError(t, f.MustMatch.Set("sites/member"))

	assert.True(t, f.AsFilter(id("sites")))
	assert.True(t, f.AsFilter(id("sites/memberships")))
	assert.True(t, f.AsFilter(id("sites/memberships/add member")))
	assert.False(t, f.AsFilter(id("sites/invitations")))
	assert.False(t, f.AsFilter(id("forum")))
}

func TestSkipPatternDoesNotExcludeAncestors(t *testing.T) {
	var f RegexFilters
	require.NoError(t, f.MustNotMatch.Set("replication/run"))

	assert.True(t, f.AsFilter(id("replication")))
	assert.False(t, f.AsFilter(id("replication/run definition")))
	assert.False(t, f.AsFilter(id("replication/run definition/cancel")))
	assert.True(t, f.AsFilter(id("replication/crud")))
}

func TestInvalidPatternIsRejected(t *testing.T) {
	var list RegexList
	assert.Error(t, list.Set("forum/[unclosed"))
	assert.False(t, list.IsDefined())
}

func TestRegexListString(t *testing.T) {
	var list RegexList
	require.NoError(t, list.Set("a"))
	require.NoError(t, list.Set("b/c"))
	assert.Equal(t, `"a" or "b/c"`, list.String())
	assert.Equal(t, "regex", list.Type())
}

func TestExactPatternSelectsOnlyThatTest(t *testing.T) {
	target := id("forum/list topics (paged)")
	var f RegexFilters
	require.NoError(t, f.MustMatch.Set(ExactPattern(target)))

	assert.True(t, f.AsFilter(id("forum")))
	assert.True(t, f.AsFilter(target))
	assert.False(t, f.AsFilter(id("forum/list topics")))
	assert.False(t, f.AsFilter(id("forums")))
}
