package jsontree

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const ratingsBody = `{
	"data": {
		"nodeRef": "workspace://SpacesStore/abc",
		"ratings": {"fiveStarRatingScheme": {"rating": 4}},
		"nodeStatistics": {
			"fiveStarRatingScheme": {"averageRating": 3.5, "ratingsCount": 2, "ratingsTotal": 7}
		},
		"tags": ["a", "b"],
		"target": null
	}
}`

type fakeT struct {
	failed  bool
	stopped bool
}

func (f *fakeT) Errorf(string, ...interface{}) { f.failed = true }
func (f *fakeT) FailNow()                      { f.stopped = true }

func TestParse(t *testing.T) {
	v, err := Parse([]byte(ratingsBody))
	require.NoError(t, err)
	assert.Equal(t, ldvalue.ObjectType, v.Type())

	_, err = Parse([]byte(`{"data": `))
	assert.Error(t, err)

	_, err = Parse([]byte("  "))
	assert.Error(t, err)
}

func TestGetAndHas(t *testing.T) {
	v, err := Parse([]byte(ratingsBody))
	require.NoError(t, err)

	assert.Equal(t, "workspace://SpacesStore/abc", Get(v, "data", "nodeRef").StringValue())
	assert.Equal(t, 7, Get(v, "data", "nodeStatistics", "fiveStarRatingScheme", "ratingsTotal").IntValue())
	assert.Equal(t, "b", Get(v, "data", "tags", "1").StringValue())
	assert.True(t, Get(v, "data", "missing", "deeper").IsNull())

	assert.True(t, Has(v, "data", "target"))
	assert.True(t, Has(v, "data", "tags", "0"))
	assert.False(t, Has(v, "data", "tags", "2"))
	assert.False(t, Has(v, "data", "nodeRef", "x"))
	assert.False(t, Has(v, "data", "likesRatingScheme"))
}

func TestItemsStringsAndPluck(t *testing.T) {
	v := ldvalue.ArrayOf(
		ldvalue.ObjectBuild().Set("name", ldvalue.String("x")).Build(),
		ldvalue.ObjectBuild().Set("name", ldvalue.String("y")).Build(),
	)
	assert.Len(t, Items(v), 2)
	assert.Nil(t, Items(ldvalue.String("no")))
	assert.Equal(t, []string{"x", "y"}, Pluck(v, "name"))
	assert.Equal(t, []string{"a", "c"}, Strings(ldvalue.ArrayOf(ldvalue.String("a"), ldvalue.Int(1), ldvalue.String("c"))))
}

func TestRequireFunctions(t *testing.T) {
	v, err := Parse([]byte(ratingsBody))
	require.NoError(t, err)

	assert.Equal(t, "workspace://SpacesStore/abc", RequireString(t, v, "data", "nodeRef"))
	assert.Equal(t, 3.5, RequireFloat(t, v, "data", "nodeStatistics", "fiveStarRatingScheme", "averageRating"))
	assert.Equal(t, 2, RequireInt(t, v, "data", "nodeStatistics", "fiveStarRatingScheme", "ratingsCount"))
	assert.Len(t, RequireArray(t, v, "data", "tags"), 2)
	assert.Equal(t, ldvalue.ObjectType, RequireObject(t, v, "data", "ratings").Type())

	missing := &fakeT{}
	RequireString(missing, v, "data", "title")
	assert.True(t, missing.failed)
	assert.True(t, missing.stopped)

	wrongType := &fakeT{}
	RequireBool(wrongType, v, "data", "nodeRef")
	assert.True(t, wrongType.failed)
}

func TestKeys(t *testing.T) {
	v, err := Parse([]byte(ratingsBody))
	require.NoError(t, err)
	assert.Equal(t, []string{"nodeRef", "nodeStatistics", "ratings", "tags", "target"}, Keys(Get(v, "data")))
	assert.Nil(t, Keys(Get(v, "data", "tags")))
	assert.Nil(t, Keys(Get(v, "missing")))
}

func TestTruncate(t *testing.T) {
	short := `{"a":1}`
	assert.Equal(t, short, Truncate([]byte(short)))

	long := strings.Repeat("x", maxQuotedBody+10)
	assert.Equal(t, long[:maxQuotedBody]+"...", Truncate([]byte(long)))
}

func TestTruncateKeepsMultiByteCharactersWhole(t *testing.T) {
	// "é" is two bytes, so with an odd prefix the cut lands inside one of them.
	body := "x" + strings.Repeat("é", maxQuotedBody)
	s := Truncate([]byte(body))
	require.True(t, strings.HasSuffix(s, "..."))
	trimmed := strings.TrimSuffix(s, "...")
	assert.True(t, utf8.ValidString(trimmed), "truncated text should be valid UTF-8: %q", trimmed)
	assert.LessOrEqual(t, len(trimmed), maxQuotedBody)
	assert.Equal(t, maxQuotedBody-1, len(trimmed))
}
