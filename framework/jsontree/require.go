package jsontree

import (
	"strings"

	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

type helper interface {
	Helper()
}

// RequireValue stops the test if the path does not exist.
func RequireValue(t require.TestingT, v ldvalue.Value, path ...string) ldvalue.Value {
	if h, ok := t.(helper); ok {
		h.Helper()
	}
	if !Has(v, path...) {
		require.Fail(t, "missing JSON property",
			"expected property %q in %s", strings.Join(path, "."), Truncate([]byte(v.JSONString())))
	}
	return Get(v, path...)
}

func requireType(t require.TestingT, v ldvalue.Value, want ldvalue.ValueType, path []string) ldvalue.Value {
	value := RequireValue(t, v, path...)
	if value.Type() != want {
		require.Fail(t, "unexpected JSON property type",
			"expected property %q to be %s but it was %s", strings.Join(path, "."), want, value.JSONString())
	}
	return value
}

func RequireString(t require.TestingT, v ldvalue.Value, path ...string) string {
	return requireType(t, v, ldvalue.StringType, path).StringValue()
}

func RequireInt(t require.TestingT, v ldvalue.Value, path ...string) int {
	return requireType(t, v, ldvalue.NumberType, path).IntValue()
}

func RequireFloat(t require.TestingT, v ldvalue.Value, path ...string) float64 {
	return requireType(t, v, ldvalue.NumberType, path).Float64Value()
}

func RequireBool(t require.TestingT, v ldvalue.Value, path ...string) bool {
	return requireType(t, v, ldvalue.BoolType, path).BoolValue()
}

func RequireObject(t require.TestingT, v ldvalue.Value, path ...string) ldvalue.Value {
	return requireType(t, v, ldvalue.ObjectType, path)
}

func RequireArray(t require.TestingT, v ldvalue.Value, path ...string) []ldvalue.Value {
	return Items(requireType(t, v, ldvalue.ArrayType, path))
}
