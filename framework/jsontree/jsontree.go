// Package jsontree reads JSON response bodies into a generic tree and extracts fields from it.
//
// Lookups never fail by themselves: a missing property or index yields a null value. The
// Require functions are for test code, and stop the test if a field is absent or has the
// wrong type.
package jsontree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const maxQuotedBody = 300

// Parse reads a JSON document. Unlike ldvalue.Parse, it reports malformed input as an error.
func Parse(data []byte) (ldvalue.Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return ldvalue.Null(), errors.New("response body was empty")
	}
	var v ldvalue.Value
	if err := json.Unmarshal(data, &v); err != nil {
		return ldvalue.Null(), fmt.Errorf("malformed JSON (%s): %s", err, Truncate(data))
	}
	return v, nil
}

// Get walks the tree along the path. Each element is an object key, or an index if the current
// value is an array.
func Get(v ldvalue.Value, path ...string) ldvalue.Value {
	for _, p := range path {
		v, _ = step(v, p)
	}
	return v
}

// Has returns true if every element of the path exists. A property that is present with a null
// value counts as existing.
func Has(v ldvalue.Value, path ...string) bool {
	for _, p := range path {
		var ok bool
		if v, ok = step(v, p); !ok {
			return false
		}
	}
	return true
}

func step(v ldvalue.Value, p string) (ldvalue.Value, bool) {
	switch v.Type() {
	case ldvalue.ObjectType:
		for _, k := range v.Keys() {
			if k == p {
				return v.GetByKey(p), true
			}
		}
	case ldvalue.ArrayType:
		if i, err := strconv.Atoi(p); err == nil && i >= 0 && i < v.Count() {
			return v.GetByIndex(i), true
		}
	}
	return ldvalue.Null(), false
}

// Items returns the elements of an array value, or nil for any other type.
func Items(v ldvalue.Value) []ldvalue.Value {
	if v.Type() != ldvalue.ArrayType {
		return nil
	}
	ret := make([]ldvalue.Value, 0, v.Count())
	for i := 0; i < v.Count(); i++ {
		ret = append(ret, v.GetByIndex(i))
	}
	return ret
}

// Keys returns the property names of an object value in sorted order, or nil for any other
// type.
func Keys(v ldvalue.Value) []string {
	if v.Type() != ldvalue.ObjectType {
		return nil
	}
	keys := v.Keys()
	sort.Strings(keys)
	return keys
}

// Strings returns the string elements of an array value.
func Strings(v ldvalue.Value) []string {
	var ret []string
	for _, item := range Items(v) {
		if item.IsString() {
			ret = append(ret, item.StringValue())
		}
	}
	return ret
}

// Pluck returns the string value of the named property of each element of an array.
func Pluck(v ldvalue.Value, path ...string) []string {
	var ret []string
	for _, item := range Items(v) {
		ret = append(ret, Get(item, path...).StringValue())
	}
	return ret
}

// Truncate shortens a response body for use in a failure message. The cut never splits a
// UTF-8 sequence.
func Truncate(data []byte) string {
	if len(data) <= maxQuotedBody {
		return string(data)
	}
	end := maxQuotedBody
	for end > 0 && !utf8.RuneStart(data[end]) {
		end--
	}
	return string(data[:end]) + "..."
}
