// Package paging maps the platform's collection envelope
//
//	{"list": {"entries": [{"entry": {...}}, ...], "pagination": {...}}}
//
// into typed lists. Entries keep the order in which the server returned them.
package paging

import (
	"errors"
	"fmt"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Paging is the "pagination" object of a list response. TotalItems is optional on the wire.
type Paging struct {
	Count        int
	HasMoreItems bool
	TotalItems   ldvalue.OptionalInt
	SkipCount    int
	MaxItems     int
}

// ListResponse is a parsed list envelope.
type ListResponse[T any] struct {
	Paging  Paging
	Entries []T
}

// EntryParser converts the content of one "entry" into a typed value.
type EntryParser[T any] func(entry ldvalue.Value) (T, error)

// ParseListResponse parses a whole response body, which must have a "list" property.
func ParseListResponse[T any](root ldvalue.Value, parseEntry EntryParser[T]) (ListResponse[T], error) {
	list := root.GetByKey("list")
	if list.Type() != ldvalue.ObjectType {
		return ListResponse[T]{}, errors.New(`response has no "list" object`)
	}
	return ParseList(list, parseEntry)
}

// ParseList parses the content of a "list" property.
func ParseList[T any](list ldvalue.Value, parseEntry EntryParser[T]) (ListResponse[T], error) {
	entries := list.GetByKey("entries")
	if entries.Type() != ldvalue.ArrayType {
		return ListResponse[T]{}, errors.New(`list has no "entries" array`)
	}
	ret := ListResponse[T]{Entries: make([]T, 0, entries.Count())}
	for i := 0; i < entries.Count(); i++ {
		entry := entries.GetByIndex(i).GetByKey("entry")
		if entry.Type() != ldvalue.ObjectType {
			return ListResponse[T]{}, fmt.Errorf(`list entry %d has no "entry" object`, i)
		}
		item, err := parseEntry(entry)
		if err != nil {
			return ListResponse[T]{}, fmt.Errorf("list entry %d: %w", i, err)
		}
		ret.Entries = append(ret.Entries, item)
	}
	paging, err := ParsePaging(list.GetByKey("pagination"))
	if err != nil {
		return ListResponse[T]{}, err
	}
	ret.Paging = paging
	return ret, nil
}

// ParsePaging parses a "pagination" object.
func ParsePaging(p ldvalue.Value) (Paging, error) {
	if p.Type() != ldvalue.ObjectType {
		return Paging{}, errors.New(`list has no "pagination" object`)
	}
	ret := Paging{
		Count:        p.GetByKey("count").IntValue(),
		HasMoreItems: p.GetByKey("hasMoreItems").BoolValue(),
		SkipCount:    p.GetByKey("skipCount").IntValue(),
		MaxItems:     p.GetByKey("maxItems").IntValue(),
	}
	if total := p.GetByKey("totalItems"); total.IsNumber() {
		ret.TotalItems = ldvalue.NewOptionalInt(total.IntValue())
	}
	return ret, nil
}

// ParseSingleEntry parses a response of the form {"entry": {...}}.
func ParseSingleEntry[T any](root ldvalue.Value, parseEntry EntryParser[T]) (T, error) {
	entry := root.GetByKey("entry")
	if entry.Type() != ldvalue.ObjectType {
		var empty T
		return empty, errors.New(`response has no "entry" object`)
	}
	return parseEntry(entry)
}

// RawEntry is an EntryParser that returns each entry unchanged.
func RawEntry(entry ldvalue.Value) (ldvalue.Value, error) {
	return entry, nil
}
