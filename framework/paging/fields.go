package paging

import (
	"fmt"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// DateFormat is the layout the platform uses for timestamps in workflow entities.
const DateFormat = "2006-01-02T15:04:05.000-0700"

type fieldReader struct {
	entry ldvalue.Value
	err   error
}

func (r *fieldReader) requiredString(name string) string {
	v := r.entry.GetByKey(name)
	if !v.IsString() {
		if r.err == nil {
			r.err = fmt.Errorf("missing required property %q", name)
		}
		return ""
	}
	return v.StringValue()
}

func (r *fieldReader) optionalString(name string) string {
	return r.entry.GetByKey(name).StringValue()
}

func (r *fieldReader) optionalTime(name string) *time.Time {
	v := r.entry.GetByKey(name)
	if v.IsNull() {
		return nil
	}
	t, err := ParseDate(v.StringValue())
	if err != nil {
		if r.err == nil {
			r.err = fmt.Errorf("property %q: %w", name, err)
		}
		return nil
	}
	return &t
}

// ParseDate parses a platform timestamp. Both the platform's own layout and RFC 3339 are
// accepted.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateFormat, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("couldn't parse date %q", s)
	}
	return t, nil
}

// FormatDate formats a time in the platform's layout.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}
