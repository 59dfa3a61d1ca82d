package mockplatform

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	iso8601Format    = "2006-01-02T15:04:05.000Z07:00"
	publicDateFormat = "2006-01-02T15:04:05.000-0700"

	defaultMaxItems = 100
)

type jsonObject = map[string]interface{}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeWebScriptError renders an error the way the web-script runtime does.
func writeWebScriptError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	writeJSON(w, status, jsonObject{
		"status": jsonObject{
			"code":        status,
			"name":        http.StatusText(status),
			"description": http.StatusText(status),
		},
		"message": message,
	})
}

// writePublicError renders an error the way the public APIs do.
func writePublicError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	writeJSON(w, status, jsonObject{
		"error": jsonObject{
			"errorKey":     http.StatusText(status),
			"statusCode":   status,
			"briefSummary": message,
		},
	})
}

// readJSON decodes the request body into dest. An empty body is an error.
func readJSON(r *http.Request, dest interface{}) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return fmt.Errorf("request body is empty")
	}
	return json.Unmarshal(data, dest)
}

// pathParam returns a route parameter in decoded form. chi matches against the raw path when
// the request path contains escapes that do not round-trip, and the parameter is then still
// escaped.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath != "" {
		if u, err := url.PathUnescape(v); err == nil {
			return u
		}
	}
	return v
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return defaultValue
}

func formatISO(t time.Time) string {
	return t.UTC().Format(iso8601Format)
}

func formatPublic(t time.Time) string {
	return t.UTC().Format(publicDateFormat)
}

func optionalISO(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatISO(*t)
}

// isoObject is the {"iso8601": ...} form used by the replication web scripts.
func isoObject(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return jsonObject{"iso8601": formatISO(*t)}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// pageWindow applies skipCount and maxItems to a collection of n items.
type pageWindow struct {
	skipCount int
	maxItems  int
}

func pageWindowFromQuery(r *http.Request) pageWindow {
	pw := pageWindow{
		skipCount: queryInt(r, "skipCount", 0),
		maxItems:  queryInt(r, "maxItems", defaultMaxItems),
	}
	if pw.skipCount < 0 {
		pw.skipCount = 0
	}
	if pw.maxItems <= 0 {
		pw.maxItems = defaultMaxItems
	}
	return pw
}

func (pw pageWindow) bounds(n int) (int, int) {
	start := pw.skipCount
	if start > n {
		start = n
	}
	if pw.maxItems > n-start {
		return start, n
	}
	return start, start + pw.maxItems
}

// publicList renders the {"list": {"pagination": ..., "entries": ...}} envelope for a page of
// the given entries.
func publicList(entries []jsonObject, pw pageWindow) jsonObject {
	start, end := pw.bounds(len(entries))
	page := make([]jsonObject, 0, end-start)
	for _, e := range entries[start:end] {
		page = append(page, jsonObject{"entry": e})
	}
	return jsonObject{
		"list": jsonObject{
			"pagination": jsonObject{
				"count":        len(page),
				"hasMoreItems": end < len(entries),
				"totalItems":   len(entries),
				"skipCount":    pw.skipCount,
				"maxItems":     pw.maxItems,
			},
			"entries": page,
		},
	}
}

// parseWhere reads the simple form of the public API's where clause:
//
//	(status=any AND processDefinitionKey='activitiAdhoc')
func parseWhere(r *http.Request) (map[string]string, error) {
	ret := make(map[string]string)
	clause := strings.TrimSpace(r.URL.Query().Get("where"))
	if clause == "" {
		return ret, nil
	}
	if !strings.HasPrefix(clause, "(") || !strings.HasSuffix(clause, ")") {
		return nil, fmt.Errorf("where clause must be enclosed in parentheses: %s", clause)
	}
	clause = clause[1 : len(clause)-1]
	for _, term := range strings.Split(clause, " AND ") {
		k, v, ok := strings.Cut(strings.TrimSpace(term), "=")
		if !ok {
			return nil, fmt.Errorf("invalid where term: %s", term)
		}
		ret[strings.TrimSpace(k)] = strings.Trim(strings.TrimSpace(v), "'")
	}
	return ret, nil
}
