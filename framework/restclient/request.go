package restclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/contentrepo/webscript-contract-tests/framework/jsontree"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Request is a request under construction. The builder methods modify and return the same
// Request, so calls can be chained.
type Request struct {
	client  *Client
	method  string
	api     API
	path    string
	query   url.Values
	header  http.Header
	body    []byte
	bodyErr error
	creds   Credentials
	retry   bool
}

// Response is a fully read HTTP response.
type Response struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (c *Client) newRequest(method, path string) *Request {
	return &Request{
		client: c,
		method: method,
		path:   path,
		query:  make(url.Values),
		header: make(http.Header),
	}
}

// Pathf formats a path template, escaping each argument as a single path segment.
func Pathf(format string, args ...string) string {
	escaped := make([]interface{}, 0, len(args))
	for _, a := range args {
		escaped = append(escaped, url.PathEscape(a))
	}
	return fmt.Sprintf(format, escaped...)
}

// On selects the API that the request path is relative to. The default is WebScripts.
func (r *Request) On(api API) *Request {
	r.api = api
	return r
}

// As authenticates the request as the specified user.
func (r *Request) As(creds Credentials) *Request {
	r.creds = creds
	return r
}

func (r *Request) Query(key, value string) *Request {
	r.query.Add(key, value)
	return r
}

func (r *Request) Header(key, value string) *Request {
	r.header.Set(key, value)
	return r
}

// JSON sets the request body. Strings and byte slices are sent unchanged; anything else,
// including ldvalue.Value, is marshaled.
func (r *Request) JSON(body interface{}) *Request {
	switch b := body.(type) {
	case string:
		r.body = []byte(b)
	case []byte:
		r.body = b
	default:
		r.body, r.bodyErr = json.Marshal(body)
	}
	r.header.Set("Content-Type", "application/json")
	return r
}

// Retry makes the request retry transport errors and unavailable statuses. Fixture setup and
// teardown use this; requests whose status is being tested do not.
func (r *Request) Retry() *Request {
	r.retry = true
	return r
}

// URL returns the absolute URL that the request will be sent to.
func (r *Request) URL() string {
	u := strings.TrimSuffix(r.client.endpoints.baseURL(r.api), "/") + "/" + strings.TrimPrefix(r.path, "/")
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	return u
}

// Send sends the request and reads the whole response. Any HTTP status is a successful result;
// only transport failures are errors.
func (r *Request) Send(ctx context.Context) (*Response, error) {
	if r.bodyErr != nil {
		return nil, fmt.Errorf("could not encode request body: %w", r.bodyErr)
	}
	u := r.URL()
	var rawBody interface{}
	if r.body != nil {
		rawBody = r.body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, r.method, u, rawBody)
	if err != nil {
		return nil, err
	}
	for k, vv := range r.header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if !r.creds.IsZero() {
		req.SetBasicAuth(r.creds.UserName, r.creds.Password)
	}

	logger := r.client.logger
	if r.body != nil {
		logger.Printf(">> %s %s (as %q): %s", r.method, u, r.creds.UserName, jsontree.Truncate(r.body))
	} else {
		logger.Printf(">> %s %s (as %q)", r.method, u, r.creds.UserName)
	}

	hc := r.client.once
	if r.retry {
		hc = r.client.retrying
	}
	resp, err := hc.Do(req)
	if err != nil {
		logger.Printf("<< %s %s failed: %s", r.method, u, err)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body from %s: %w", u, err)
	}
	logger.Printf("<< %d %s", resp.StatusCode, jsontree.Truncate(data))

	return &Response{
		Method:     r.method,
		URL:        u,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// Expect sends the request and stops the test unless the response has the expected status.
func (r *Request) Expect(t require.TestingT, status int) *Response {
	resp, err := r.Send(context.Background())
	require.NoError(t, err, "%s %s", r.method, r.URL())
	require.Equal(t, status, resp.StatusCode,
		"unexpected status for %s %s; response body: %s", r.method, resp.URL, jsontree.Truncate(resp.Body))
	return resp
}

// ExpectJSON is like Expect, and also parses the response body as JSON.
func (r *Request) ExpectJSON(t require.TestingT, status int) ldvalue.Value {
	resp := r.Expect(t, status)
	v, err := resp.JSON()
	require.NoError(t, err, "%s %s", resp.Method, resp.URL)
	return v
}

// JSON parses the response body.
func (r *Response) JSON() (ldvalue.Value, error) {
	return jsontree.Parse(r.Body)
}

// IsSuccess returns true for any 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
