// Package restclient builds and sends requests to the platform's REST APIs and checks the
// status of the responses.
package restclient

import (
	"context"
	"net/http"
	"time"

	"github.com/contentrepo/webscript-contract-tests/framework"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultRequestTimeout = time.Second * 30
	defaultRetryMax       = 4
	retryWaitMin          = time.Millisecond * 100
	retryWaitMax          = time.Second * 2
)

// API selects which of the platform's REST surfaces a request is addressed to.
type API int

const (
	// WebScripts is the classic web-script surface: api/sites, api/forum, api/task-instances...
	WebScripts API = iota
	// Workflow is the public workflow API: processes, process-definitions, tasks, deployments.
	Workflow
	// Core is the public core API, used for creating content nodes.
	Core
)

func (a API) String() string {
	switch a {
	case Workflow:
		return "workflow"
	case Core:
		return "core"
	default:
		return "web scripts"
	}
}

// Endpoints are the base URLs of each API, without a trailing slash.
type Endpoints struct {
	WebScripts string
	Workflow   string
	Core       string
}

func (e Endpoints) baseURL(api API) string {
	switch api {
	case Workflow:
		return e.Workflow
	case Core:
		return e.Core
	default:
		return e.WebScripts
	}
}

// Credentials are used for HTTP basic authentication.
type Credentials struct {
	UserName string
	Password string
}

func (c Credentials) IsZero() bool {
	return c.UserName == ""
}

// Client sends requests to the platform. It is safe for concurrent use; WithLogger returns a
// copy that writes to another debug log.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
	once       *retryablehttp.Client
	retrying   *retryablehttp.Client
	logger     framework.Logger
}

// NewClient creates a Client. If httpClient is nil, a client with a default timeout is used.
func NewClient(endpoints Endpoints, httpClient *http.Client, logger framework.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Client{
		endpoints:  endpoints,
		httpClient: httpClient,
		once:       newRetryableClient(httpClient, nil, 0),
		retrying:   newRetryableClient(httpClient, logger, defaultRetryMax),
		logger:     logger,
	}
}

// WithLogger returns a Client that shares the same connections but logs elsewhere.
func (c *Client) WithLogger(logger framework.Logger) *Client {
	return NewClient(c.endpoints, c.httpClient, logger)
}

func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

func (c *Client) Get(path string) *Request    { return c.newRequest(http.MethodGet, path) }
func (c *Client) Post(path string) *Request   { return c.newRequest(http.MethodPost, path) }
func (c *Client) Put(path string) *Request    { return c.newRequest(http.MethodPut, path) }
func (c *Client) Delete(path string) *Request { return c.newRequest(http.MethodDelete, path) }

func newRetryableClient(httpClient *http.Client, logger framework.Logger, retryMax int) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.Logger = logger
	rc.RetryMax = retryMax
	rc.RetryWaitMin = retryWaitMin
	rc.RetryWaitMax = retryWaitMax
	if retryMax == 0 {
		rc.CheckRetry = neverRetry
	} else {
		rc.CheckRetry = retryUnavailable
	}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc
}

func neverRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	return false, err
}

// Fixture requests are retried on transport errors and on statuses that mean the platform was
// briefly unable to serve the request. Any other status is returned to the caller as is.
func retryUnavailable(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}
