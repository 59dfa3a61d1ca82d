// Package harness connects the test run to the platform under test: it waits for the platform
// to come up, learns what it supports, and manages remote entities created by tests.
package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/contentrepo/webscript-contract-tests/framework"
	"github.com/contentrepo/webscript-contract-tests/framework/ldtest"
	"github.com/contentrepo/webscript-contract-tests/framework/restclient"
	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/cenkalti/backoff/v4"
)

const (
	serverInfoPath         = "api/server"
	statusQueryInterval    = time.Millisecond * 100
	statusQueryMaxInterval = time.Second
)

// Params configures a TestHarness.
type Params struct {
	Endpoints restclient.Endpoints
	Admin     restclient.Credentials

	// Capabilities is used when the platform does not declare its own.
	Capabilities []string

	StatusQueryTimeout time.Duration
	HTTPClient         *http.Client
}

type TestHarness struct {
	params       Params
	client       *restclient.Client
	serverInfo   servicedef.ServerInfo
	capabilities ldtest.Capabilities
	logger       framework.Logger
}

// NewTestHarness creates a TestHarness, and verifies that the platform is responding by
// querying its server information resource, retrying until StatusQueryTimeout elapses.
func NewTestHarness(params Params, debugLogger framework.Logger, startupOutput io.Writer) (*TestHarness, error) {
	if debugLogger == nil {
		debugLogger = framework.NullLogger()
	}
	h := &TestHarness{
		params: params,
		client: restclient.NewClient(params.Endpoints, params.HTTPClient, debugLogger),
		logger: debugLogger,
	}

	info, err := h.queryServerInfo(startupOutput)
	if err != nil {
		return nil, err
	}
	h.serverInfo = info
	if len(info.Capabilities) > 0 {
		h.capabilities = info.Capabilities
	} else {
		h.capabilities = params.Capabilities
	}
	return h, nil
}

// queryServerInfo polls the server information resource. Transport errors and 5xx responses
// mean the platform is still starting, so they are retried until StatusQueryTimeout elapses;
// any other failure ends the wait at once.
func (h *TestHarness) queryServerInfo(output io.Writer) (servicedef.ServerInfo, error) {
	fmt.Fprintf(output, "Connecting to platform at %s", h.params.Endpoints.WebScripts)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = statusQueryInterval
	b.MaxInterval = statusQueryMaxInterval
	b.MaxElapsedTime = h.params.StatusQueryTimeout
	var policy backoff.BackOff = b
	if h.params.StatusQueryTimeout <= 0 {
		policy = &backoff.StopBackOff{}
	}

	permanent := false
	info, err := backoff.RetryWithData(func() (servicedef.ServerInfo, error) {
		fmt.Fprintf(output, ".")
		resp, err := h.client.Get(serverInfoPath).As(h.params.Admin).Send(context.Background())
		if err != nil {
			return servicedef.ServerInfo{}, err
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("platform returned status code %d for %s", resp.StatusCode, resp.URL)
			if resp.StatusCode >= 500 {
				return servicedef.ServerInfo{}, err
			}
			permanent = true
			return servicedef.ServerInfo{}, backoff.Permanent(err)
		}
		var info servicedef.ServerInfoResponse
		if err := json.Unmarshal(resp.Body, &info); err != nil {
			permanent = true
			return servicedef.ServerInfo{}, backoff.Permanent(
				fmt.Errorf("malformed server information from platform: %s", string(resp.Body)))
		}
		return info.Data, nil
	}, policy)
	fmt.Fprintln(output)
	if err != nil {
		if permanent {
			return servicedef.ServerInfo{}, err
		}
		return servicedef.ServerInfo{}, fmt.Errorf("timed out, result of last query was: %w", err)
	}
	fmt.Fprintf(output, "Platform is %s %s\n", info.Edition, info.Version)
	return info, nil
}

func (h *TestHarness) ServerInfo() servicedef.ServerInfo {
	return h.serverInfo
}

func (h *TestHarness) Capabilities() ldtest.Capabilities {
	return h.capabilities
}

func (h *TestHarness) TestServiceHasCapability(desired string) bool {
	return h.capabilities.Has(desired)
}

// Client returns a REST client that logs to the specified logger, typically a test's debug log.
func (h *TestHarness) Client(logger framework.Logger) *restclient.Client {
	return h.client.WithLogger(logger)
}

func (h *TestHarness) AdminCredentials() restclient.Credentials {
	return h.params.Admin
}
