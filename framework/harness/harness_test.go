package harness

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/contentrepo/webscript-contract-tests/framework/restclient"
	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paramsFor(server *httptest.Server) Params {
	return Params{
		Endpoints:          restclient.Endpoints{WebScripts: server.URL + "/alfresco/service"},
		Admin:              restclient.Credentials{UserName: "admin", Password: "admin"},
		Capabilities:       []string{servicedef.CapabilitySites},
		StatusQueryTimeout: time.Second,
	}
}

func TestHarnessUsesDeclaredCapabilities(t *testing.T) {
	info := servicedef.ServerInfoResponse{Data: servicedef.ServerInfo{
		Edition: "Community", Version: "7.4", Capabilities: []string{"forum", "ratings"},
	}}
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithJSONResponse(info, nil))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		var out bytes.Buffer
		h, err := NewTestHarness(paramsFor(server), nil, &out)
		require.NoError(t, err)

		assert.True(t, h.TestServiceHasCapability("forum"))
		assert.False(t, h.TestServiceHasCapability(servicedef.CapabilitySites))
		assert.Equal(t, "Community", h.ServerInfo().Edition)
		assert.Contains(t, out.String(), "Platform is Community 7.4")

		r := <-requestsCh
		assert.Equal(t, "/alfresco/service/api/server", r.Request.URL.Path)
		user, _, _ := r.Request.BasicAuth()
		assert.Equal(t, "admin", user)
	})
}

func TestHarnessFallsBackToConfiguredCapabilities(t *testing.T) {
	handler := httphelpers.HandlerWithJSONResponse(servicedef.ServerInfoResponse{}, nil)
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		h, err := NewTestHarness(paramsFor(server), nil, &bytes.Buffer{})
		require.NoError(t, err)
		assert.True(t, h.TestServiceHasCapability(servicedef.CapabilitySites))
		assert.False(t, h.TestServiceHasCapability("forum"))
	})
}

func TestHarnessFailsOnErrorStatus(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(401), func(server *httptest.Server) {
		_, err := NewTestHarness(paramsFor(server), nil, &bytes.Buffer{})
		assert.Error(t, err)
	})
}

func TestHarnessWaitsForPlatformThatIsStartingUp(t *testing.T) {
	info := servicedef.ServerInfoResponse{Data: servicedef.ServerInfo{Edition: "Enterprise", Version: "7.4"}}
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.SequentialHandler(
		httphelpers.HandlerWithStatus(503),
		httphelpers.HandlerWithStatus(502),
		httphelpers.HandlerWithJSONResponse(info, nil),
	))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		h, err := NewTestHarness(paramsFor(server), nil, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, "Enterprise", h.ServerInfo().Edition)
		assert.Len(t, requestsCh, 3)
	})
}

func TestHarnessTimesOutWhilePlatformReturnsServerErrors(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(503), func(server *httptest.Server) {
		params := paramsFor(server)
		params.StatusQueryTimeout = time.Millisecond * 300
		_, err := NewTestHarness(params, nil, &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
		assert.Contains(t, err.Error(), "503")
	})
}

func TestHarnessDoesNotRetryClientErrors(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(403))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		_, err := NewTestHarness(paramsFor(server), nil, &bytes.Buffer{})
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "timed out")
		assert.Len(t, requestsCh, 1)
	})
}

func TestHarnessTimesOutWhenPlatformIsDown(t *testing.T) {
	params := Params{
		Endpoints:          restclient.Endpoints{WebScripts: "http://127.0.0.1:1/alfresco/service"},
		StatusQueryTimeout: time.Millisecond * 300,
	}
	_, err := NewTestHarness(params, nil, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestEntityCloseSendsDeleteOnce(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(404))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := restclient.NewClient(restclient.Endpoints{WebScripts: server.URL}, nil, nil)
		e := NewEntity("site x", c.Delete("api/sites/x"), nil)
		assert.NoError(t, e.Close())
		assert.NoError(t, e.Close())
		assert.Len(t, requestsCh, 1)
		assert.Equal(t, "DELETE", (<-requestsCh).Request.Method)
	})
}

func TestEntityCloseReportsFailure(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(403), func(server *httptest.Server) {
		c := restclient.NewClient(restclient.Endpoints{WebScripts: server.URL}, nil, nil)
		e := NewEntity("site x", c.Delete("api/sites/x"), nil)
		assert.Error(t, e.Close())
	})
}

func TestStartListener(t *testing.T) {
	l, err := StartListener("127.0.0.1:0", httphelpers.HandlerWithStatus(418))
	require.NoError(t, err)
	defer func() { _ = l.Shutdown(context.Background()) }()

	resp, err := http.Get(l.BaseURL() + "/anything")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, 418, resp.StatusCode)

	require.NoError(t, l.Shutdown(context.Background()))
	select {
	case err := <-l.Done():
		assert.NoError(t, err)
	case <-time.After(time.Second):
		require.Fail(t, "listener did not stop")
	}
}
