package restclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

type recordingT struct {
	errors  int
	stopped bool
}

func (r *recordingT) Errorf(string, ...interface{}) { r.errors++ }
func (r *recordingT) FailNow()                      { r.stopped = true }

func clientFor(server *httptest.Server) *Client {
	return NewClient(Endpoints{
		WebScripts: server.URL + "/alfresco/service",
		Workflow:   server.URL + "/alfresco/api/-default-/public/workflow/versions/1/",
		Core:       server.URL + "/alfresco/api/-default-/public/alfresco/versions/1",
	}, nil, nil)
}

func TestRequestIsBuiltFromAllParts(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(200))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := clientFor(server)
		body := ldvalue.ObjectBuild().Set("title", ldvalue.String("hello")).Build()
		resp, err := c.Post(Pathf("api/sites/%s/memberships", "my site")).
			As(Credentials{UserName: "user1", Password: "pw"}).
			Query("size", "5").
			Header("X-Test", "yes").
			JSON(body).
			Send(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		r := <-requestsCh
		assert.Equal(t, "POST", r.Request.Method)
		assert.Equal(t, "/alfresco/service/api/sites/my%20site/memberships", r.Request.URL.EscapedPath())
		assert.Equal(t, "5", r.Request.URL.Query().Get("size"))
		assert.Equal(t, "yes", r.Request.Header.Get("X-Test"))
		assert.Equal(t, "application/json", r.Request.Header.Get("Content-Type"))
		user, password, ok := r.Request.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user1", user)
		assert.Equal(t, "pw", password)
		assert.JSONEq(t, `{"title":"hello"}`, string(r.Body))
	})
}

func TestAPISelectsBaseURL(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(204))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := clientFor(server)
		c.Get("processes").On(Workflow).Expect(t, 204)
		c.Delete("/nodes/abc").On(Core).Expect(t, 204)

		assert.Equal(t, "/alfresco/api/-default-/public/workflow/versions/1/processes", (<-requestsCh).Request.URL.Path)
		assert.Equal(t, "/alfresco/api/-default-/public/alfresco/versions/1/nodes/abc", (<-requestsCh).Request.URL.Path)
	})
}

func TestExpectJSON(t *testing.T) {
	handler := httphelpers.HandlerWithJSONResponse(map[string]interface{}{"data": map[string]interface{}{"enabled": true}}, nil)
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		v := clientFor(server).Get("api/replication-service-status").ExpectJSON(t, 200)
		assert.True(t, v.GetByKey("data").GetByKey("enabled").BoolValue())
	})
}

func TestExpectStopsTestOnWrongStatus(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(404, nil, []byte(`{"message":"not found"}`))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		rt := &recordingT{}
		resp := clientFor(server).Get("api/sites/nope").Expect(rt, 200)
		assert.True(t, rt.stopped)
		assert.Equal(t, 1, rt.errors)
		assert.Equal(t, 404, resp.StatusCode)
	})
}

func TestServerErrorIsReturnedWithoutRetry(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(500))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		resp, err := clientFor(server).Get("api/workflow-instances/Foo/task-instances").Send(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 500, resp.StatusCode)
		assert.Len(t, requestsCh, 1)
	})
}

func TestUnavailableStatusIsRetriedOnlyWhenRequested(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.SequentialHandler(
		httphelpers.HandlerWithStatus(503),
		httphelpers.HandlerWithStatus(503),
		httphelpers.HandlerWithStatus(200),
	))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := clientFor(server)
		resp, err := c.Delete("api/people/user1").Retry().Send(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Len(t, requestsCh, 3)
	})

	handler, requestsCh = httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(503))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		resp, err := clientFor(server).Delete("api/people/user1").Send(context.Background())
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Len(t, requestsCh, 1)
	})
}

func TestPathfEscapesEachArgument(t *testing.T) {
	assert.Equal(t, "api/replication-definition/a%2Fb%3Fc", Pathf("api/replication-definition/%s", "a/b?c"))
	assert.Equal(t, "api/sites/x/memberships/y", Pathf("api/sites/%s/memberships/%s", "x", "y"))
}
