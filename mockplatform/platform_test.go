package mockplatform

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPlatform struct {
	*Platform
	server *httptest.Server
}

func startPlatform(t *testing.T) *testPlatform {
	p := New(Options{AsyncDelay: time.Millisecond * 10})
	server := httptest.NewServer(p.Handler())
	t.Cleanup(server.Close)
	return &testPlatform{Platform: p, server: server}
}

func (tp *testPlatform) do(t *testing.T, user, method, path, body string) (int, map[string]interface{}) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, tp.server.URL+path, reader)
	require.NoError(t, err)
	if user != "" {
		req.SetBasicAuth(user, user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var parsed map[string]interface{}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &parsed)
	}
	return resp.StatusCode, parsed
}

func (tp *testPlatform) addUser(t *testing.T, name string) {
	status, _ := tp.do(t, "admin", "POST", WebScriptsPrefix+"/api/people",
		`{"userName":"`+name+`","firstName":"F","lastName":"L","email":"x@example.com","password":"`+name+`"}`)
	require.Equal(t, http.StatusOK, status)
}

func TestRequestsRequireAuthentication(t *testing.T) {
	tp := startPlatform(t)

	status, _ := tp.do(t, "", "GET", WebScriptsPrefix+"/api/server", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = tp.do(t, "nobody", "GET", WebScriptsPrefix+"/api/server", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := tp.do(t, "admin", "GET", WebScriptsPrefix+"/api/server", "")
	assert.Equal(t, http.StatusOK, status)
	caps := body["data"].(map[string]interface{})["capabilities"].([]interface{})
	assert.Len(t, caps, len(servicedef.AllCapabilities))
}

func TestUnsupportedMethodIs405(t *testing.T) {
	tp := startPlatform(t)

	status, body := tp.do(t, "admin", "PUT", WorkflowPrefix+"/processes", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Contains(t, body, "error")

	status, _ = tp.do(t, "admin", "DELETE", WorkflowPrefix+"/process-definitions/"+adhocDefinitionID, "")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestUnknownPathIs404(t *testing.T) {
	tp := startPlatform(t)

	status, body := tp.do(t, "admin", "GET", WebScriptsPrefix+"/api/nothing-here", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, "status")
}

func TestEscapedPathParameterIsDecoded(t *testing.T) {
	tp := startPlatform(t)

	name := "rep/with slash"
	status, _ := tp.do(t, "admin", "POST", WebScriptsPrefix+"/api/replication-definitions",
		`{"name":"`+name+`","description":"d"}`)
	require.Equal(t, http.StatusOK, status)

	status, body := tp.do(t, "admin", "GET", WebScriptsPrefix+"/api/replication-definition/rep%2Fwith%20slash", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, name, body["data"].(map[string]interface{})["name"])
}

func TestReplicationRunCompletes(t *testing.T) {
	tp := startPlatform(t)

	status, _ := tp.do(t, "admin", "POST", WebScriptsPrefix+"/api/replication-definitions",
		`{"name":"r1","description":"d"}`)
	require.Equal(t, http.StatusOK, status)

	status, body := tp.do(t, "admin", "POST", WebScriptsPrefix+"/api/running-replication-actions", `{"name":"r1"}`)
	require.Equal(t, http.StatusOK, status)
	action := body["data"].(map[string]interface{})
	assert.Equal(t, servicedef.ReplicationStatusPending, action["status"])

	require.Eventually(t, func() bool {
		_, body := tp.do(t, "admin", "GET", WebScriptsPrefix+"/api/replication-definition/r1", "")
		return body["data"].(map[string]interface{})["status"] == servicedef.ReplicationStatusCompleted
	}, time.Second*2, time.Millisecond*10)

	status, _ = tp.do(t, "admin", "GET", WebScriptsPrefix+"/api/running-action/"+action["id"].(string), "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestReplicationRequiresAdmin(t *testing.T) {
	tp := startPlatform(t)
	tp.addUser(t, "user1")

	status, _ := tp.do(t, "user1", "GET", WebScriptsPrefix+"/api/replication-definitions", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdhocWorkflowLifecycle(t *testing.T) {
	tp := startPlatform(t)
	tp.addUser(t, "initiator")
	tp.addUser(t, "assignee")

	status, body := tp.do(t, "initiator", "POST", WorkflowPrefix+"/processes",
		`{"processDefinitionKey":"activitiAdhoc","variables":{"bpm_assignee":"assignee"}}`)
	require.Equal(t, http.StatusCreated, status)
	processID := body["entry"].(map[string]interface{})["id"].(string)

	completeOnlyTask := func(user string) {
		status, body := tp.do(t, user, "GET", WorkflowPrefix+"/tasks", "")
		require.Equal(t, http.StatusOK, status)
		entries := body["list"].(map[string]interface{})["entries"].([]interface{})
		require.Len(t, entries, 1)
		taskID := entries[0].(map[string]interface{})["entry"].(map[string]interface{})["id"].(string)
		status, _ = tp.do(t, user, "PUT", WorkflowPrefix+"/tasks/"+taskID+"?select=state", `{"state":"completed"}`)
		require.Equal(t, http.StatusOK, status)
	}
	completeOnlyTask("assignee")
	completeOnlyTask("initiator")

	require.Eventually(t, func() bool {
		_, body := tp.do(t, "initiator", "GET", WorkflowPrefix+"/processes/"+processID, "")
		return body["entry"].(map[string]interface{})["completed"] == true
	}, time.Second*2, time.Millisecond*10)

	status, _ = tp.do(t, "initiator", "DELETE", WorkflowPrefix+"/processes/"+processID, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStartProcessRequiresKnownAssignee(t *testing.T) {
	tp := startPlatform(t)

	status, _ := tp.do(t, "admin", "POST", WorkflowPrefix+"/processes",
		`{"processDefinitionKey":"activitiAdhoc","variables":{"bpm_assignee":"ghost"}}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = tp.do(t, "admin", "POST", WorkflowPrefix+"/processes", `{"variables":{"bpm_assignee":"admin"}}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestParseWhere(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?where="+
		strings.ReplaceAll("(status=any AND processDefinitionKey='activitiAdhoc')", " ", "%20"), nil)
	where, err := parseWhere(r)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"status": "any", "processDefinitionKey": "activitiAdhoc"}, where)

	_, err = parseWhere(httptest.NewRequest("GET", "/x?where=status=any", nil))
	assert.Error(t, err)
}

func TestCheckVariable(t *testing.T) {
	v, err := checkVariable("d:int", float64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	_, err = checkVariable("d:int", "three")
	assert.Error(t, err)
	_, err = checkVariable("d:unknown", "x")
	assert.Error(t, err)

	assert.Equal(t, "d:boolean", inferVariableType(true))
	assert.Equal(t, "d:double", inferVariableType(1.5))
	assert.Equal(t, "d:text", inferVariableType("s"))
}

func TestForumListingPagingIsClamped(t *testing.T) {
	tp := startPlatform(t)
	tp.addUser(t, "owner")
	status, _ := tp.do(t, "owner", "POST", WebScriptsPrefix+"/api/sites",
		`{"sitePreset":"site-dashboard","shortName":"forum1","title":"t","description":"d","visibility":"PUBLIC"}`)
	require.Equal(t, http.StatusOK, status)
	posts := WebScriptsPrefix + "/api/forum/site/forum1/discussions/posts"
	status, _ = tp.do(t, "owner", "POST", posts, `{"title":"topic","content":"c"}`)
	require.Equal(t, http.StatusOK, status)

	for _, query := range []string{"?pageSize=-1", "?startIndex=-1", "?pageSize=0&startIndex=-5", "?startIndex=7"} {
		status, body := tp.do(t, "owner", "GET", posts+query, "")
		require.Equal(t, http.StatusOK, status, query)
		assert.GreaterOrEqual(t, body["startIndex"], float64(0), query)
		assert.Greater(t, body["pageSize"], float64(0), query)
		assert.Equal(t, float64(1), body["total"], query)
	}

	_, body := tp.do(t, "owner", "GET", posts+"?pageSize=-1", "")
	assert.Equal(t, float64(defaultForumPageSize), body["pageSize"])
	assert.Len(t, body["items"], 1)
	assert.Equal(t, true, body["forumPermissions"].(map[string]interface{})["create"])
}

func TestParseOrderBy(t *testing.T) {
	early := &process{businessKey: "b", started: time.Unix(100, 0)}
	late := &process{businessKey: "a", started: time.Unix(200, 0)}

	for _, clause := range []string{"businessKey", "businessKey ASC", "businessKey asc"} {
		less, err := parseOrderBy(httptest.NewRequest("GET", "/x?orderBy="+strings.ReplaceAll(clause, " ", "%20"), nil))
		require.NoError(t, err, clause)
		assert.True(t, less(late, early), clause)
	}

	less, err := parseOrderBy(httptest.NewRequest("GET", "/x?orderBy=startedAt%20DESC", nil))
	require.NoError(t, err)
	assert.True(t, less(late, early))

	less, err = parseOrderBy(httptest.NewRequest("GET", "/x", nil))
	require.NoError(t, err)
	assert.Nil(t, less)

	for _, clause := range []string{"startedAt,%20endedAt", "businessKey2%20ASC", "businessKey%20ASC2", "startedAt%20ASC%20x"} {
		_, err := parseOrderBy(httptest.NewRequest("GET", "/x?orderBy="+clause, nil))
		assert.Error(t, err, clause)
	}
}

func TestProcessActivities(t *testing.T) {
	started := time.Unix(100, 0)
	pr := &process{id: "7", started: started}
	pr.tasks = []*task{
		{id: "8", process: pr, taskType: servicedef.AdhocStartTaskType, activityID: startActivityID, started: started, ended: &started},
		{id: "9", process: pr, taskType: servicedef.AdhocTaskType, activityID: adhocActivityID, started: started},
	}

	activities := pr.activities()
	require.Len(t, activities, 2)
	assert.Equal(t, startActivityID, activities[0].definitionID)
	assert.Equal(t, "startEvent", activities[0].kind)
	assert.NotNil(t, activities[0].ended)
	assert.Equal(t, adhocActivityID, activities[1].definitionID)
	assert.Equal(t, "Adhoc Task", activities[1].name)
	assert.Nil(t, activities[1].ended)

	ended := started.Add(time.Second)
	pr.tasks[1].ended = &ended
	pr.ended = &ended
	pr.endActivity = endActivityID
	activities = pr.activities()
	require.Len(t, activities, 3)
	assert.Equal(t, "endEvent", activities[2].kind)
	for _, a := range activities {
		assert.NotNil(t, a.ended, a.definitionID)
	}
}

func TestPageWindowBoundsNeverOverflow(t *testing.T) {
	start, end := pageWindow{skipCount: 1, maxItems: int(^uint(0) >> 1)}.bounds(3)
	assert.Equal(t, 1, start)
	assert.Equal(t, 3, end)

	start, end = pageWindow{skipCount: 5, maxItems: 2}.bounds(3)
	assert.Equal(t, 3, start)
	assert.Equal(t, 3, end)
}

func TestSiteAdministratorCanManageAnySite(t *testing.T) {
	tp := startPlatform(t)
	tp.addUser(t, "owner")
	tp.addUser(t, "siteadmin")
	status, _ := tp.do(t, "owner", "POST", WebScriptsPrefix+"/api/sites",
		`{"sitePreset":"site-dashboard","shortName":"managed","visibility":"PRIVATE"}`)
	require.Equal(t, http.StatusOK, status)
	groupMember := WebScriptsPrefix + "/api/groups/" + servicedef.SiteAdministratorsGroup + "/children/siteadmin"

	status, _ = tp.do(t, "siteadmin", "PUT", WebScriptsPrefix+"/api/sites/managed", `{"visibility":"PUBLIC"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = tp.do(t, "admin", "POST", groupMember, "")
	require.Equal(t, http.StatusCreated, status)
	status, body := tp.do(t, "siteadmin", "PUT", WebScriptsPrefix+"/api/sites/managed", `{"visibility":"MODERATED"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "MODERATED", body["visibility"])

	status, _ = tp.do(t, "admin", "DELETE", groupMember, "")
	require.Equal(t, http.StatusOK, status)
	status, _ = tp.do(t, "siteadmin", "DELETE", WebScriptsPrefix+"/api/sites/managed", "")
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = tp.do(t, "admin", "DELETE", groupMember, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPotentialMembersExcludeExistingMembers(t *testing.T) {
	tp := startPlatform(t)
	tp.addUser(t, "owner")
	tp.addUser(t, "candidate")
	status, _ := tp.do(t, "owner", "POST", WebScriptsPrefix+"/api/sites",
		`{"sitePreset":"site-dashboard","shortName":"joinable"}`)
	require.Equal(t, http.StatusOK, status)

	status, body := tp.do(t, "owner", "GET", WebScriptsPrefix+"/api/sites/joinable/potentialmembers?filter=&authorityType=USER", "")
	require.Equal(t, http.StatusOK, status)
	var names []string
	for _, u := range body["people"].([]interface{}) {
		names = append(names, u.(map[string]interface{})["userName"].(string))
	}
	assert.Contains(t, names, "candidate")
	assert.NotContains(t, names, "owner")
	assert.Empty(t, body["data"])

	status, body = tp.do(t, "owner", "GET", WebScriptsPrefix+"/api/sites/joinable/potentialmembers?filter=&maxResults=1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["people"], 1)
	assert.Len(t, body["data"], 1)

	status, _ = tp.do(t, "owner", "GET", WebScriptsPrefix+"/api/sites/joinable/potentialmembers?authorityType=ROBOT", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSecondPendingInvitationIsRejected(t *testing.T) {
	tp := startPlatform(t)
	tp.addUser(t, "owner")
	tp.addUser(t, "requester")
	status, _ := tp.do(t, "owner", "POST", WebScriptsPrefix+"/api/sites",
		`{"sitePreset":"site-dashboard","shortName":"moderated","visibility":"MODERATED"}`)
	require.Equal(t, http.StatusOK, status)

	request := `{"invitationType":"MODERATED","inviteeUserName":"requester","inviteeRoleName":"SiteConsumer"}`
	status, _ = tp.do(t, "requester", "POST", WebScriptsPrefix+"/api/sites/moderated/invitations", request)
	require.Equal(t, http.StatusCreated, status)
	status, _ = tp.do(t, "requester", "POST", WebScriptsPrefix+"/api/sites/moderated/invitations", request)
	assert.Equal(t, http.StatusConflict, status)
}
