package cmstests

import (
	"net/http"

	"github.com/contentrepo/webscript-contract-tests/framework/jsontree"
	"github.com/contentrepo/webscript-contract-tests/framework/ldtest"
	"github.com/contentrepo/webscript-contract-tests/framework/restclient"
	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func legacyID(id string) string {
	return servicedef.WorkflowEnginePrefix + id
}

func workflowInstancePath(processID string) string {
	return restclient.Pathf("api/workflow-instances/%s", legacyID(processID))
}

func taskInstancePath(legacyTaskID string) string {
	return restclient.Pathf("api/task-instances/%s", legacyTaskID)
}

// legacyData sends a GET and returns the "data" of the response.
func legacyData(t *ldtest.T, user User, path string, query ...string) ldvalue.Value {
	req := newClient(t).Get(path).As(user.Creds())
	for i := 0; i+1 < len(query); i += 2 {
		req.Query(query[i], query[i+1])
	}
	return jsontree.RequireValue(t, req.ExpectJSON(t, http.StatusOK), "data")
}

func DoLegacyWorkflowTests(t *ldtest.T) {
	requireWorkflow(t, servicedef.CapabilityLegacyWorkflow)

	t.Run("definitions", doLegacyDefinitionTests)
	t.Run("instances", doLegacyInstanceTests)
	t.Run("tasks", doLegacyTaskTests)
	t.Run("cancel", doLegacyCancelTests)
}

func doLegacyDefinitionTests(t *ldtest.T) {
	user := NewUser(t)

	t.Run("list", func(t *ldtest.T) {
		defs := legacyData(t, user, "api/workflow-definitions")
		assert.Contains(t, jsontree.Pluck(defs, "name"), servicedef.AdhocWorkflowName)
	})

	t.Run("exclude", func(t *ldtest.T) {
		for _, exclude := range []string{servicedef.AdhocWorkflowName, servicedef.WorkflowEnginePrefix + "*"} {
			defs := legacyData(t, user, "api/workflow-definitions", "exclude", exclude)
			assert.NotContains(t, jsontree.Pluck(defs, "name"), servicedef.AdhocWorkflowName, "exclude=%s", exclude)
		}
	})

	t.Run("get", func(t *ldtest.T) {
		defs := legacyData(t, user, "api/workflow-definitions")
		var id string
		for _, d := range jsontree.Items(defs) {
			if jsontree.Get(d, "name").StringValue() == servicedef.AdhocWorkflowName {
				id = jsontree.RequireString(t, d, "id")
			}
		}
		require.NotEmpty(t, id)

		def := legacyData(t, user, restclient.Pathf("api/workflow-definitions/%s", id))
		assert.Equal(t, id, jsontree.RequireString(t, def, "id"))
		assert.Equal(t, servicedef.AdhocWorkflowName, jsontree.RequireString(t, def, "name"))
		assert.Equal(t, servicedef.AdhocStartTaskType, jsontree.RequireString(t, def, "startTaskDefinitionType"))
		jsontree.RequireString(t, def, "startTaskDefinitionUrl")
		taskTypes := jsontree.Pluck(jsontree.Get(def, "taskDefinitions"), "type", "name")
		assert.Contains(t, taskTypes, servicedef.AdhocTaskType)
	})

	t.Run("unknown definition", func(t *ldtest.T) {
		newClient(t).Get(restclient.Pathf("api/workflow-definitions/%s", legacyID("noSuchProcess:1:1"))).
			As(user.Creds()).Expect(t, http.StatusNotFound)
	})
}

func doLegacyInstanceTests(t *ldtest.T) {
	initiator, assignee, outsider := NewUser(t), NewUser(t), NewUser(t)
	doc := NewNode(t, initiator, servicedef.NodeAliasMy, uniqueName("doc")+".txt", false)
	process := StartAdhocProcess(t, initiator, assignee, doc)
	id := legacyID(process.ID)

	t.Run("get", func(t *ldtest.T) {
		data := legacyData(t, initiator, workflowInstancePath(process.ID))
		assert.Equal(t, id, jsontree.RequireString(t, data, "id"))
		assert.Equal(t, servicedef.AdhocWorkflowName, jsontree.RequireString(t, data, "name"))
		assert.True(t, jsontree.RequireBool(t, data, "isActive"))
		assert.Equal(t, initiator.UserName, jsontree.RequireString(t, data, "initiator", "userName"))
		assert.Equal(t, "Task for "+assignee.UserName, jsontree.RequireString(t, data, "message"))
		assert.Equal(t, 2, jsontree.RequireInt(t, data, "priority"))
		jsontree.RequireString(t, data, "startDate")
		jsontree.RequireString(t, data, "package")
		assert.True(t, jsontree.Get(data, "endDate").IsNull())
		assert.False(t, jsontree.Has(data, "tasks"))
	})

	t.Run("get with tasks", func(t *ldtest.T) {
		data := legacyData(t, initiator, workflowInstancePath(process.ID), "includeTasks", "true")
		tasks := jsontree.RequireArray(t, data, "tasks")
		require.Len(t, tasks, 2)
		assert.Equal(t, servicedef.AdhocStartTaskType, jsontree.RequireString(t, tasks[0], "name"))
		assert.Equal(t, servicedef.TaskStateCompleted, jsontree.RequireString(t, tasks[0], "state"))
		assert.Equal(t, servicedef.AdhocTaskType, jsontree.RequireString(t, tasks[1], "name"))
		assert.Equal(t, servicedef.TaskStateInProgress, jsontree.RequireString(t, tasks[1], "state"))
		assert.Equal(t, jsontree.RequireString(t, tasks[0], "id"), jsontree.RequireString(t, data, "startTaskInstanceId"))
		assert.Equal(t, servicedef.AdhocWorkflowName, jsontree.RequireString(t, data, "definition", "name"))
	})

	t.Run("assignee can see it", func(t *ldtest.T) {
		legacyData(t, assignee, workflowInstancePath(process.ID))
	})

	t.Run("uninvolved user cannot see it", func(t *ldtest.T) {
		newClient(t).Get(workflowInstancePath(process.ID)).As(outsider.Creds()).Expect(t, http.StatusForbidden)
		list := legacyData(t, outsider, "api/workflow-instances")
		assert.NotContains(t, jsontree.Pluck(list, "id"), id)
	})

	t.Run("unknown instance", func(t *ldtest.T) {
		newClient(t).Get(restclient.Pathf("api/workflow-instances/%s", legacyID("999999999"))).
			As(initiator.Creds()).Expect(t, http.StatusNotFound)
	})

	t.Run("list", func(t *ldtest.T) {
		list := legacyData(t, initiator, "api/workflow-instances", "initiator", initiator.UserName, "state", "active")
		assert.Equal(t, []string{id}, jsontree.Pluck(list, "id"))

		completed := legacyData(t, initiator, "api/workflow-instances", "initiator", initiator.UserName, "state", "completed")
		assert.Empty(t, jsontree.Items(completed))

		excluded := legacyData(t, initiator, "api/workflow-instances", "exclude", servicedef.AdhocWorkflowName)
		assert.NotContains(t, jsontree.Pluck(excluded, "id"), id)
	})

	t.Run("list paging", func(t *ldtest.T) {
		second := StartAdhocProcess(t, initiator, assignee)
		resp := newClient(t).Get("api/workflow-instances").As(initiator.Creds()).
			Query("initiator", initiator.UserName).Query("maxItems", "1").Query("skipCount", "1").
			ExpectJSON(t, http.StatusOK)
		assert.Equal(t, []string{legacyID(second.ID)}, jsontree.Pluck(jsontree.Get(resp, "data"), "id"))
		assert.Equal(t, 2, jsontree.RequireInt(t, resp, "paging", "totalItems"))
		assert.Equal(t, 1, jsontree.RequireInt(t, resp, "paging", "maxItems"))
		assert.Equal(t, 1, jsontree.RequireInt(t, resp, "paging", "skipCount"))
	})

	t.Run("instances of definition", func(t *ldtest.T) {
		path := restclient.Pathf("api/workflow-definitions/%s/workflow-instances", servicedef.AdhocWorkflowName)
		list := legacyData(t, initiator, path, "initiator", initiator.UserName)
		assert.Contains(t, jsontree.Pluck(list, "id"), id)
	})

	t.Run("instances of node", func(t *ldtest.T) {
		list := legacyData(t, initiator, "api/node/"+doc.Path()+"/workflow-instances")
		assert.Equal(t, []string{id}, jsontree.Pluck(list, "id"))
	})

	t.Run("task instances of workflow", func(t *ldtest.T) {
		path := workflowInstancePath(process.ID) + "/task-instances"
		all := legacyData(t, initiator, path)
		assert.Equal(t, []string{servicedef.AdhocStartTaskType, servicedef.AdhocTaskType}, jsontree.Pluck(all, "name"))

		open := legacyData(t, initiator, path, "state", servicedef.TaskStateInProgress)
		assert.Equal(t, []string{servicedef.AdhocTaskType}, jsontree.Pluck(open, "name"))

		mine := legacyData(t, initiator, path, "authority", assignee.UserName)
		assert.Equal(t, []string{servicedef.AdhocTaskType}, jsontree.Pluck(mine, "name"))
	})

	t.Run("task instances of unknown workflow", func(t *ldtest.T) {
		newClient(t).Get(restclient.Pathf("api/workflow-instances/%s/task-instances", legacyID("999999999"))).
			As(initiator.Creds()).Expect(t, http.StatusInternalServerError)
	})
}

func doLegacyTaskTests(t *ldtest.T) {
	initiator, assignee, outsider := NewUser(t), NewUser(t), NewUser(t)
	process := StartAdhocProcess(t, initiator, assignee)

	tasks := legacyData(t, assignee, "api/task-instances")
	require.Len(t, jsontree.Items(tasks), 1)
	task := jsontree.Items(tasks)[0]
	taskID := jsontree.RequireString(t, task, "id")

	t.Run("my tasks", func(t *ldtest.T) {
		assert.Equal(t, servicedef.AdhocTaskType, jsontree.RequireString(t, task, "name"))
		assert.Equal(t, servicedef.TaskStateInProgress, jsontree.RequireString(t, task, "state"))
		assert.Equal(t, assignee.UserName, jsontree.RequireString(t, task, "owner", "userName"))
		assert.Equal(t, legacyID(process.ID), jsontree.RequireString(t, task, "workflowInstance", "id"))
		assert.True(t, jsontree.RequireBool(t, task, "isEditable"))
		assert.True(t, jsontree.RequireBool(t, task, "isReassignable"))
		assert.Equal(t, assignee.UserName, jsontree.RequireString(t, task, "properties", "bpm_assignee"))
	})

	t.Run("filters", func(t *ldtest.T) {
		assert.Empty(t, jsontree.Items(legacyData(t, initiator, "api/task-instances")))
		byAuthority := legacyData(t, initiator, "api/task-instances", "authority", assignee.UserName)
		assert.Equal(t, []string{taskID}, jsontree.Pluck(byAuthority, "id"))
		assert.Empty(t, jsontree.Items(legacyData(t, assignee, "api/task-instances", "exclude", "wf:*")))
		assert.Empty(t, jsontree.Items(legacyData(t, assignee, "api/task-instances", "priority", "1")))
		assert.Len(t, jsontree.Items(legacyData(t, assignee, "api/task-instances", "priority", "2")), 1)
		assert.Empty(t, jsontree.Items(legacyData(t, assignee, "api/task-instances", "state", servicedef.TaskStateCompleted)))
	})

	t.Run("get", func(t *ldtest.T) {
		data := legacyData(t, initiator, taskInstancePath(taskID))
		assert.Equal(t, taskID, jsontree.RequireString(t, data, "id"))
		assert.False(t, jsontree.RequireBool(t, data, "isReassignable"))
		assert.Equal(t, servicedef.AdhocTaskType, jsontree.RequireString(t, data, "definition", "type", "name"))
		newClient(t).Get(taskInstancePath(taskID)).As(outsider.Creds()).Expect(t, http.StatusForbidden)
	})

	t.Run("update properties", func(t *ldtest.T) {
		resp := newClient(t).Put(taskInstancePath(taskID)).As(assignee.Creds()).
			JSON(map[string]interface{}{"bpm_comment": "looking at it", "bpm_description": "changed"}).
			ExpectJSON(t, http.StatusOK)
		assert.Equal(t, "looking at it", jsontree.RequireString(t, resp, "data", "properties", "bpm_comment"))
		assert.Equal(t, "changed", jsontree.RequireString(t, resp, "data", "description"))
		assert.Equal(t, assignee.UserName, jsontree.RequireString(t, resp, "data", "properties", "bpm_assignee"))

		reread := legacyData(t, initiator, taskInstancePath(taskID))
		assert.Equal(t, "looking at it", jsontree.RequireString(t, reread, "properties", "bpm_comment"))
	})

	t.Run("uninvolved user cannot update", func(t *ldtest.T) {
		newClient(t).Put(taskInstancePath(taskID)).As(outsider.Creds()).
			JSON(map[string]interface{}{"bpm_comment": "hijacked"}).
			Expect(t, http.StatusUnauthorized)
	})

	t.Run("completed task cannot be updated", func(t *ldtest.T) {
		completeTask(t, assignee, activeTask(t, assignee, process.ID).ID)
		newClient(t).Put(taskInstancePath(taskID)).As(assignee.Creds()).
			JSON(map[string]interface{}{"bpm_comment": "too late"}).
			Expect(t, http.StatusUnauthorized)

		data := legacyData(t, assignee, taskInstancePath(taskID))
		assert.Equal(t, servicedef.TaskStateCompleted, jsontree.RequireString(t, data, "state"))
		assert.False(t, jsontree.RequireBool(t, data, "isEditable"))

		verify := legacyData(t, initiator, "api/task-instances")
		assert.Equal(t, []string{servicedef.AdhocCompletedTaskType}, jsontree.Pluck(verify, "name"))
	})
}

func doLegacyCancelTests(t *ldtest.T) {
	initiator, assignee := NewUser(t), NewUser(t)

	t.Run("only initiator can cancel", func(t *ldtest.T) {
		process := StartAdhocProcess(t, initiator, assignee)
		newClient(t).Delete(workflowInstancePath(process.ID)).As(assignee.Creds()).Expect(t, http.StatusForbidden)
		assert.True(t, jsontree.RequireBool(t, legacyData(t, initiator, workflowInstancePath(process.ID)), "isActive"))
	})

	t.Run("cancel", func(t *ldtest.T) {
		doc := NewNode(t, initiator, servicedef.NodeAliasMy, uniqueName("doc")+".txt", false)
		process := StartAdhocProcess(t, initiator, assignee, doc)
		nodeInstances := "api/node/" + doc.Path() + "/workflow-instances"
		require.Len(t, jsontree.Items(legacyData(t, initiator, nodeInstances)), 1)
		newClient(t).Delete(workflowInstancePath(process.ID)).As(initiator.Creds()).Expect(t, http.StatusOK)

		data := legacyData(t, initiator, workflowInstancePath(process.ID))
		assert.False(t, jsontree.RequireBool(t, data, "isActive"))
		jsontree.RequireString(t, data, "endDate")
		assert.Empty(t, jsontree.Items(legacyData(t, assignee, "api/task-instances")))
		assert.Empty(t, jsontree.Items(legacyData(t, initiator, nodeInstances)))

		newClient(t).Delete(workflowInstancePath(process.ID)).As(initiator.Creds()).Expect(t, http.StatusNotFound)

		t.Run("forced delete removes it", func(t *ldtest.T) {
			newClient(t).Delete(workflowInstancePath(process.ID)).Query("forced", "true").As(initiator.Creds()).
				Expect(t, http.StatusOK)
			newClient(t).Get(workflowInstancePath(process.ID)).As(initiator.Creds()).Expect(t, http.StatusNotFound)
		})
	})

	t.Run("completed workflow", func(t *ldtest.T) {
		process := StartAdhocProcess(t, initiator, assignee)
		runAdhocToCompletion(t, process, initiator, assignee)

		data := legacyData(t, initiator, workflowInstancePath(process.ID))
		assert.False(t, jsontree.RequireBool(t, data, "isActive"))
		newClient(t).Delete(workflowInstancePath(process.ID)).As(initiator.Creds()).Expect(t, http.StatusNotFound)
	})
}
