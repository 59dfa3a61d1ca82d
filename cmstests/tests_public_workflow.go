package cmstests

import (
	"net/http"

	"github.com/contentrepo/webscript-contract-tests/framework/jsontree"
	"github.com/contentrepo/webscript-contract-tests/framework/ldtest"
	"github.com/contentrepo/webscript-contract-tests/framework/paging"
	"github.com/contentrepo/webscript-contract-tests/framework/restclient"
	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func listProcesses(t *ldtest.T, user User, where string) []paging.ProcessInfo {
	req := newClient(t).Get("processes").On(restclient.Workflow).As(user.Creds())
	if where != "" {
		req.Query("where", where)
	}
	list, err := paging.ProcessesParser.ParseList(req.ExpectJSON(t, http.StatusOK))
	require.NoError(t, err)
	return list.Entries
}

func processIDs(processes []paging.ProcessInfo) []string {
	ids := make([]string, 0, len(processes))
	for _, p := range processes {
		ids = append(ids, p.ID)
	}
	return ids
}

func DoPublicWorkflowTests(t *ldtest.T) {
	requireWorkflow(t)

	t.Run("process definitions", doProcessDefinitionTests)
	t.Run("deployments", doDeploymentTests)
	t.Run("start process", doStartProcessTests)
	t.Run("processes", doProcessTests)
	t.Run("variables", doProcessVariableTests)
	t.Run("items", doProcessItemTests)
	t.Run("tasks", doTaskTests)
	t.Run("lifecycle", doProcessLifecycleTests)
	t.Run("unsupported methods", doUnsupportedMethodTests)
}

func doProcessDefinitionTests(t *ldtest.T) {
	user := NewUser(t)
	c := newClient(t)

	resp := c.Get("process-definitions").On(restclient.Workflow).As(user.Creds()).ExpectJSON(t, http.StatusOK)
	list, err := paging.ProcessDefinitionParser.ParseList(resp)
	require.NoError(t, err)
	var adhoc *paging.ProcessDefinition
	for i, d := range list.Entries {
		if d.Key == servicedef.AdhocProcessKey {
			adhoc = &list.Entries[i]
		}
	}
	require.NotNil(t, adhoc, "ad hoc process definition should be deployed")

	t.Run("properties", func(t *ldtest.T) {
		assert.NotEmpty(t, adhoc.ID)
		assert.NotEmpty(t, adhoc.Name)
		assert.NotEmpty(t, adhoc.DeploymentID)
		assert.GreaterOrEqual(t, adhoc.Version, 1)
		assert.Equal(t, servicedef.AdhocStartTaskType, adhoc.StartFormResourceKey)
		assert.Equal(t, len(list.Entries), list.Paging.Count)
	})

	t.Run("get", func(t *ldtest.T) {
		resp := c.Get(restclient.Pathf("process-definitions/%s", adhoc.ID)).On(restclient.Workflow).As(user.Creds()).
			ExpectJSON(t, http.StatusOK)
		def, err := paging.ProcessDefinitionParser.ParseSingle(resp)
		require.NoError(t, err)
		assert.Equal(t, *adhoc, def)
	})

	t.Run("unknown", func(t *ldtest.T) {
		c.Get(restclient.Pathf("process-definitions/%s", "noSuchProcess:1:1")).On(restclient.Workflow).As(user.Creds()).
			Expect(t, http.StatusNotFound)
	})
}

func doDeploymentTests(t *ldtest.T) {
	c := newClient(t)

	resp := c.Get("deployments").On(restclient.Workflow).As(adminCreds(t)).ExpectJSON(t, http.StatusOK)
	list, err := paging.DeploymentParser.ParseList(resp)
	require.NoError(t, err)
	require.NotEmpty(t, list.Entries)

	t.Run("get", func(t *ldtest.T) {
		first := list.Entries[0]
		resp := c.Get(restclient.Pathf("deployments/%s", first.ID)).On(restclient.Workflow).As(adminCreds(t)).
			ExpectJSON(t, http.StatusOK)
		d, err := paging.DeploymentParser.ParseSingle(resp)
		require.NoError(t, err)
		assert.Equal(t, first, d)
		assert.NotEmpty(t, d.DeployedAt)
	})

	t.Run("requires administrator", func(t *ldtest.T) {
		c.Get("deployments").On(restclient.Workflow).As(NewUser(t).Creds()).Expect(t, http.StatusForbidden)
	})
}

func doStartProcessTests(t *ldtest.T) {
	initiator, assignee := NewUser(t), NewUser(t)

	t.Run("by key", func(t *ldtest.T) {
		doc := NewNode(t, initiator, servicedef.NodeAliasMy, uniqueName("doc")+".txt", false)
		process := StartAdhocProcess(t, initiator, assignee, doc)
		assert.NotEmpty(t, process.ID)
		assert.Equal(t, servicedef.AdhocProcessKey, process.ProcessDefinitionKey)
		assert.NotEmpty(t, process.ProcessDefinitionID)
		assert.Equal(t, initiator.UserName, process.StartUserID)
		assert.NotEmpty(t, process.StartActivityID)
		assert.NotNil(t, process.StartedAt)
		assert.Nil(t, process.EndedAt)
		assert.False(t, process.Completed)
		assert.Equal(t, assignee.UserName, process.Variables["bpm_assignee"].StringValue())
		assert.Equal(t, initiator.UserName, process.Variables["initiator"].StringValue())
		assert.Equal(t, []string{doc.NodeRef()}, process.Items)
	})

	t.Run("by definition id", func(t *ldtest.T) {
		def := getAdhocDefinitionID(t, initiator)
		c := newClient(t)
		resp := c.Post("processes").On(restclient.Workflow).As(initiator.Creds()).
			JSON(servicedef.StartProcessParams{
				ProcessDefinitionID: def,
				BusinessKey:         uniqueName("bk"),
				Variables: map[string]interface{}{
					"bpm_assignee": assignee.UserName,
					"bpm_priority": 1,
					"custom":       "value",
				},
			}).
			ExpectJSON(t, http.StatusCreated)
		process, err := paging.ProcessesParser.ParseSingle(resp)
		require.NoError(t, err)
		disposeOnExit(t, "process "+process.ID, c.Delete(processPath(process.ID)).On(restclient.Workflow).As(initiator.Creds()))

		assert.Equal(t, def, process.ProcessDefinitionID)
		assert.NotEmpty(t, process.BusinessKey)
		assert.Equal(t, 1, process.Variables["bpm_priority"].IntValue())
		assert.Equal(t, "value", process.Variables["custom"].StringValue())
		assert.Equal(t, 1, activeTask(t, assignee, process.ID).Priority)
	})

	t.Run("invalid requests", func(t *ldtest.T) {
		privateDoc := NewNode(t, assignee, servicedef.NodeAliasMy, uniqueName("doc")+".txt", false)
		for name, params := range map[string]servicedef.StartProcessParams{
			"no definition": {
				Variables: map[string]interface{}{"bpm_assignee": assignee.UserName},
			},
			"unknown key": {
				ProcessDefinitionKey: "noSuchProcess",
				Variables:            map[string]interface{}{"bpm_assignee": assignee.UserName},
			},
			"unknown assignee": {
				ProcessDefinitionKey: servicedef.AdhocProcessKey,
				Variables:            map[string]interface{}{"bpm_assignee": uniqueName("ghost")},
			},
			"no assignee": {
				ProcessDefinitionKey: servicedef.AdhocProcessKey,
			},
			"unreadable item": {
				ProcessDefinitionKey: servicedef.AdhocProcessKey,
				Variables:            map[string]interface{}{"bpm_assignee": assignee.UserName},
				Items:                []string{privateDoc.NodeRef()},
			},
		} {
			t.Debug("checking %s", name)
			newClient(t).Post("processes").On(restclient.Workflow).As(initiator.Creds()).JSON(params).
				Expect(t, http.StatusBadRequest)
		}
		assert.Empty(t, listProcesses(t, initiator, ""))
	})
}

func getAdhocDefinitionID(t *ldtest.T, user User) string {
	resp := newClient(t).Get("process-definitions").On(restclient.Workflow).As(user.Creds()).
		ExpectJSON(t, http.StatusOK)
	list, err := paging.ProcessDefinitionParser.ParseList(resp)
	require.NoError(t, err)
	for _, d := range list.Entries {
		if d.Key == servicedef.AdhocProcessKey {
			return d.ID
		}
	}
	require.Fail(t, "ad hoc process definition is not deployed")
	return ""
}

func doProcessTests(t *ldtest.T) {
	initiator, assignee, outsider := NewUser(t), NewUser(t), NewUser(t)
	process := StartAdhocProcess(t, initiator, assignee)

	t.Run("get", func(t *ldtest.T) {
		got := getProcess(t, initiator, process.ID)
		assert.Equal(t, process.ID, got.ID)
		assert.Equal(t, process.StartUserID, got.StartUserID)
		assert.False(t, got.Completed)
		getProcess(t, assignee, process.ID)
	})

	t.Run("uninvolved user", func(t *ldtest.T) {
		newClient(t).Get(processPath(process.ID)).On(restclient.Workflow).As(outsider.Creds()).
			Expect(t, http.StatusForbidden)
		assert.NotContains(t, processIDs(listProcesses(t, outsider, "")), process.ID)
	})

	t.Run("unknown", func(t *ldtest.T) {
		newClient(t).Get(processPath("999999999")).On(restclient.Workflow).As(initiator.Creds()).
			Expect(t, http.StatusNotFound)
	})

	t.Run("list", func(t *ldtest.T) {
		assert.Equal(t, []string{process.ID}, processIDs(listProcesses(t, initiator, "")))
		assert.Equal(t, []string{process.ID}, processIDs(listProcesses(t, assignee, "(status=active)")))
		assert.Empty(t, listProcesses(t, initiator, "(status=completed)"))
		assert.Equal(t, []string{process.ID},
			processIDs(listProcesses(t, initiator, "(processDefinitionKey='"+servicedef.AdhocProcessKey+"')")))
		assert.Empty(t, listProcesses(t, initiator, "(processDefinitionKey='noSuchProcess')"))
	})

	t.Run("invalid where clause", func(t *ldtest.T) {
		newClient(t).Get("processes").On(restclient.Workflow).As(initiator.Creds()).Query("where", "status=any").
			Expect(t, http.StatusBadRequest)
	})

	t.Run("paging", func(t *ldtest.T) {
		second := StartAdhocProcess(t, initiator, assignee)
		resp := newClient(t).Get("processes").On(restclient.Workflow).As(initiator.Creds()).
			Query("maxItems", "1").ExpectJSON(t, http.StatusOK)
		list, err := paging.ProcessesParser.ParseList(resp)
		require.NoError(t, err)
		assert.Equal(t, []string{process.ID}, processIDs(list.Entries))
		assert.Equal(t, 1, list.Paging.Count)
		assert.True(t, list.Paging.HasMoreItems)
		assert.Equal(t, 1, list.Paging.MaxItems)

		resp = newClient(t).Get("processes").On(restclient.Workflow).As(initiator.Creds()).
			Query("maxItems", "1").Query("skipCount", "1").ExpectJSON(t, http.StatusOK)
		list, err = paging.ProcessesParser.ParseList(resp)
		require.NoError(t, err)
		assert.Equal(t, []string{second.ID}, processIDs(list.Entries))
		assert.False(t, list.Paging.HasMoreItems)
		assert.Equal(t, 1, list.Paging.SkipCount)
	})

	t.Run("sorting", func(t *ldtest.T) {
		sorter, helper := NewUser(t), NewUser(t)
		a := StartAdhocProcessWithKey(t, sorter, helper, "akey")
		b := StartAdhocProcessWithKey(t, sorter, helper, "bkey")
		aa := StartAdhocProcessWithKey(t, sorter, helper, "aakey")

		sorted := func(t *ldtest.T, orderBy string) []string {
			resp := newClient(t).Get("processes").On(restclient.Workflow).As(sorter.Creds()).
				Query("orderBy", orderBy).ExpectJSON(t, http.StatusOK)
			list, err := paging.ProcessesParser.ParseList(resp)
			require.NoError(t, err)
			return processIDs(list.Entries)
		}

		assert.Equal(t, []string{aa.ID, a.ID, b.ID}, sorted(t, "businessKey ASC"))
		assert.Equal(t, []string{b.ID, a.ID, aa.ID}, sorted(t, "businessKey DESC"))
		assert.Equal(t, []string{aa.ID, a.ID, b.ID}, sorted(t, "businessKey"))
		assert.Equal(t, []string{a.ID, b.ID, aa.ID}, sorted(t, "startedAt ASC"))
		for _, orderBy := range []string{"endedAt ASC", "durationInMillis ASC"} {
			assert.ElementsMatch(t, []string{a.ID, b.ID, aa.ID}, sorted(t, orderBy), orderBy)
		}

		for _, orderBy := range []string{"startedAt, endedAt", "businessKey2 ASC", "businessKey ASC2"} {
			t.Debug("checking orderBy %q", orderBy)
			newClient(t).Get("processes").On(restclient.Workflow).As(sorter.Creds()).
				Query("orderBy", orderBy).Expect(t, http.StatusBadRequest)
		}
	})

	t.Run("activities", func(t *ldtest.T) {
		activities := func(t *ldtest.T, user User, status string) map[string]ldvalue.Value {
			req := newClient(t).Get(processPath(process.ID)+"/activities").On(restclient.Workflow).As(user.Creds())
			if status != "" {
				req.Query("status", status)
			}
			list, err := paging.RawParser.ParseList(req.ExpectJSON(t, http.StatusOK))
			require.NoError(t, err)
			ret := make(map[string]ldvalue.Value)
			for _, e := range list.Entries {
				ret[jsontree.RequireString(t, e, "activityDefinitionId")] = e
			}
			return ret
		}

		all := activities(t, initiator, "")
		require.Len(t, all, 2)

		start := all["start"]
		jsontree.RequireString(t, start, "id")
		assert.Equal(t, "startEvent", jsontree.RequireString(t, start, "activityDefinitionType"))
		assert.False(t, jsontree.Has(start, "activityDefinitionName"))
		jsontree.RequireString(t, start, "startedAt")
		jsontree.RequireString(t, start, "endedAt")
		assert.True(t, jsontree.Has(start, "durationInMs"))

		task := all["adhocTask"]
		jsontree.RequireString(t, task, "id")
		assert.Equal(t, "userTask", jsontree.RequireString(t, task, "activityDefinitionType"))
		assert.Equal(t, "Adhoc Task", jsontree.RequireString(t, task, "activityDefinitionName"))
		jsontree.RequireString(t, task, "startedAt")
		assert.False(t, jsontree.Has(task, "endedAt"))
		assert.False(t, jsontree.Has(task, "durationInMs"))

		active := activities(t, initiator, "active")
		require.Len(t, active, 1)
		assert.Contains(t, active, "adhocTask")
		assert.Len(t, activities(t, initiator, "completed"), 1)
		assert.Len(t, activities(t, assignee, ""), 2)

		newClient(t).Get(processPath("fakeid")+"/activities").On(restclient.Workflow).As(initiator.Creds()).
			Expect(t, http.StatusNotFound)
		newClient(t).Get(processPath(process.ID)+"/activities").On(restclient.Workflow).As(outsider.Creds()).
			Expect(t, http.StatusForbidden)
	})

	t.Run("delete", func(t *ldtest.T) {
		doomed := StartAdhocProcess(t, initiator, assignee)
		path := processPath(doomed.ID)
		newClient(t).Delete(path).On(restclient.Workflow).As(assignee.Creds()).Expect(t, http.StatusForbidden)
		newClient(t).Delete(path).On(restclient.Workflow).As(initiator.Creds()).Expect(t, http.StatusNoContent)

		deleted := getProcess(t, initiator, doomed.ID)
		assert.True(t, deleted.Completed)
		assert.NotEmpty(t, deleted.DeleteReason)
		assert.NotNil(t, deleted.EndedAt)
		assert.Contains(t, processIDs(listProcesses(t, initiator, "(status=completed)")), doomed.ID)
		assert.Empty(t, processTasks(t, initiator, doomed.ID, "active"))

		newClient(t).Delete(path).On(restclient.Workflow).As(initiator.Creds()).Expect(t, http.StatusNotFound)
	})
}

func doProcessVariableTests(t *ldtest.T) {
	initiator, assignee := NewUser(t), NewUser(t)
	process := StartAdhocProcess(t, initiator, assignee)
	path := processPath(process.ID) + "/variables"
	variablePath := func(name string) string {
		return restclient.Pathf("processes/%s/variables/%s", process.ID, name)
	}
	c := newClient(t)

	listVariables := func(t *ldtest.T) map[string]paging.Variable {
		resp := c.Get(path).On(restclient.Workflow).As(initiator.Creds()).ExpectJSON(t, http.StatusOK)
		list, err := paging.VariableParser.ParseList(resp)
		require.NoError(t, err)
		ret := make(map[string]paging.Variable)
		for _, v := range list.Entries {
			ret[v.Name] = v
		}
		return ret
	}

	t.Run("list", func(t *ldtest.T) {
		vars := listVariables(t)
		assert.Equal(t, assignee.UserName, vars["bpm_assignee"].Value.StringValue())
		assert.Equal(t, "d:text", vars["bpm_workflowDescription"].Type)
	})

	t.Run("create one", func(t *ldtest.T) {
		resp := c.Post(path).On(restclient.Workflow).As(initiator.Creds()).
			JSON(servicedef.VariableParams{Name: "count", Type: "d:int", Value: 3}).
			ExpectJSON(t, http.StatusCreated)
		v, err := paging.VariableParser.ParseSingle(resp)
		require.NoError(t, err)
		assert.Equal(t, "count", v.Name)
		assert.Equal(t, "d:int", v.Type)
		assert.Equal(t, 3, v.Value.IntValue())
		assert.Equal(t, 3, listVariables(t)["count"].Value.IntValue())
	})

	t.Run("create several", func(t *ldtest.T) {
		resp := c.Post(path).On(restclient.Workflow).As(initiator.Creds()).
			JSON([]servicedef.VariableParams{
				{Name: "flag", Type: "d:boolean", Value: true},
				{Name: "ratio", Value: 0.5},
			}).
			ExpectJSON(t, http.StatusCreated)
		list, err := paging.VariableParser.ParseList(resp)
		require.NoError(t, err)
		require.Len(t, list.Entries, 2)
		assert.Equal(t, "d:double", list.Entries[1].Type)

		vars := listVariables(t)
		assert.True(t, vars["flag"].Value.BoolValue())
		assert.Equal(t, 0.5, vars["ratio"].Value.Float64Value())
	})

	t.Run("update", func(t *ldtest.T) {
		resp := c.Put(variablePath("custom-text")).On(restclient.Workflow).As(initiator.Creds()).
			JSON(servicedef.VariableParams{Type: "d:text", Value: "hello"}).
			ExpectJSON(t, http.StatusOK)
		v, err := paging.VariableParser.ParseSingle(resp)
		require.NoError(t, err)
		assert.Equal(t, "custom-text", v.Name)
		assert.Equal(t, "hello", listVariables(t)["custom-text"].Value.StringValue())
	})

	t.Run("type mismatch", func(t *ldtest.T) {
		c.Post(path).On(restclient.Workflow).As(initiator.Creds()).
			JSON(servicedef.VariableParams{Name: "bad", Type: "d:int", Value: "three"}).
			Expect(t, http.StatusBadRequest)
		c.Post(path).On(restclient.Workflow).As(initiator.Creds()).
			JSON(servicedef.VariableParams{Name: "bad", Type: "d:noSuchType", Value: "x"}).
			Expect(t, http.StatusBadRequest)
		_, found := listVariables(t)["bad"]
		assert.False(t, found)
	})

	t.Run("delete", func(t *ldtest.T) {
		c.Post(path).On(restclient.Workflow).As(initiator.Creds()).
			JSON(servicedef.VariableParams{Name: "temporary", Value: "x"}).
			Expect(t, http.StatusCreated)
		varPath := variablePath("temporary")
		c.Delete(varPath).On(restclient.Workflow).As(initiator.Creds()).Expect(t, http.StatusNoContent)
		c.Delete(varPath).On(restclient.Workflow).As(initiator.Creds()).Expect(t, http.StatusNotFound)
	})
}

func doProcessItemTests(t *ldtest.T) {
	initiator, assignee := NewUser(t), NewUser(t)
	first := NewNode(t, initiator, servicedef.NodeAliasMy, uniqueName("doc")+".txt", false)
	second := NewNode(t, initiator, servicedef.NodeAliasMy, uniqueName("doc")+".txt", false)
	process := StartAdhocProcess(t, initiator, assignee, first)
	path := processPath(process.ID) + "/items"
	itemPath := func(id string) string {
		return restclient.Pathf("processes/%s/items/%s", process.ID, id)
	}
	c := newClient(t)

	listItemIDs := func(t *ldtest.T) []string {
		resp := c.Get(path).On(restclient.Workflow).As(initiator.Creds()).ExpectJSON(t, http.StatusOK)
		list, err := paging.RawParser.ParseList(resp)
		require.NoError(t, err)
		return jsontree.Pluck(ldvalue.ArrayOf(list.Entries...), "id")
	}

	t.Run("list", func(t *ldtest.T) {
		assert.Equal(t, []string{first.ID}, listItemIDs(t))
	})

	t.Run("get", func(t *ldtest.T) {
		resp := c.Get(itemPath(first.ID)).On(restclient.Workflow).As(initiator.Creds()).
			ExpectJSON(t, http.StatusOK)
		assert.Equal(t, first.Name, jsontree.RequireString(t, resp, "entry", "name"))
		c.Get(itemPath(second.ID)).On(restclient.Workflow).As(initiator.Creds()).
			Expect(t, http.StatusNotFound)
	})

	t.Run("add", func(t *ldtest.T) {
		resp := c.Post(path).On(restclient.Workflow).As(initiator.Creds()).
			JSON(servicedef.ItemParams{ID: second.NodeRef()}).
			ExpectJSON(t, http.StatusCreated)
		assert.Equal(t, second.ID, jsontree.RequireString(t, resp, "entry", "id"))
		assert.Equal(t, []string{first.ID, second.ID}, listItemIDs(t))

		c.Post(path).On(restclient.Workflow).As(initiator.Creds()).
			JSON(servicedef.ItemParams{ID: second.NodeRef()}).
			Expect(t, http.StatusConflict)
	})

	t.Run("add unknown node", func(t *ldtest.T) {
		c.Post(path).On(restclient.Workflow).As(initiator.Creds()).
			JSON(servicedef.ItemParams{ID: servicedef.NodeRefForID("no-such-node")}).
			Expect(t, http.StatusNotFound)
	})

	t.Run("process lists its items", func(t *ldtest.T) {
		got := getProcess(t, initiator, process.ID)
		assert.ElementsMatch(t, []string{first.NodeRef(), second.NodeRef()}, got.Items)
	})

	t.Run("delete", func(t *ldtest.T) {
		c.Delete(itemPath(first.ID)).On(restclient.Workflow).As(initiator.Creds()).Expect(t, http.StatusNoContent)
		c.Delete(itemPath(first.ID)).On(restclient.Workflow).As(initiator.Creds()).Expect(t, http.StatusNotFound)
		assert.Equal(t, []string{second.ID}, listItemIDs(t))
	})
}

func doTaskTests(t *ldtest.T) {
	initiator, assignee, outsider := NewUser(t), NewUser(t), NewUser(t)
	process := StartAdhocProcess(t, initiator, assignee)
	task := activeTask(t, assignee, process.ID)
	taskPath := restclient.Pathf("tasks/%s", task.ID)
	c := newClient(t)

	t.Run("properties", func(t *ldtest.T) {
		assert.Equal(t, process.ID, task.ProcessID)
		assert.Equal(t, process.ProcessDefinitionID, task.ProcessDefinitionID)
		assert.Equal(t, assignee.UserName, task.Assignee)
		assert.Equal(t, servicedef.PublicTaskStateClaimed, task.State)
		assert.Equal(t, "Task for "+assignee.UserName, task.Description)
		assert.NotEmpty(t, task.ActivityDefinitionID)
		assert.NotNil(t, task.StartedAt)
		assert.Nil(t, task.EndedAt)
	})

	t.Run("process tasks", func(t *ldtest.T) {
		all := processTasks(t, initiator, process.ID, "any")
		require.Len(t, all, 2)
		assert.Equal(t, servicedef.PublicTaskStateCompleted, all[0].State)
		assert.Equal(t, initiator.UserName, all[0].Assignee)
		assert.Equal(t, task.ID, all[1].ID)
	})

	t.Run("my tasks", func(t *ldtest.T) {
		resp := c.Get("tasks").On(restclient.Workflow).As(assignee.Creds()).
			Query("where", "(processId="+process.ID+")").ExpectJSON(t, http.StatusOK)
		list, err := paging.TaskParser.ParseList(resp)
		require.NoError(t, err)
		require.Len(t, list.Entries, 1)
		assert.Equal(t, task, list.Entries[0])

		resp = c.Get("tasks").On(restclient.Workflow).As(outsider.Creds()).ExpectJSON(t, http.StatusOK)
		list, err = paging.TaskParser.ParseList(resp)
		require.NoError(t, err)
		assert.Empty(t, list.Entries)
	})

	t.Run("get", func(t *ldtest.T) {
		resp := c.Get(taskPath).On(restclient.Workflow).As(initiator.Creds()).ExpectJSON(t, http.StatusOK)
		got, err := paging.TaskParser.ParseSingle(resp)
		require.NoError(t, err)
		assert.Equal(t, task, got)
		c.Get(taskPath).On(restclient.Workflow).As(outsider.Creds()).Expect(t, http.StatusForbidden)
		c.Get(restclient.Pathf("tasks/%s", "999999999")).On(restclient.Workflow).As(initiator.Creds()).
			Expect(t, http.StatusNotFound)
	})

	t.Run("invalid updates", func(t *ldtest.T) {
		c.Put(taskPath).On(restclient.Workflow).As(assignee.Creds()).
			JSON(servicedef.UpdateTaskParams{State: servicedef.PublicTaskStateCompleted}).
			Expect(t, http.StatusBadRequest)
		c.Put(taskPath).On(restclient.Workflow).As(assignee.Creds()).Query("select", "state").
			JSON(servicedef.UpdateTaskParams{State: "noSuchState"}).
			Expect(t, http.StatusBadRequest)
		c.Put(taskPath).On(restclient.Workflow).As(initiator.Creds()).Query("select", "state").
			JSON(servicedef.UpdateTaskParams{State: servicedef.PublicTaskStateCompleted}).
			Expect(t, http.StatusForbidden)
	})

	t.Run("complete", func(t *ldtest.T) {
		done := completeTask(t, assignee, task.ID)
		assert.Equal(t, servicedef.PublicTaskStateCompleted, done.State)
		assert.NotNil(t, done.EndedAt)

		next := activeTask(t, initiator, process.ID)
		assert.Equal(t, initiator.UserName, next.Assignee)
		assert.NotEqual(t, task.ID, next.ID)

		c.Put(taskPath).On(restclient.Workflow).As(assignee.Creds()).Query("select", "state").
			JSON(servicedef.UpdateTaskParams{State: servicedef.PublicTaskStateCompleted}).
			Expect(t, http.StatusNotFound)
	})
}

func doProcessLifecycleTests(t *ldtest.T) {
	initiator, assignee := NewUser(t), NewUser(t)
	process := StartAdhocProcess(t, initiator, assignee)

	ended := runAdhocToCompletion(t, process, initiator, assignee)
	assert.True(t, ended.Completed)
	assert.NotNil(t, ended.EndedAt)
	assert.True(t, ended.DurationInMS.IsDefined())
	assert.NotEmpty(t, ended.EndActivityID)
	assert.Empty(t, ended.DeleteReason)

	t.Run("listed as completed", func(t *ldtest.T) {
		assert.Contains(t, processIDs(listProcesses(t, initiator, "(status=completed)")), process.ID)
		assert.NotContains(t, processIDs(listProcesses(t, initiator, "")), process.ID)
		assert.Contains(t, processIDs(listProcesses(t, initiator, "(status=any)")), process.ID)
	})

	t.Run("activities are all completed", func(t *ldtest.T) {
		resp := newClient(t).Get(processPath(process.ID)+"/activities").On(restclient.Workflow).As(initiator.Creds()).
			ExpectJSON(t, http.StatusOK)
		list, err := paging.RawParser.ParseList(resp)
		require.NoError(t, err)
		require.NotEmpty(t, list.Entries)
		all := ldvalue.ArrayOf(list.Entries...)
		assert.Equal(t, "startEvent", jsontree.Pluck(all, "activityDefinitionType")[0])
		assert.Contains(t, jsontree.Pluck(all, "activityDefinitionType"), "endEvent")
		assert.Contains(t, jsontree.Pluck(all, "activityDefinitionId"), ended.EndActivityID)
		for _, e := range list.Entries {
			jsontree.RequireString(t, e, "endedAt")
		}

		resp = newClient(t).Get(processPath(process.ID)+"/activities").On(restclient.Workflow).As(initiator.Creds()).
			Query("status", "active").ExpectJSON(t, http.StatusOK)
		list, err = paging.RawParser.ParseList(resp)
		require.NoError(t, err)
		assert.Empty(t, list.Entries)
	})

	t.Run("no open tasks", func(t *ldtest.T) {
		assert.Empty(t, processTasks(t, initiator, process.ID, "active"))
		assert.Len(t, processTasks(t, initiator, process.ID, "completed"), 3)
	})

	t.Run("cannot be changed", func(t *ldtest.T) {
		newClient(t).Delete(processPath(process.ID)).On(restclient.Workflow).As(initiator.Creds()).
			Expect(t, http.StatusNotFound)
		newClient(t).Post(processPath(process.ID)+"/variables").On(restclient.Workflow).As(initiator.Creds()).
			JSON(servicedef.VariableParams{Name: "late", Value: "x"}).
			Expect(t, http.StatusNotFound)
	})
}

func doUnsupportedMethodTests(t *ldtest.T) {
	user := NewUser(t)
	c := newClient(t)
	for _, req := range []*restclient.Request{
		c.Put("processes").On(restclient.Workflow),
		c.Delete("process-definitions").On(restclient.Workflow),
		c.Post("tasks").On(restclient.Workflow),
		c.Post(restclient.Pathf("deployments/%s", "1")).On(restclient.Workflow),
	} {
		t.Debug("checking %s", req.URL())
		req.As(user.Creds()).JSON("{}").Expect(t, http.StatusMethodNotAllowed)
	}
}
