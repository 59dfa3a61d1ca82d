package cmstests

import (
	"net/http"

	"github.com/contentrepo/webscript-contract-tests/framework/ldtest"
	"github.com/contentrepo/webscript-contract-tests/framework/paging"
	"github.com/contentrepo/webscript-contract-tests/framework/restclient"
	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/stretchr/testify/require"
)

func processPath(id string) string {
	return restclient.Pathf("processes/%s", id)
}

func getProcess(t *ldtest.T, user User, id string) paging.ProcessInfo {
	resp := newClient(t).Get(processPath(id)).On(restclient.Workflow).As(user.Creds()).
		ExpectJSON(t, http.StatusOK)
	process, err := paging.ProcessesParser.ParseSingle(resp)
	require.NoError(t, err)
	return process
}

// processTasks lists the tasks of a process. status is "active", "completed" or "any".
func processTasks(t *ldtest.T, user User, processID, status string) []paging.Task {
	resp := newClient(t).Get(processPath(processID)+"/tasks").On(restclient.Workflow).As(user.Creds()).
		Query("where", "(status="+status+")").
		ExpectJSON(t, http.StatusOK)
	list, err := paging.TaskParser.ParseList(resp)
	require.NoError(t, err)
	return list.Entries
}

// activeTask returns the one task of the process that is still open.
func activeTask(t *ldtest.T, user User, processID string) paging.Task {
	tasks := processTasks(t, user, processID, "active")
	require.Len(t, tasks, 1, "process %s should have exactly one active task", processID)
	return tasks[0]
}

func completeTask(t *ldtest.T, user User, taskID string) paging.Task {
	resp := newClient(t).Put(restclient.Pathf("tasks/%s", taskID)).On(restclient.Workflow).As(user.Creds()).
		Query("select", "state").
		JSON(servicedef.UpdateTaskParams{State: servicedef.PublicTaskStateCompleted}).
		ExpectJSON(t, http.StatusOK)
	task, err := paging.TaskParser.ParseSingle(resp)
	require.NoError(t, err)
	return task
}

// runAdhocToCompletion completes the assignee's task and then the initiator's verification
// task, and waits for the process to end.
func runAdhocToCompletion(t *ldtest.T, process paging.ProcessInfo, initiator, assignee User) paging.ProcessInfo {
	completeTask(t, assignee, activeTask(t, assignee, process.ID).ID)
	completeTask(t, initiator, activeTask(t, initiator, process.ID).ID)
	var ended paging.ProcessInfo
	awaitCondition(t, "process "+process.ID+" to complete", func() bool {
		ended = getProcess(t, initiator, process.ID)
		return ended.Completed
	})
	return ended
}
