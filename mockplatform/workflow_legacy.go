package mockplatform

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/go-chi/chi/v5"
)

func (p *Platform) legacyWorkflowRoutes(r chi.Router) {
	r.Get("/api/workflow-definitions", p.handleLegacyListDefinitions)
	r.Get("/api/workflow-definitions/{id}", p.handleLegacyGetDefinition)
	r.Get("/api/workflow-definitions/{id}/workflow-instances", p.handleLegacyDefinitionInstances)
	r.Get("/api/workflow-instances", p.handleLegacyListInstances)
	r.Get("/api/workflow-instances/{id}", p.handleLegacyGetInstance)
	r.Delete("/api/workflow-instances/{id}", p.handleLegacyDeleteInstance)
	r.Get("/api/workflow-instances/{id}/task-instances", p.handleLegacyInstanceTasks)
	r.Get("/api/task-instances", p.handleLegacyListTasks)
	r.Get("/api/task-instances/{id}", p.handleLegacyGetTask)
	r.Put("/api/task-instances/{id}", p.handleLegacyUpdateTask)
	r.Get("/api/node/{storeType}/{storeId}/{id}/workflow-instances", p.handleLegacyNodeInstances)
}

// localID strips the engine prefix from a legacy identifier.
func localID(id string) (string, bool) {
	return strings.CutPrefix(id, servicedef.WorkflowEnginePrefix)
}

func legacyDefinitionID() string {
	return servicedef.WorkflowEnginePrefix + adhocDefinition.id
}

func typeURL(taskType string) string {
	return "api/classes/" + strings.Replace(taskType, ":", "_", 1)
}

func legacyTaskDefinitionJSON(taskType string) jsonObject {
	return jsonObject{
		"url": typeURL(taskType),
		"type": jsonObject{
			"name":        taskType,
			"title":       taskTitles[taskType],
			"description": taskTitles[taskType],
			"url":         typeURL(taskType),
		},
	}
}

func legacyDefinitionJSON(full bool) jsonObject {
	ret := jsonObject{
		"id":          legacyDefinitionID(),
		"url":         "api/workflow-definitions/" + legacyDefinitionID(),
		"name":        servicedef.AdhocWorkflowName,
		"title":       adhocDefinition.title,
		"description": adhocDefinition.description,
		"version":     strconv.Itoa(adhocDefinition.version),
	}
	if full {
		defs := make([]jsonObject, 0, len(adhocDefinition.taskTypes))
		for _, tt := range adhocDefinition.taskTypes {
			defs = append(defs, legacyTaskDefinitionJSON(tt))
		}
		ret["startTaskDefinitionUrl"] = typeURL(adhocDefinition.startTask)
		ret["startTaskDefinitionType"] = adhocDefinition.startTask
		ret["taskDefinitions"] = defs
	}
	return ret
}

func (p *Platform) legacyInstanceJSON(pr *process, includeTasks bool) jsonObject {
	ret := jsonObject{
		"id":            pr.legacyID(),
		"url":           "api/workflow-instances/" + pr.legacyID(),
		"name":          servicedef.AdhocWorkflowName,
		"title":         adhocDefinition.title,
		"description":   adhocDefinition.description,
		"isActive":      pr.active(),
		"startDate":     formatISO(pr.started),
		"priority":      pr.priority,
		"message":       nullIfEmpty(pr.description),
		"endDate":       optionalISO(pr.ended),
		"dueDate":       optionalISO(pr.dueDate),
		"context":       nil,
		"package":       pr.packageRef,
		"initiator":     p.personRef(pr.initiator),
		"definitionUrl": "api/workflow-definitions/" + legacyDefinitionID(),
	}
	if includeTasks {
		ret["startTaskInstanceId"] = pr.tasks[0].legacyID()
		ret["definition"] = legacyDefinitionJSON(true)
		tasks := make([]jsonObject, 0, len(pr.tasks))
		for _, t := range pr.tasks {
			tasks = append(tasks, p.legacyTaskJSON(t, pr.initiator, false))
		}
		ret["tasks"] = tasks
	}
	return ret
}

func legacyTaskState(t *task) string {
	if t.completed() {
		return servicedef.TaskStateCompleted
	}
	return servicedef.TaskStateInProgress
}

// legacyTaskJSON renders a task as seen by userName. The workflow instance is embedded unless
// the task is itself being rendered inside its instance.
func (p *Platform) legacyTaskJSON(t *task, userName string, withInstance bool) jsonObject {
	properties := jsonObject{"bpm_assignee": t.assignee}
	for k, v := range t.properties {
		properties[k] = v
	}
	active := !t.completed()
	editable := active && (t.assignee == userName || t.process.initiator == userName)
	ret := jsonObject{
		"id":             t.legacyID(),
		"url":            "api/task-instances/" + t.legacyID(),
		"name":           t.taskType,
		"title":          taskTitles[t.taskType],
		"description":    t.description,
		"state":          legacyTaskState(t),
		"path":           "api/workflow-paths/" + t.process.legacyID(),
		"isPooled":       false,
		"isEditable":     editable,
		"isReassignable": active && t.assignee == userName,
		"isClaimable":    false,
		"isReleasable":   false,
		"outcome":        nil,
		"owner":          p.personRef(t.assignee),
		"properties":     properties,
	}
	if withInstance {
		ret["workflowInstance"] = p.legacyInstanceJSON(t.process, false)
		ret["definition"] = legacyTaskDefinitionJSON(t.taskType)
	}
	return ret
}

// writeLegacyPage writes {"data": [...], "paging": {...}} for a page of items.
func writeLegacyPage(w http.ResponseWriter, r *http.Request, items []jsonObject) {
	pw := pageWindowFromQuery(r)
	start, end := pw.bounds(len(items))
	writeJSON(w, http.StatusOK, jsonObject{
		"data": items[start:end],
		"paging": jsonObject{
			"totalItems": len(items),
			"maxItems":   pw.maxItems,
			"skipCount":  pw.skipCount,
		},
	})
}

// excluded reports whether name matches one of the comma-separated patterns of an exclude
// parameter. A pattern ending in "*" matches by prefix.
func excluded(exclude, name string) bool {
	if exclude == "" {
		return false
	}
	for _, pattern := range strings.Split(exclude, ",") {
		pattern = strings.TrimSpace(pattern)
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
		} else if pattern == name {
			return true
		}
	}
	return false
}

func (p *Platform) handleLegacyListDefinitions(w http.ResponseWriter, r *http.Request) {
	data := []jsonObject{}
	if !excluded(r.URL.Query().Get("exclude"), servicedef.AdhocWorkflowName) {
		data = append(data, legacyDefinitionJSON(false))
	}
	writeJSON(w, http.StatusOK, jsonObject{"data": data})
}

func knownDefinition(id string) bool {
	return id == legacyDefinitionID() || id == servicedef.AdhocWorkflowName
}

func (p *Platform) handleLegacyGetDefinition(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if !knownDefinition(id) {
		writeWebScriptError(w, http.StatusNotFound, "Unable to find workflow definition with id %s", id)
		return
	}
	writeJSON(w, http.StatusOK, jsonObject{"data": legacyDefinitionJSON(true)})
}

// instanceFilter applies the query parameters shared by the workflow instance listings.
func (p *Platform) instanceFilter(r *http.Request) func(*process) bool {
	q := r.URL.Query()
	user := currentUser(r)
	state := strings.ToUpper(q.Get("state"))
	initiator := q.Get("initiator")
	exclude := q.Get("exclude")
	return func(pr *process) bool {
		switch {
		case !p.canSeeProcess(user, pr):
			return false
		case state == "ACTIVE" && !pr.active(), state == "COMPLETED" && pr.active():
			return false
		case initiator != "" && initiator != pr.initiator:
			return false
		case excluded(exclude, servicedef.AdhocWorkflowName):
			return false
		}
		return true
	}
}

func (p *Platform) writeLegacyInstances(w http.ResponseWriter, r *http.Request) {
	found := p.sortedProcesses(p.instanceFilter(r))
	items := make([]jsonObject, 0, len(found))
	for _, pr := range found {
		items = append(items, p.legacyInstanceJSON(pr, false))
	}
	writeLegacyPage(w, r, items)
}

func (p *Platform) handleLegacyListInstances(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.writeLegacyInstances(w, r)
}

func (p *Platform) handleLegacyDefinitionInstances(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if !knownDefinition(id) {
		writeWebScriptError(w, http.StatusNotFound, "Unable to find workflow definition with id %s", id)
		return
	}
	p.lock.Lock()
	defer p.lock.Unlock()

	p.writeLegacyInstances(w, r)
}

// legacyProcess finds the process addressed by an "activiti$<id>" route parameter.
func (p *Platform) legacyProcess(r *http.Request) *process {
	id, ok := localID(pathParam(r, "id"))
	if !ok {
		return nil
	}
	return p.processes[id]
}

func (p *Platform) handleLegacyGetInstance(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	pr := p.legacyProcess(r)
	if pr == nil {
		writeWebScriptError(w, http.StatusNotFound, "Unable to find workflow instance with id %s", pathParam(r, "id"))
		return
	}
	if !p.canSeeProcess(currentUser(r), pr) {
		writeWebScriptError(w, http.StatusForbidden, "Access denied to workflow instance %s", pr.legacyID())
		return
	}
	includeTasks := r.URL.Query().Get("includeTasks") == "true"
	writeJSON(w, http.StatusOK, jsonObject{"data": p.legacyInstanceJSON(pr, includeTasks)})
}

// handleLegacyDeleteInstance cancels a running workflow. With forced=true the workflow is
// removed entirely, whatever its state.
func (p *Platform) handleLegacyDeleteInstance(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	forced := r.URL.Query().Get("forced") == "true"
	pr := p.legacyProcess(r)
	if pr == nil || (!pr.active() && !forced) {
		writeWebScriptError(w, http.StatusNotFound, "Unable to find workflow instance with id %s", pathParam(r, "id"))
		return
	}
	user := currentUser(r)
	if pr.initiator != user && !p.isAdmin(user) {
		writeWebScriptError(w, http.StatusForbidden, "Only the initiator can cancel workflow %s", pr.legacyID())
		return
	}
	if forced {
		p.removeProcess(pr)
	} else {
		p.cancelProcess(pr, deleteReasonCancelled)
	}
	writeJSON(w, http.StatusOK, jsonObject{})
}

// taskFilter applies the authority, state, priority and exclude parameters of the task
// listings. defaultAuthority and defaultState apply when the parameter is absent.
func taskFilter(r *http.Request, defaultAuthority, defaultState string) func(*task) bool {
	q := r.URL.Query()
	authority := defaultAuthority
	if q.Has("authority") {
		authority = q.Get("authority")
	}
	state := defaultState
	if q.Has("state") {
		state = strings.ToUpper(q.Get("state"))
	}
	priority := -1
	if s := q.Get("priority"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			priority = n
		}
	}
	exclude := q.Get("exclude")
	return func(t *task) bool {
		switch {
		case authority != "" && t.assignee != authority:
			return false
		case state != "" && legacyTaskState(t) != state:
			return false
		case priority >= 0 && t.process.priority != priority:
			return false
		case excluded(exclude, t.taskType):
			return false
		}
		return true
	}
}

func (p *Platform) writeLegacyTasks(w http.ResponseWriter, r *http.Request, include func(*task) bool) {
	user := currentUser(r)
	found := p.sortedTasks(include)
	items := make([]jsonObject, 0, len(found))
	for _, t := range found {
		items = append(items, p.legacyTaskJSON(t, user, true))
	}
	writeLegacyPage(w, r, items)
}

func (p *Platform) handleLegacyListTasks(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.writeLegacyTasks(w, r, taskFilter(r, currentUser(r), servicedef.TaskStateInProgress))
}

// handleLegacyInstanceTasks lists the tasks of one workflow. An unknown workflow is reported as
// a server error, the way the workflow service surfaces it.
func (p *Platform) handleLegacyInstanceTasks(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	pr := p.legacyProcess(r)
	if pr == nil {
		writeWebScriptError(w, http.StatusInternalServerError, "Workflow instance %s does not exist", pathParam(r, "id"))
		return
	}
	matches := taskFilter(r, "", "")
	p.writeLegacyTasks(w, r, func(t *task) bool { return t.process == pr && matches(t) })
}

func (p *Platform) legacyTask(r *http.Request) *task {
	id, ok := localID(pathParam(r, "id"))
	if !ok {
		return nil
	}
	return p.tasks[id]
}

func (p *Platform) handleLegacyGetTask(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	t := p.legacyTask(r)
	if t == nil {
		writeWebScriptError(w, http.StatusNotFound, "Unable to find task instance with id %s", pathParam(r, "id"))
		return
	}
	user := currentUser(r)
	if !p.canSeeProcess(user, t.process) {
		writeWebScriptError(w, http.StatusForbidden, "Access denied to task instance %s", t.legacyID())
		return
	}
	writeJSON(w, http.StatusOK, jsonObject{"data": p.legacyTaskJSON(t, user, true)})
}

// handleLegacyUpdateTask merges properties into a running task. Only the owner and the
// workflow initiator may do so; anyone else, or any update to a finished task, gets 401.
func (p *Platform) handleLegacyUpdateTask(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	t := p.legacyTask(r)
	if t == nil {
		writeWebScriptError(w, http.StatusNotFound, "Unable to find task instance with id %s", pathParam(r, "id"))
		return
	}
	user := currentUser(r)
	if t.completed() || (t.assignee != user && t.process.initiator != user) {
		writeWebScriptError(w, http.StatusUnauthorized, "Failed to update task %s: access denied", t.legacyID())
		return
	}
	var properties jsonObject
	if err := readJSON(r, &properties); err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	for k, v := range properties {
		if k == "bpm_assignee" {
			continue
		}
		t.properties[k] = v
		if k == "bpm_description" {
			t.description, _ = v.(string)
		}
	}
	writeJSON(w, http.StatusOK, jsonObject{"data": p.legacyTaskJSON(t, user, true)})
}

func (p *Platform) handleLegacyNodeInstances(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	user := currentUser(r)
	n := p.nodeFromStorePath(r)
	if n == nil || !p.canReadNode(user, n) {
		writeWebScriptError(w, http.StatusNotFound, "Unable to find node %s", pathParam(r, "id"))
		return
	}
	found := p.sortedProcesses(func(pr *process) bool {
		return pr.active() && p.processItem(pr, n.id) != nil
	})
	data := make([]jsonObject, 0, len(found))
	for _, pr := range found {
		data = append(data, p.legacyInstanceJSON(pr, false))
	}
	writeJSON(w, http.StatusOK, jsonObject{"data": data})
}
