package mockplatform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/go-chi/chi/v5"
)

func (p *Platform) publicWorkflowRoutes(r chi.Router) {
	r.Get("/process-definitions", p.handleListProcessDefinitions)
	r.Get("/process-definitions/{id}", p.handleGetProcessDefinition)
	r.Get("/deployments", p.handleListDeployments)
	r.Get("/deployments/{id}", p.handleGetDeployment)

	r.Get("/processes", p.handleListProcesses)
	r.Post("/processes", p.handleStartProcess)
	r.Get("/processes/{id}", p.handleGetProcess)
	r.Delete("/processes/{id}", p.handleDeleteProcess)
	r.Get("/processes/{id}/variables", p.handleListVariables)
	r.Post("/processes/{id}/variables", p.handleCreateVariables)
	r.Put("/processes/{id}/variables/{name}", p.handleUpdateVariable)
	r.Delete("/processes/{id}/variables/{name}", p.handleDeleteVariable)
	r.Get("/processes/{id}/items", p.handleListItems)
	r.Post("/processes/{id}/items", p.handleAddItem)
	r.Get("/processes/{id}/items/{itemId}", p.handleGetItem)
	r.Delete("/processes/{id}/items/{itemId}", p.handleDeleteItem)
	r.Get("/processes/{id}/tasks", p.handleListProcessTasks)
	r.Get("/processes/{id}/activities", p.handleListActivities)

	r.Get("/tasks", p.handleListTasks)
	r.Get("/tasks/{id}", p.handleGetTask)
	r.Put("/tasks/{id}", p.handleUpdateTask)
}

func processDefinitionJSON(d processDefinition) jsonObject {
	return jsonObject{
		"id":                     d.id,
		"key":                    d.key,
		"version":                d.version,
		"name":                   d.name,
		"deploymentId":           d.deploymentID,
		"title":                  d.title,
		"description":            d.description,
		"category":               d.category,
		"startFormResourceKey":   d.startTask,
		"graphicNotationDefined": true,
	}
}

func deploymentJSON(d deployment) jsonObject {
	return jsonObject{
		"id":         d.id,
		"name":       d.name,
		"category":   d.category,
		"deployedAt": formatPublic(d.deployedAt),
	}
}

func (p *Platform) publicProcessJSON(pr *process, withVariables bool) jsonObject {
	ret := jsonObject{
		"id":                   pr.id,
		"processDefinitionId":  adhocDefinition.id,
		"processDefinitionKey": adhocDefinition.key,
		"startedAt":            formatPublic(pr.started),
		"startActivityId":      startActivityID,
		"startUserId":          pr.initiator,
		"completed":            !pr.active(),
	}
	if pr.businessKey != "" {
		ret["businessKey"] = pr.businessKey
	}
	if pr.ended != nil {
		ret["endedAt"] = formatPublic(*pr.ended)
		ret["durationInMs"] = pr.ended.Sub(pr.started).Milliseconds()
		if pr.deleteReason != "" {
			ret["deleteReason"] = pr.deleteReason
		} else {
			ret["endActivityId"] = pr.endActivity
		}
	}
	if withVariables {
		vars := jsonObject{}
		for name, v := range pr.variables {
			vars[name] = v.value
		}
		ret["variables"] = vars
		ret["item"] = p.itemRefs(pr)
	}
	return ret
}

func (p *Platform) itemRefs(pr *process) []string {
	refs := make([]string, 0, len(pr.items))
	for _, id := range pr.items {
		refs = append(refs, servicedef.NodeRefForID(id))
	}
	return refs
}

func (p *Platform) publicTaskJSON(t *task) jsonObject {
	state := servicedef.PublicTaskStateClaimed
	if t.completed() {
		state = servicedef.PublicTaskStateCompleted
	}
	ret := jsonObject{
		"id":                   t.id,
		"processId":            t.process.id,
		"processDefinitionId":  adhocDefinition.id,
		"activityDefinitionId": t.activityID,
		"name":                 taskTitles[t.taskType],
		"description":          t.description,
		"startedAt":            formatPublic(t.started),
		"priority":             t.process.priority,
		"assignee":             t.assignee,
		"formResourceKey":      t.taskType,
		"state":                state,
	}
	if t.ended != nil {
		ret["endedAt"] = formatPublic(*t.ended)
		ret["durationInMs"] = t.ended.Sub(t.started).Milliseconds()
	}
	if t.process.dueDate != nil {
		ret["dueAt"] = formatPublic(*t.process.dueDate)
	}
	return ret
}

func variableJSON(v variable) jsonObject {
	return jsonObject{"name": v.name, "type": v.vtype, "value": v.value}
}

func (p *Platform) itemJSON(n *node) jsonObject {
	created := formatPublic(n.created)
	return jsonObject{
		"id":         n.id,
		"name":       n.name,
		"title":      n.name,
		"createdAt":  created,
		"createdBy":  n.creator,
		"modifiedAt": created,
		"modifiedBy": n.creator,
		"mimeType":   "text/plain",
		"size":       0,
	}
}

func (p *Platform) handleListProcessDefinitions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, publicList([]jsonObject{processDefinitionJSON(adhocDefinition)}, pageWindowFromQuery(r)))
}

func (p *Platform) handleGetProcessDefinition(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id != adhocDefinition.id {
		writePublicError(w, http.StatusNotFound, "The entity with id: %s was not found", id)
		return
	}
	writeJSON(w, http.StatusOK, jsonObject{"entry": processDefinitionJSON(adhocDefinition)})
}

func (p *Platform) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	if !p.isAdmin(currentUser(r)) {
		writePublicError(w, http.StatusForbidden, "Permission was denied")
		return
	}
	writeJSON(w, http.StatusOK, publicList([]jsonObject{deploymentJSON(adhocDeployment)}, pageWindowFromQuery(r)))
}

func (p *Platform) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	if !p.isAdmin(currentUser(r)) {
		writePublicError(w, http.StatusForbidden, "Permission was denied")
		return
	}
	id := pathParam(r, "id")
	if id != adhocDeployment.id {
		writePublicError(w, http.StatusNotFound, "The entity with id: %s was not found", id)
		return
	}
	writeJSON(w, http.StatusOK, jsonObject{"entry": deploymentJSON(adhocDeployment)})
}

// matchesStatus applies the status term of a where clause: active (the default), completed,
// or any.
func matchesStatus(status string, active bool) bool {
	switch status {
	case "any":
		return true
	case "completed":
		return !active
	default:
		return active
	}
}

// processOrderings are the properties a process list can be sorted on.
var processOrderings = map[string]func(a, b *process) bool{
	"businessKey": func(a, b *process) bool { return a.businessKey < b.businessKey },
	"startedAt":   func(a, b *process) bool { return a.started.Before(b.started) },
	"endedAt": func(a, b *process) bool {
		if a.ended == nil || b.ended == nil {
			return a.ended == nil && b.ended != nil
		}
		return a.ended.Before(*b.ended)
	},
	"durationInMillis": func(a, b *process) bool { return a.duration() < b.duration() },
}

// parseOrderBy reads an orderBy parameter of the form "property [ASC|DESC]". Only one property
// is allowed. A nil result means the default order.
func parseOrderBy(r *http.Request) (func(a, b *process) bool, error) {
	clause := strings.TrimSpace(r.URL.Query().Get("orderBy"))
	if clause == "" {
		return nil, nil
	}
	if strings.Contains(clause, ",") {
		return nil, fmt.Errorf("only one orderBy property is supported: %s", clause)
	}
	fields := strings.Fields(clause)
	less, ok := processOrderings[fields[0]]
	if !ok {
		return nil, fmt.Errorf("cannot sort on %s", fields[0])
	}
	if len(fields) == 1 {
		return less, nil
	}
	if len(fields) > 2 {
		return nil, fmt.Errorf("invalid orderBy clause: %s", clause)
	}
	switch strings.ToUpper(fields[1]) {
	case "ASC":
		return less, nil
	case "DESC":
		return func(a, b *process) bool { return less(b, a) }, nil
	default:
		return nil, fmt.Errorf("invalid sort direction %s", fields[1])
	}
}

func (p *Platform) handleListProcesses(w http.ResponseWriter, r *http.Request) {
	where, err := parseWhere(r)
	if err != nil {
		writePublicError(w, http.StatusBadRequest, "%s", err)
		return
	}
	orderBy, err := parseOrderBy(r)
	if err != nil {
		writePublicError(w, http.StatusBadRequest, "%s", err)
		return
	}
	p.lock.Lock()
	defer p.lock.Unlock()

	user := currentUser(r)
	found := p.sortedProcesses(func(pr *process) bool {
		if !p.canSeeProcess(user, pr) || !matchesStatus(where["status"], pr.active()) {
			return false
		}
		if k := where["processDefinitionKey"]; k != "" && k != adhocDefinition.key {
			return false
		}
		if id := where["processDefinitionId"]; id != "" && id != adhocDefinition.id {
			return false
		}
		if bk := where["businessKey"]; bk != "" && bk != pr.businessKey {
			return false
		}
		return true
	})
	if orderBy != nil {
		sort.SliceStable(found, func(i, j int) bool { return orderBy(found[i], found[j]) })
	}
	entries := make([]jsonObject, 0, len(found))
	for _, pr := range found {
		entries = append(entries, p.publicProcessJSON(pr, false))
	}
	writeJSON(w, http.StatusOK, publicList(entries, pageWindowFromQuery(r)))
}

// readStartParams validates a start request. The adhoc workflow needs an existing assignee.
func (p *Platform) readStartParams(r *http.Request) (startProcessParams, string) {
	var body servicedef.StartProcessParams
	if err := readJSON(r, &body); err != nil {
		return startProcessParams{}, "Invalid request body: " + err.Error()
	}
	switch {
	case body.ProcessDefinitionID == "" && body.ProcessDefinitionKey == "":
		return startProcessParams{}, "Either processDefinitionId or processDefinitionKey is required"
	case body.ProcessDefinitionID != "" && body.ProcessDefinitionID != adhocDefinition.id:
		return startProcessParams{}, "No process definition found for id " + body.ProcessDefinitionID
	case body.ProcessDefinitionKey != "" && body.ProcessDefinitionKey != adhocDefinition.key:
		return startProcessParams{}, "No process definition found for key " + body.ProcessDefinitionKey
	}

	params := startProcessParams{
		businessKey: body.BusinessKey,
		priority:    defaultPriority,
		variables:   make(map[string]variable),
	}
	for name, value := range body.Variables {
		switch name {
		case "bpm_assignee":
			params.assignee, _ = value.(string)
		case "bpm_priority":
			f, ok := value.(float64)
			if !ok {
				return startProcessParams{}, "bpm_priority must be a number"
			}
			params.priority = int(f)
		case "bpm_dueDate":
			s, _ := value.(string)
			due, err := parseDate(s)
			if err != nil {
				return startProcessParams{}, err.Error()
			}
			params.dueDate = &due
			params.variables[name] = variable{name: name, vtype: "d:date", value: s}
		case "bpm_workflowDescription":
			params.description, _ = value.(string)
			params.variables[name] = variable{name: name, vtype: "d:text", value: params.description}
		default:
			params.variables[name] = variable{name: name, vtype: inferVariableType(value), value: value}
		}
	}
	if params.assignee == "" || p.people[params.assignee] == nil {
		return startProcessParams{}, "bpm_assignee must name an existing user"
	}
	user := currentUser(r)
	for _, ref := range body.Items {
		n := p.nodes[servicedef.IDFromNodeRef(ref)]
		if n == nil || !p.canReadNode(user, n) {
			return startProcessParams{}, "Item " + ref + " was not found"
		}
		params.items = append(params.items, n.id)
	}
	return params, ""
}

func (p *Platform) handleStartProcess(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	params, problem := p.readStartParams(r)
	if problem != "" {
		writePublicError(w, http.StatusBadRequest, "%s", problem)
		return
	}
	pr := p.startProcess(currentUser(r), params)
	writeJSON(w, http.StatusCreated, jsonObject{"entry": p.publicProcessJSON(pr, true)})
}

// visibleProcess looks up the process addressed by the route, and writes a 404 or 403 if it is
// missing or the current user is not involved in it.
func (p *Platform) visibleProcess(w http.ResponseWriter, r *http.Request) *process {
	id := pathParam(r, "id")
	pr := p.processes[id]
	if pr == nil {
		writePublicError(w, http.StatusNotFound, "The entity with id: %s was not found", id)
		return nil
	}
	if !p.canSeeProcess(currentUser(r), pr) {
		writePublicError(w, http.StatusForbidden, "Permission was denied")
		return nil
	}
	return pr
}

// activeProcess is visibleProcess for operations that only apply to running processes.
func (p *Platform) activeProcess(w http.ResponseWriter, r *http.Request) *process {
	pr := p.visibleProcess(w, r)
	if pr != nil && !pr.active() {
		writePublicError(w, http.StatusNotFound, "The entity with id: %s was not found", pr.id)
		return nil
	}
	return pr
}

func (p *Platform) handleGetProcess(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if pr := p.visibleProcess(w, r); pr != nil {
		writeJSON(w, http.StatusOK, jsonObject{"entry": p.publicProcessJSON(pr, true)})
	}
}

func (p *Platform) handleDeleteProcess(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	pr := p.activeProcess(w, r)
	if pr == nil {
		return
	}
	user := currentUser(r)
	if pr.initiator != user && !p.isAdmin(user) {
		writePublicError(w, http.StatusForbidden, "Only the initiator can delete process %s", pr.id)
		return
	}
	p.cancelProcess(pr, deleteReasonDeleted)
	w.WriteHeader(http.StatusNoContent)
}

func (p *Platform) handleListVariables(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	pr := p.visibleProcess(w, r)
	if pr == nil {
		return
	}
	names := make([]string, 0, len(pr.variables))
	for name := range pr.variables {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]jsonObject, 0, len(names))
	for _, name := range names {
		entries = append(entries, variableJSON(pr.variables[name]))
	}
	writeJSON(w, http.StatusOK, publicList(entries, pageWindowFromQuery(r)))
}

func checkedVariable(params servicedef.VariableParams) (variable, string) {
	if params.Name == "" {
		return variable{}, "Variable name is required"
	}
	vtype := params.Type
	if vtype == "" {
		vtype = inferVariableType(params.Value)
	}
	value, err := checkVariable(vtype, params.Value)
	if err != nil {
		return variable{}, err.Error()
	}
	return variable{name: params.Name, vtype: vtype, value: value}, ""
}

// handleCreateVariables accepts either a single variable or an array of them, and answers in
// the same form.
func (p *Platform) handleCreateVariables(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	pr := p.activeProcess(w, r)
	if pr == nil {
		return
	}
	var raw json.RawMessage
	if err := readJSON(r, &raw); err != nil {
		writePublicError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	isArray := bytes.HasPrefix(bytes.TrimSpace(raw), []byte("["))
	var list []servicedef.VariableParams
	if isArray {
		if err := json.Unmarshal(raw, &list); err != nil {
			writePublicError(w, http.StatusBadRequest, "Invalid request body: %s", err)
			return
		}
	} else {
		var single servicedef.VariableParams
		if err := json.Unmarshal(raw, &single); err != nil {
			writePublicError(w, http.StatusBadRequest, "Invalid request body: %s", err)
			return
		}
		list = append(list, single)
	}

	checked := make([]variable, 0, len(list))
	for _, params := range list {
		v, problem := checkedVariable(params)
		if problem != "" {
			writePublicError(w, http.StatusBadRequest, "%s", problem)
			return
		}
		checked = append(checked, v)
	}
	entries := make([]jsonObject, 0, len(checked))
	for _, v := range checked {
		pr.variables[v.name] = v
		entries = append(entries, variableJSON(v))
	}
	if isArray {
		writeJSON(w, http.StatusCreated, publicList(entries, pageWindow{maxItems: defaultMaxItems}))
	} else {
		writeJSON(w, http.StatusCreated, jsonObject{"entry": entries[0]})
	}
}

func (p *Platform) handleUpdateVariable(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	pr := p.activeProcess(w, r)
	if pr == nil {
		return
	}
	var params servicedef.VariableParams
	if err := readJSON(r, &params); err != nil {
		writePublicError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	name := pathParam(r, "name")
	if params.Name != "" && params.Name != name {
		writePublicError(w, http.StatusBadRequest, "Variable name %q does not match %q", params.Name, name)
		return
	}
	params.Name = name
	v, problem := checkedVariable(params)
	if problem != "" {
		writePublicError(w, http.StatusBadRequest, "%s", problem)
		return
	}
	pr.variables[name] = v
	writeJSON(w, http.StatusOK, jsonObject{"entry": variableJSON(v)})
}

func (p *Platform) handleDeleteVariable(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	pr := p.activeProcess(w, r)
	if pr == nil {
		return
	}
	name := pathParam(r, "name")
	if _, ok := pr.variables[name]; !ok {
		writePublicError(w, http.StatusNotFound, "The entity with id: %s was not found", name)
		return
	}
	delete(pr.variables, name)
	w.WriteHeader(http.StatusNoContent)
}

func (p *Platform) handleListItems(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	pr := p.visibleProcess(w, r)
	if pr == nil {
		return
	}
	entries := make([]jsonObject, 0, len(pr.items))
	for _, id := range pr.items {
		if n := p.nodes[id]; n != nil {
			entries = append(entries, p.itemJSON(n))
		}
	}
	writeJSON(w, http.StatusOK, publicList(entries, pageWindowFromQuery(r)))
}

func (p *Platform) processItem(pr *process, id string) *node {
	for _, itemID := range pr.items {
		if itemID == id {
			return p.nodes[id]
		}
	}
	return nil
}

func (p *Platform) handleAddItem(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	pr := p.activeProcess(w, r)
	if pr == nil {
		return
	}
	var params servicedef.ItemParams
	if err := readJSON(r, &params); err != nil || params.ID == "" {
		writePublicError(w, http.StatusBadRequest, "An item id is required")
		return
	}
	id := servicedef.IDFromNodeRef(params.ID)
	n := p.nodes[id]
	if n == nil || !p.canReadNode(currentUser(r), n) {
		writePublicError(w, http.StatusNotFound, "The entity with id: %s was not found", params.ID)
		return
	}
	if p.processItem(pr, id) != nil {
		writePublicError(w, http.StatusConflict, "Item %s is already part of process %s", id, pr.id)
		return
	}
	pr.items = append(pr.items, id)
	writeJSON(w, http.StatusCreated, jsonObject{"entry": p.itemJSON(n)})
}

func (p *Platform) handleGetItem(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	pr := p.visibleProcess(w, r)
	if pr == nil {
		return
	}
	itemID := pathParam(r, "itemId")
	n := p.processItem(pr, itemID)
	if n == nil {
		writePublicError(w, http.StatusNotFound, "The entity with id: %s was not found", itemID)
		return
	}
	writeJSON(w, http.StatusOK, jsonObject{"entry": p.itemJSON(n)})
}

func (p *Platform) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	pr := p.activeProcess(w, r)
	if pr == nil {
		return
	}
	itemID := pathParam(r, "itemId")
	for i, id := range pr.items {
		if id == itemID {
			pr.items = append(pr.items[:i], pr.items[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writePublicError(w, http.StatusNotFound, "The entity with id: %s was not found", itemID)
}

func (p *Platform) writeTaskList(w http.ResponseWriter, r *http.Request, include func(*task) bool) {
	where, err := parseWhere(r)
	if err != nil {
		writePublicError(w, http.StatusBadRequest, "%s", err)
		return
	}
	found := p.sortedTasks(func(t *task) bool {
		if !matchesStatus(where["status"], !t.completed()) || !include(t) {
			return false
		}
		if a := where["assignee"]; a != "" && a != t.assignee {
			return false
		}
		if pid := where["processId"]; pid != "" && pid != t.process.id {
			return false
		}
		return true
	})
	entries := make([]jsonObject, 0, len(found))
	for _, t := range found {
		entries = append(entries, p.publicTaskJSON(t))
	}
	writeJSON(w, http.StatusOK, publicList(entries, pageWindowFromQuery(r)))
}

func (p *Platform) handleListProcessTasks(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	pr := p.visibleProcess(w, r)
	if pr == nil {
		return
	}
	p.writeTaskList(w, r, func(t *task) bool { return t.process == pr })
}

func activityJSON(a activity) jsonObject {
	ret := jsonObject{
		"id":                     a.id,
		"activityDefinitionId":   a.definitionID,
		"activityDefinitionType": a.kind,
		"startedAt":              formatPublic(a.started),
	}
	if a.name != "" {
		ret["activityDefinitionName"] = a.name
	}
	if a.ended != nil {
		ret["endedAt"] = formatPublic(*a.ended)
		ret["durationInMs"] = a.ended.Sub(a.started).Milliseconds()
	}
	return ret
}

func (p *Platform) handleListActivities(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", "any", "active", "completed":
	default:
		writePublicError(w, http.StatusBadRequest, "Invalid status parameter: %s", status)
		return
	}
	p.lock.Lock()
	defer p.lock.Unlock()

	pr := p.visibleProcess(w, r)
	if pr == nil {
		return
	}
	if status == "" {
		status = "any"
	}
	entries := []jsonObject{}
	for _, a := range pr.activities() {
		if matchesStatus(status, a.ended == nil) {
			entries = append(entries, activityJSON(a))
		}
	}
	writeJSON(w, http.StatusOK, publicList(entries, pageWindowFromQuery(r)))
}

func (p *Platform) handleListTasks(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	user := currentUser(r)
	admin := p.isAdmin(user)
	p.writeTaskList(w, r, func(t *task) bool { return admin || t.assignee == user })
}

// visibleTask looks up the task addressed by the route. The assignee and the process
// initiator may see a task.
func (p *Platform) visibleTask(w http.ResponseWriter, r *http.Request) *task {
	id := pathParam(r, "id")
	t := p.tasks[id]
	if t == nil {
		writePublicError(w, http.StatusNotFound, "The entity with id: %s was not found", id)
		return nil
	}
	user := currentUser(r)
	if t.assignee != user && t.process.initiator != user && !p.isAdmin(user) {
		writePublicError(w, http.StatusForbidden, "Permission was denied")
		return nil
	}
	return t
}

func (p *Platform) handleGetTask(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if t := p.visibleTask(w, r); t != nil {
		writeJSON(w, http.StatusOK, jsonObject{"entry": p.publicTaskJSON(t)})
	}
}

// handleUpdateTask supports the one transition the suites use: completing a task with
// ?select=state and {"state": "completed"}.
func (p *Platform) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	t := p.visibleTask(w, r)
	if t == nil {
		return
	}
	if !strings.Contains(r.URL.Query().Get("select"), "state") {
		writePublicError(w, http.StatusBadRequest, "The select parameter must include state")
		return
	}
	var params servicedef.UpdateTaskParams
	if err := readJSON(r, &params); err != nil {
		writePublicError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	if params.State != servicedef.PublicTaskStateCompleted {
		writePublicError(w, http.StatusBadRequest, "Unsupported task state %q", params.State)
		return
	}
	if t.completed() {
		writePublicError(w, http.StatusNotFound, "The entity with id: %s was not found", t.id)
		return
	}
	user := currentUser(r)
	if t.assignee != user && !p.isAdmin(user) {
		writePublicError(w, http.StatusForbidden, "Only the assignee can complete task %s", t.id)
		return
	}
	p.completeTask(t)
	writeJSON(w, http.StatusOK, jsonObject{"entry": p.publicTaskJSON(t)})
}
