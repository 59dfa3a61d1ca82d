package mockplatform

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/contentrepo/webscript-contract-tests/servicedef"
)

// The only deployed process is the ad hoc workflow: a start task completed by the initiator,
// a task for the assignee, and a verification task that goes back to the initiator.
const (
	adhocDefinitionID = "activitiAdhoc:1:4"
	adhocDeploymentID = "1"

	startActivityID  = "start"
	adhocActivityID  = "adhocTask"
	verifyActivityID = "verifyTaskDone"
	endActivityID    = "theEnd"

	deleteReasonDeleted   = "deleted"
	deleteReasonCancelled = "cancelled"

	defaultPriority = 2
)

type processDefinition struct {
	id           string
	key          string
	name         string
	title        string
	description  string
	version      int
	deploymentID string
	category     string
	startTask    string
	taskTypes    []string
}

type deployment struct {
	id         string
	name       string
	category   string
	deployedAt time.Time
}

var adhocDefinition = processDefinition{
	id:           adhocDefinitionID,
	key:          servicedef.AdhocProcessKey,
	name:         "Adhoc Activiti Process",
	title:        "Adhoc Activiti Process",
	description:  "Assign arbitrary task to colleague using Activiti workflow engine",
	version:      1,
	deploymentID: adhocDeploymentID,
	category:     "http://alfresco.org",
	startTask:    servicedef.AdhocStartTaskType,
	taskTypes:    []string{servicedef.AdhocTaskType, servicedef.AdhocCompletedTaskType},
}

var adhocDeployment = deployment{
	id:         adhocDeploymentID,
	name:       "adhoc.bpmn20.xml",
	category:   "http://alfresco.org",
	deployedAt: time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
}

var taskTitles = map[string]string{
	servicedef.AdhocStartTaskType:     "Start Adhoc Task",
	servicedef.AdhocTaskType:          "Adhoc Task",
	servicedef.AdhocCompletedTaskType: "Adhoc Task Completed",
}

type variable struct {
	name  string
	vtype string
	value interface{}
}

type process struct {
	id           string
	businessKey  string
	initiator    string
	started      time.Time
	ended        *time.Time
	deleteReason string
	endActivity  string
	priority     int
	dueDate      *time.Time
	description  string
	packageRef   string
	variables    map[string]variable
	items        []string
	tasks        []*task
}

func (pr *process) active() bool {
	return pr.ended == nil
}

// duration is how long a finished process ran, or -1 while it is running.
func (pr *process) duration() time.Duration {
	if pr.ended == nil {
		return -1
	}
	return pr.ended.Sub(pr.started)
}

func (pr *process) legacyID() string {
	return servicedef.WorkflowEnginePrefix + pr.id
}

type task struct {
	id          string
	process     *process
	taskType    string
	activityID  string
	assignee    string
	started     time.Time
	ended       *time.Time
	properties  map[string]interface{}
	description string
}

func (t *task) completed() bool {
	return t.ended != nil
}

func (t *task) legacyID() string {
	return servicedef.WorkflowEnginePrefix + t.id
}

// activity is one step of a process run: the start event, a user task, or the end event.
type activity struct {
	id           string
	definitionID string
	name         string
	kind         string
	started      time.Time
	ended        *time.Time
}

// activities lists the steps the process has reached, in order. The start task is part of the
// start event rather than an activity of its own.
func (pr *process) activities() []activity {
	started := pr.started
	ret := []activity{{
		id:           pr.id + "-" + startActivityID,
		definitionID: startActivityID,
		kind:         "startEvent",
		started:      started,
		ended:        &started,
	}}
	for _, t := range pr.tasks {
		if t.activityID == startActivityID {
			continue
		}
		ret = append(ret, activity{
			id:           pr.id + "-" + t.id,
			definitionID: t.activityID,
			name:         taskTitles[t.taskType],
			kind:         "userTask",
			started:      t.started,
			ended:        t.ended,
		})
	}
	if pr.ended != nil && pr.endActivity != "" {
		ret = append(ret, activity{
			id:           pr.id + "-" + pr.endActivity,
			definitionID: pr.endActivity,
			kind:         "endEvent",
			started:      *pr.ended,
			ended:        pr.ended,
		})
	}
	return ret
}

// involves returns true if the user started the process or has been assigned one of its tasks.
func (pr *process) involves(userName string) bool {
	if pr.initiator == userName {
		return true
	}
	for _, t := range pr.tasks {
		if t.assignee == userName {
			return true
		}
	}
	return false
}

func (p *Platform) canSeeProcess(userName string, pr *process) bool {
	return p.isAdmin(userName) || pr.involves(userName)
}

// startProcessParams is the validated form of a start request.
type startProcessParams struct {
	businessKey string
	assignee    string
	priority    int
	dueDate     *time.Time
	description string
	variables   map[string]variable
	items       []string
}

func (p *Platform) startProcess(initiator string, params startProcessParams) *process {
	now := time.Now()
	pr := &process{
		id:          strconv.Itoa(p.nextID()),
		businessKey: params.businessKey,
		initiator:   initiator,
		started:     now,
		priority:    params.priority,
		dueDate:     params.dueDate,
		description: params.description,
		packageRef:  servicedef.NodeRefForID(fmt.Sprintf("package-%d", p.nextID())),
		variables:   params.variables,
		items:       params.items,
	}
	pr.variables["initiator"] = variable{name: "initiator", vtype: "d:text", value: initiator}
	pr.variables["bpm_assignee"] = variable{name: "bpm_assignee", vtype: "d:text", value: params.assignee}
	pr.variables["bpm_priority"] = variable{name: "bpm_priority", vtype: "d:int", value: params.priority}

	start := p.addTask(pr, servicedef.AdhocStartTaskType, startActivityID, initiator)
	start.properties["bpm_assignee"] = params.assignee
	start.ended = &now
	p.addTask(pr, servicedef.AdhocTaskType, adhocActivityID, params.assignee)
	p.processes[pr.id] = pr
	p.log.Info().Str("process", pr.id).Str("initiator", initiator).Msg("started process")
	return pr
}

func (p *Platform) addTask(pr *process, taskType, activityID, assignee string) *task {
	t := &task{
		id:          strconv.Itoa(p.nextID()),
		process:     pr,
		taskType:    taskType,
		activityID:  activityID,
		assignee:    assignee,
		started:     time.Now(),
		description: pr.description,
		properties: map[string]interface{}{
			"bpm_priority":    pr.priority,
			"bpm_description": pr.description,
			"bpm_package":     pr.packageRef,
			"bpm_status":      "Not Yet Started",
			"bpm_comment":     nil,
		},
	}
	if pr.dueDate != nil {
		t.properties["bpm_dueDate"] = formatISO(*pr.dueDate)
	} else {
		t.properties["bpm_dueDate"] = nil
	}
	pr.tasks = append(pr.tasks, t)
	p.tasks[t.id] = t
	return t
}

// completeTask ends a task and moves the process on. The process itself ends asynchronously,
// AsyncDelay after its last task is completed.
func (p *Platform) completeTask(t *task) {
	now := time.Now()
	t.ended = &now
	t.properties["bpm_status"] = "Completed"
	pr := t.process
	switch t.taskType {
	case servicedef.AdhocTaskType:
		p.addTask(pr, servicedef.AdhocCompletedTaskType, verifyActivityID, pr.initiator)
	case servicedef.AdhocCompletedTaskType:
		time.AfterFunc(p.opts.AsyncDelay, func() {
			p.lock.Lock()
			defer p.lock.Unlock()
			if pr.active() {
				ended := time.Now()
				pr.ended = &ended
				pr.endActivity = endActivityID
				p.log.Info().Str("process", pr.id).Msg("process completed")
			}
		})
	}
}

// cancelProcess ends a process early. Its unfinished tasks are ended with it.
func (p *Platform) cancelProcess(pr *process, reason string) {
	now := time.Now()
	pr.ended = &now
	pr.deleteReason = reason
	for _, t := range pr.tasks {
		if !t.completed() {
			t.ended = &now
		}
	}
	p.log.Info().Str("process", pr.id).Str("reason", reason).Msg("process cancelled")
}

// removeProcess forgets a process entirely.
func (p *Platform) removeProcess(pr *process) {
	for _, t := range pr.tasks {
		delete(p.tasks, t.id)
	}
	delete(p.processes, pr.id)
}

func (p *Platform) sortedProcesses(include func(*process) bool) []*process {
	var ret []*process
	for _, pr := range p.processes {
		if include(pr) {
			ret = append(ret, pr)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return numericLess(ret[i].id, ret[j].id) })
	return ret
}

func (p *Platform) sortedTasks(include func(*task) bool) []*task {
	var ret []*task
	for _, t := range p.tasks {
		if include(t) {
			ret = append(ret, t)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return numericLess(ret[i].id, ret[j].id) })
	return ret
}

func numericLess(a, b string) bool {
	x, _ := strconv.Atoi(a)
	y, _ := strconv.Atoi(b)
	return x < y
}

// inferVariableType picks a type for a variable whose type was not given.
func inferVariableType(value interface{}) string {
	switch v := value.(type) {
	case bool:
		return "d:boolean"
	case float64:
		if v == float64(int64(v)) {
			return "d:int"
		}
		return "d:double"
	default:
		return "d:text"
	}
}

// checkVariable validates a value against its declared type, and returns the value in the
// form it is stored.
func checkVariable(vtype string, value interface{}) (interface{}, error) {
	switch vtype {
	case "d:text":
		if s, ok := value.(string); ok {
			return s, nil
		}
	case "d:int", "d:long":
		if f, ok := value.(float64); ok && f == float64(int64(f)) {
			return int64(f), nil
		}
	case "d:double", "d:float":
		if f, ok := value.(float64); ok {
			return f, nil
		}
	case "d:boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case "d:date", "d:datetime":
		if s, ok := value.(string); ok {
			if _, err := parseDate(s); err == nil {
				return s, nil
			}
		}
	default:
		return nil, fmt.Errorf("unsupported variable type %q", vtype)
	}
	return nil, fmt.Errorf("value %v is not valid for type %s", value, vtype)
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{publicDateFormat, iso8601Format, time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
