package paging

import (
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Task is a workflow task as returned by the public workflow API.
type Task struct {
	ID                   string
	ProcessID            string
	ProcessDefinitionID  string
	ActivityDefinitionID string
	Name                 string
	Description          string
	Assignee             string
	Owner                string
	State                string
	Priority             int
	StartedAt            *time.Time
	EndedAt              *time.Time
	DueAt                *time.Time
}

func ParseTask(entry ldvalue.Value) (Task, error) {
	r := fieldReader{entry: entry}
	t := Task{
		ID:                   r.requiredString("id"),
		ProcessID:            r.requiredString("processId"),
		ProcessDefinitionID:  r.optionalString("processDefinitionId"),
		ActivityDefinitionID: r.optionalString("activityDefinitionId"),
		Name:                 r.optionalString("name"),
		Description:          r.optionalString("description"),
		Assignee:             r.optionalString("assignee"),
		Owner:                r.optionalString("owner"),
		State:                r.optionalString("state"),
		Priority:             entry.GetByKey("priority").IntValue(),
		StartedAt:            r.optionalTime("startedAt"),
		EndedAt:              r.optionalTime("endedAt"),
		DueAt:                r.optionalTime("dueAt"),
	}
	return t, r.err
}
