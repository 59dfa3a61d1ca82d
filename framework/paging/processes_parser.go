package paging

import (
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// ProcessInfo is a process instance as returned by the public workflow API.
type ProcessInfo struct {
	ID                     string
	ProcessDefinitionID    string
	ProcessDefinitionKey   string
	StartedAt              *time.Time
	EndedAt                *time.Time
	DurationInMS           ldvalue.OptionalInt
	DeleteReason           string
	BusinessKey            string
	SuperProcessInstanceID string
	StartActivityID        string
	StartUserID            string
	EndActivityID          string
	Completed              bool
	Variables              map[string]ldvalue.Value
	Items                  []string
	ProcessVariables       []Variable
}

// Variable is a typed process or task variable.
type Variable struct {
	Name  string
	Type  string
	Value ldvalue.Value
}

// ParseProcess is the entry parser for processes. The id and definition fields are required.
func ParseProcess(entry ldvalue.Value) (ProcessInfo, error) {
	r := fieldReader{entry: entry}
	p := ProcessInfo{
		ID:                     r.requiredString("id"),
		ProcessDefinitionID:    r.requiredString("processDefinitionId"),
		ProcessDefinitionKey:   r.requiredString("processDefinitionKey"),
		StartedAt:              r.optionalTime("startedAt"),
		EndedAt:                r.optionalTime("endedAt"),
		DeleteReason:           r.optionalString("deleteReason"),
		BusinessKey:            r.optionalString("businessKey"),
		SuperProcessInstanceID: r.optionalString("superProcessInstanceId"),
		StartActivityID:        r.optionalString("startActivityId"),
		StartUserID:            r.optionalString("startUserId"),
		EndActivityID:          r.optionalString("endActivityId"),
		Completed:              entry.GetByKey("completed").BoolValue(),
	}
	if d := entry.GetByKey("durationInMs"); d.IsNumber() {
		p.DurationInMS = ldvalue.NewOptionalInt(d.IntValue())
	}
	if vars := entry.GetByKey("variables"); vars.Type() == ldvalue.ObjectType {
		p.Variables = make(map[string]ldvalue.Value)
		for _, k := range vars.Keys() {
			p.Variables[k] = vars.GetByKey(k)
		}
	}
	if items := entry.GetByKey("item"); items.Type() == ldvalue.ArrayType {
		p.Items = make([]string, 0, items.Count())
		for i := 0; i < items.Count(); i++ {
			p.Items = append(p.Items, items.GetByIndex(i).StringValue())
		}
	}
	if vars := entry.GetByKey("processVariables"); vars.Type() == ldvalue.ArrayType {
		for i := 0; i < vars.Count(); i++ {
			v, err := ParseVariable(vars.GetByIndex(i))
			if err != nil {
				return ProcessInfo{}, err
			}
			p.ProcessVariables = append(p.ProcessVariables, v)
		}
	}
	return p, r.err
}

// ParseVariable is the entry parser for process and task variables.
func ParseVariable(entry ldvalue.Value) (Variable, error) {
	r := fieldReader{entry: entry}
	v := Variable{
		Name:  r.requiredString("name"),
		Type:  r.optionalString("type"),
		Value: entry.GetByKey("value"),
	}
	return v, r.err
}
