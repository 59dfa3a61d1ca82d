package servicedef

const (
	// WorkflowEnginePrefix qualifies workflow, task and definition ids in the legacy web scripts.
	WorkflowEnginePrefix = "activiti$"

	AdhocProcessKey        = "activitiAdhoc"
	AdhocWorkflowName      = "activiti$activitiAdhoc"
	AdhocStartTaskType     = "wf:submitAdhocTask"
	AdhocTaskType          = "wf:adhocTask"
	AdhocCompletedTaskType = "wf:completedAdhocTask"

	TaskStateInProgress = "IN_PROGRESS"
	TaskStateCompleted  = "COMPLETED"

	PublicTaskStateCompleted = "completed"
	PublicTaskStateClaimed   = "claimed"
)

// StartProcessParams is the body of a public API request to start a process. Either
// ProcessDefinitionID or ProcessDefinitionKey identifies the definition.
type StartProcessParams struct {
	ProcessDefinitionID  string                 `json:"processDefinitionId,omitempty"`
	ProcessDefinitionKey string                 `json:"processDefinitionKey,omitempty"`
	BusinessKey          string                 `json:"businessKey,omitempty"`
	Variables            map[string]interface{} `json:"variables,omitempty"`
	Items                []string               `json:"items,omitempty"`
}

type VariableParams struct {
	Name  string      `json:"name"`
	Type  string      `json:"type,omitempty"`
	Value interface{} `json:"value"`
}

type ItemParams struct {
	ID string `json:"id"`
}

type UpdateTaskParams struct {
	State string `json:"state"`
}
