package paging

import (
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// ListParser binds an entry parser to the list envelope.
type ListParser[T any] struct {
	ParseEntry EntryParser[T]
}

// ParseList parses a whole response body.
func (p ListParser[T]) ParseList(root ldvalue.Value) (ListResponse[T], error) {
	return ParseListResponse(root, p.ParseEntry)
}

// ParseSingle parses a response of the form {"entry": {...}}.
func (p ListParser[T]) ParseSingle(root ldvalue.Value) (T, error) {
	return ParseSingleEntry(root, p.ParseEntry)
}

var (
	ProcessesParser         = ListParser[ProcessInfo]{ParseEntry: ParseProcess}
	ProcessDefinitionParser = ListParser[ProcessDefinition]{ParseEntry: ParseProcessDefinition}
	DeploymentParser        = ListParser[Deployment]{ParseEntry: ParseDeployment}
	TaskParser              = ListParser[Task]{ParseEntry: ParseTask}
	VariableParser          = ListParser[Variable]{ParseEntry: ParseVariable}
	RawParser               = ListParser[ldvalue.Value]{ParseEntry: RawEntry}
)
