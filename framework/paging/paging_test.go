package paging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const processListBody = `{
	"list": {
		"pagination": {"count": 2, "hasMoreItems": true, "totalItems": 3, "skipCount": 0, "maxItems": 2},
		"entries": [
			{"entry": {
				"id": "p1", "processDefinitionId": "activitiAdhoc:1:4", "processDefinitionKey": "activitiAdhoc",
				"startedAt": "2024-03-01T10:15:30.000+0000", "startUserId": "user1",
				"startActivityId": "start", "completed": false,
				"variables": {"bpm_priority": 1},
				"item": ["workspace://SpacesStore/n1"],
				"processVariables": [{"name": "bpm_description", "type": "d:text", "value": "hi"}]
			}},
			{"entry": {
				"id": "p2", "processDefinitionId": "activitiAdhoc:1:4", "processDefinitionKey": "activitiAdhoc",
				"startedAt": "2024-03-01T10:16:00.000+0000", "endedAt": "2024-03-01T10:17:00.000+0000",
				"durationInMs": 60000, "deleteReason": "cancelled", "completed": true
			}}
		]
	}
}`

func parse(t *testing.T, s string) ldvalue.Value {
	v := ldvalue.Parse([]byte(s))
	require.False(t, v.IsNull())
	return v
}

func TestProcessesParser(t *testing.T) {
	list, err := ProcessesParser.ParseList(parse(t, processListBody))
	require.NoError(t, err)

	assert.Equal(t, 2, list.Paging.Count)
	assert.True(t, list.Paging.HasMoreItems)
	assert.Equal(t, ldvalue.NewOptionalInt(3), list.Paging.TotalItems)
	assert.Equal(t, 2, list.Paging.MaxItems)

	require.Len(t, list.Entries, 2)
	p1, p2 := list.Entries[0], list.Entries[1]
	assert.Equal(t, "p1", p1.ID)
	assert.Equal(t, "activitiAdhoc", p1.ProcessDefinitionKey)
	require.NotNil(t, p1.StartedAt)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC), p1.StartedAt.UTC())
	assert.Nil(t, p1.EndedAt)
	assert.False(t, p1.DurationInMS.IsDefined())
	assert.Equal(t, ldvalue.Int(1), p1.Variables["bpm_priority"])
	assert.Equal(t, []string{"workspace://SpacesStore/n1"}, p1.Items)
	assert.Equal(t, []Variable{{Name: "bpm_description", Type: "d:text", Value: ldvalue.String("hi")}}, p1.ProcessVariables)

	assert.Equal(t, "p2", p2.ID)
	assert.True(t, p2.Completed)
	assert.Equal(t, 60000, p2.DurationInMS.IntValue())
	assert.Equal(t, "cancelled", p2.DeleteReason)
	assert.Nil(t, p2.Variables)
}

func TestParserFailsOnMissingRequiredField(t *testing.T) {
	_, err := ProcessesParser.ParseList(parse(t, `{"list": {"pagination": {}, "entries": [{"entry": {"id": "x"}}]}}`))
	assert.Error(t, err)

	_, err = ProcessDefinitionParser.ParseSingle(parse(t, `{"entry": {"id": "x"}}`))
	assert.Error(t, err)
}

func TestParserFailsOnMalformedEnvelope(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"list": {"pagination": {}}}`,
		`{"list": {"pagination": {}, "entries": [{"notentry": {}}]}}`,
		`{"list": {"entries": []}}`,
	} {
		_, err := RawParser.ParseList(parse(t, body))
		assert.Error(t, err, body)
	}
}

func TestTotalItemsIsOptional(t *testing.T) {
	list, err := RawParser.ParseList(parse(t, `{"list": {"pagination": {"count": 0, "hasMoreItems": false, "skipCount": 0, "maxItems": 100}, "entries": []}}`))
	require.NoError(t, err)
	assert.False(t, list.Paging.TotalItems.IsDefined())
	assert.Empty(t, list.Entries)
}

func TestProcessDefinitionParser(t *testing.T) {
	d, err := ProcessDefinitionParser.ParseSingle(parse(t, `{"entry": {
		"id": "activitiAdhoc:1:4", "key": "activitiAdhoc", "version": 1, "name": "Adhoc Activiti Process",
		"deploymentId": "1", "title": "New Task", "description": "Assign a new task to yourself or a colleague",
		"category": "http://alfresco.org", "startFormResourceKey": "wf:submitAdhocTask", "graphicNotationDefined": true
	}}`))
	require.NoError(t, err)
	assert.Equal(t, ProcessDefinition{
		ID:                     "activitiAdhoc:1:4",
		Key:                    "activitiAdhoc",
		Version:                1,
		Name:                   "Adhoc Activiti Process",
		DeploymentID:           "1",
		Title:                  "New Task",
		Description:            "Assign a new task to yourself or a colleague",
		Category:               "http://alfresco.org",
		StartFormResourceKey:   "wf:submitAdhocTask",
		GraphicNotationDefined: true,
	}, d)
}

func TestTaskParserReadsDates(t *testing.T) {
	task, err := TaskParser.ParseSingle(parse(t, `{"entry": {"id": "t1", "processId": "p1", "state": "claimed",
		"startedAt": "2024-03-01T10:15:30.000+0100", "dueAt": "2024-03-02T00:00:00Z"}}`))
	require.NoError(t, err)
	assert.Equal(t, "claimed", task.State)
	require.NotNil(t, task.StartedAt)
	assert.Equal(t, 9, task.StartedAt.UTC().Hour())
	require.NotNil(t, task.DueAt)
	assert.Nil(t, task.EndedAt)

	_, err = TaskParser.ParseSingle(parse(t, `{"entry": {"id": "t1", "processId": "p1", "startedAt": "yesterday"}}`))
	assert.Error(t, err)
}

func TestFormatDateRoundTrip(t *testing.T) {
	when := time.Date(2024, 5, 6, 7, 8, 9, 123000000, time.UTC)
	parsed, err := ParseDate(FormatDate(when))
	require.NoError(t, err)
	assert.True(t, when.Equal(parsed))
}
