package paging

import (
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

type ProcessDefinition struct {
	ID                     string
	Key                    string
	Version                int
	Name                   string
	DeploymentID           string
	Title                  string
	Description            string
	Category               string
	StartFormResourceKey   string
	GraphicNotationDefined bool
}

func ParseProcessDefinition(entry ldvalue.Value) (ProcessDefinition, error) {
	r := fieldReader{entry: entry}
	d := ProcessDefinition{
		ID:                     r.requiredString("id"),
		Key:                    r.requiredString("key"),
		Version:                entry.GetByKey("version").IntValue(),
		Name:                   r.optionalString("name"),
		DeploymentID:           r.optionalString("deploymentId"),
		Title:                  r.optionalString("title"),
		Description:            r.optionalString("description"),
		Category:               r.optionalString("category"),
		StartFormResourceKey:   r.optionalString("startFormResourceKey"),
		GraphicNotationDefined: entry.GetByKey("graphicNotationDefined").BoolValue(),
	}
	return d, r.err
}

type Deployment struct {
	ID         string
	Name       string
	Category   string
	DeployedAt string
}

func ParseDeployment(entry ldvalue.Value) (Deployment, error) {
	r := fieldReader{entry: entry}
	d := Deployment{
		ID:         r.requiredString("id"),
		Name:       r.optionalString("name"),
		Category:   r.optionalString("category"),
		DeployedAt: r.optionalString("deployedAt"),
	}
	return d, r.err
}
