package servicedef

const (
	ReplicationStatusNew             = "New"
	ReplicationStatusPending         = "Pending"
	ReplicationStatusRunning         = "Running"
	ReplicationStatusCompleted       = "Completed"
	ReplicationStatusCancelRequested = "CancelRequested"
	ReplicationStatusCancelled       = "Cancelled"
	ReplicationStatusFailed          = "Failed"

	ReplicationActionExecutor = "replicationActionExecutor"
)

// ReplicationDefinitionParams is the body for creating or updating a replication definition.
// Unset optional fields are left unchanged by an update.
type ReplicationDefinitionParams struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	TargetName  string   `json:"targetName,omitempty"`
	Enabled     *bool    `json:"enabled,omitempty"`
	Payload     []string `json:"payload,omitempty"`
}

type RunReplicationParams struct {
	Name string `json:"name"`
}
