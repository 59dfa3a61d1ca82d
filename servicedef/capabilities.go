package servicedef

const (
	CapabilityForum          = "forum"
	CapabilityRatings        = "ratings"
	CapabilityReplication    = "replication"
	CapabilitySites          = "sites"
	CapabilityAdminSites     = "admin-sites"
	CapabilityLegacyWorkflow = "legacy-workflow"
	CapabilityPublicWorkflow = "public-workflow"
)

// AllCapabilities lists every capability that some test depends on.
var AllCapabilities = []string{
	CapabilityForum,
	CapabilityRatings,
	CapabilityReplication,
	CapabilitySites,
	CapabilityAdminSites,
	CapabilityLegacyWorkflow,
	CapabilityPublicWorkflow,
}

// ServerInfo is the "data" of the api/server response. Capabilities is an optional extension;
// a platform that does not declare it is assumed to support whatever the harness was configured
// with.
type ServerInfo struct {
	Edition      string   `json:"edition"`
	Version      string   `json:"version"`
	Schema       string   `json:"schema,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

type ServerInfoResponse struct {
	Data ServerInfo `json:"data"`
}
