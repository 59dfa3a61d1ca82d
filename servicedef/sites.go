package servicedef

const (
	VisibilityPublic    = "PUBLIC"
	VisibilityModerated = "MODERATED"
	VisibilityPrivate   = "PRIVATE"

	RoleManager      = "SiteManager"
	RoleCollaborator = "SiteCollaborator"
	RoleContributor  = "SiteContributor"
	RoleConsumer     = "SiteConsumer"

	DefaultSitePreset = "site-dashboard"

	InvitationModerated = "MODERATED"

	// SiteAdministratorsGroup is the short name of the group whose members can list and manage
	// every site.
	SiteAdministratorsGroup = "SITE_ADMINISTRATORS"
)

type CreateSiteParams struct {
	SitePreset  string `json:"sitePreset"`
	ShortName   string `json:"shortName"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
}

type UpdateSiteParams struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
}

type MembershipPerson struct {
	UserName string `json:"userName"`
}

type MembershipGroup struct {
	FullName string `json:"fullName"`
}

// MembershipParams adds or updates a member. Exactly one of Person and Group is set.
type MembershipParams struct {
	Role   string            `json:"role"`
	Person *MembershipPerson `json:"person,omitempty"`
	Group  *MembershipGroup  `json:"group,omitempty"`
}

type ShortNameQuery struct {
	Match  string   `json:"match"`
	Values []string `json:"values"`
}

type SiteQueryParams struct {
	ShortName ShortNameQuery `json:"shortName"`
}

type InvitationParams struct {
	InvitationType  string `json:"invitationType"`
	InviteeUserName string `json:"inviteeUserName"`
	InviteeRoleName string `json:"inviteeRoleName"`
	InviteeComments string `json:"inviteeComments,omitempty"`
}
