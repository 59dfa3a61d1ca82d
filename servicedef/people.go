package servicedef

type CreatePersonParams struct {
	UserName  string `json:"userName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type CreateGroupParams struct {
	DisplayName string `json:"displayName"`
}

// GroupAuthorityPrefix is prepended to a group's short name to form its authority name.
const GroupAuthorityPrefix = "GROUP_"
