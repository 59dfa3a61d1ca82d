package mockplatform

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type site struct {
	shortName   string
	title       string
	description string
	visibility  string
	preset      string
	nodeID      string
	docLibID    string
	created     time.Time

	// members maps a user name or group full name to a role.
	members map[string]string
}

type invitation struct {
	id        string
	site      string
	invitee   string
	role      string
	comments  string
	createdAt time.Time
}

var roleRank = map[string]int{
	servicedef.RoleConsumer:     1,
	servicedef.RoleContributor:  2,
	servicedef.RoleCollaborator: 3,
	servicedef.RoleManager:      4,
}

func canContribute(role string) bool {
	return roleRank[role] >= roleRank[servicedef.RoleContributor]
}

func (p *Platform) siteRoutes(r chi.Router) {
	r.Get("/api/sites", p.handleListSites)
	r.Post("/api/sites", p.handleCreateSite)
	r.Post("/api/sites/query", p.handleQuerySites)
	r.Get("/api/sites/{shortName}", p.handleGetSite)
	r.Put("/api/sites/{shortName}", p.handleUpdateSite)
	r.Delete("/api/sites/{shortName}", p.handleDeleteSite)

	r.Get("/api/sites/{shortName}/memberships", p.handleListMemberships)
	r.Post("/api/sites/{shortName}/memberships", p.handleAddMembership)
	r.Put("/api/sites/{shortName}/memberships", p.handleUpdateMembership)
	r.Get("/api/sites/{shortName}/memberships/{authority}", p.handleGetMembership)
	r.Delete("/api/sites/{shortName}/memberships/{authority}", p.handleDeleteMembership)
	r.Get("/api/sites/{shortName}/potentialmembers", p.handlePotentialMembers)

	r.Get("/api/sites/{shortName}/invitations", p.handleListInvitations)
	r.Post("/api/sites/{shortName}/invitations", p.handleCreateInvitation)
	r.Get("/api/sites/{shortName}/invitations/{inviteId}", p.handleGetInvitation)
	r.Delete("/api/sites/{shortName}/invitations/{inviteId}", p.handleDeleteInvitation)

	r.Get("/api/admin-sites", p.handleAdminSites)
}

// roleOf returns the user's role in the site, directly or through a group. When there are
// several, the highest one wins.
func (p *Platform) roleOf(s *site, userName string) string {
	role := s.members[userName]
	for _, g := range p.groupsOf(userName) {
		if gr := s.members[g]; roleRank[gr] > roleRank[role] {
			role = gr
		}
	}
	return role
}

func (p *Platform) siteVisible(s *site, userName string) bool {
	return s.visibility != servicedef.VisibilityPrivate || p.isSiteAdmin(userName) || p.roleOf(s, userName) != ""
}

// canManageSite reports whether the user may change the site and its memberships. Members of
// the site administrators group can manage every site.
func (p *Platform) canManageSite(s *site, userName string) bool {
	return p.isSiteAdmin(userName) || p.roleOf(s, userName) == servicedef.RoleManager
}

func (p *Platform) isSiteAdmin(userName string) bool {
	if p.isAdmin(userName) {
		return true
	}
	g := p.groups[servicedef.SiteAdministratorsGroup]
	return g != nil && g.members[userName]
}

// visibleSite looks up the site named in the route, and writes a 404 if the current user
// cannot see it.
func (p *Platform) visibleSite(w http.ResponseWriter, r *http.Request) *site {
	name := pathParam(r, "shortName")
	s := p.sites[name]
	if s == nil || !p.siteVisible(s, currentUser(r)) {
		writeWebScriptError(w, http.StatusNotFound, "Site %s does not exist", name)
		return nil
	}
	return s
}

func (p *Platform) siteJSON(s *site) jsonObject {
	managers := []string{}
	for authority, role := range s.members {
		if role == servicedef.RoleManager && !strings.HasPrefix(authority, servicedef.GroupAuthorityPrefix) {
			managers = append(managers, authority)
		}
	}
	sort.Strings(managers)
	return jsonObject{
		"url":          "/alfresco/service/api/sites/" + s.shortName,
		"sitePreset":   s.preset,
		"shortName":    s.shortName,
		"title":        s.title,
		"description":  s.description,
		"node":         "/alfresco/service/api/node/" + servicedef.NodeRefPath(servicedef.NodeRefForID(s.nodeID)),
		"tagScope":     "/alfresco/service/api/tagscopes/" + servicedef.NodeRefPath(servicedef.NodeRefForID(s.nodeID)),
		"isPublic":     s.visibility == servicedef.VisibilityPublic,
		"visibility":   s.visibility,
		"siteManagers": managers,
		// Custom properties come from an aspect that only server-side code can apply.
		"customProperties": jsonObject{},
	}
}

func (p *Platform) sortedSites(include func(*site) bool) []*site {
	var ret []*site
	for _, s := range p.sites {
		if include(s) {
			ret = append(ret, s)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].shortName < ret[j].shortName })
	return ret
}

func matchesNameFilter(s *site, filter string) bool {
	if filter == "" {
		return true
	}
	filter = strings.ToLower(filter)
	return strings.Contains(strings.ToLower(s.shortName), filter) || strings.Contains(strings.ToLower(s.title), filter)
}

func (p *Platform) writeSiteArray(w http.ResponseWriter, sites []*site, size int) {
	if size > 0 && len(sites) > size {
		sites = sites[:size]
	}
	data := make([]jsonObject, 0, len(sites))
	for _, s := range sites {
		data = append(data, p.siteJSON(s))
	}
	writeJSON(w, http.StatusOK, data)
}

func (p *Platform) handleListSites(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	user := currentUser(r)
	nf := r.URL.Query().Get("nf")
	preset := r.URL.Query().Get("spf")
	sites := p.sortedSites(func(s *site) bool {
		return p.siteVisible(s, user) && matchesNameFilter(s, nf) && (preset == "" || s.preset == preset)
	})
	p.writeSiteArray(w, sites, queryInt(r, "size", 0))
}

func (p *Platform) handleQuerySites(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	var params servicedef.SiteQueryParams
	if err := readJSON(r, &params); err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "Invalid query: %s", err)
		return
	}
	if params.ShortName.Match != "" && params.ShortName.Match != "exact" {
		writeWebScriptError(w, http.StatusBadRequest, "Unsupported match type %s", params.ShortName.Match)
		return
	}
	wanted := make(map[string]bool)
	for _, v := range params.ShortName.Values {
		wanted[v] = true
	}
	user := currentUser(r)
	sites := p.sortedSites(func(s *site) bool {
		return p.siteVisible(s, user) && (len(wanted) == 0 || wanted[s.shortName])
	})
	p.writeSiteArray(w, sites, 0)
}

func (p *Platform) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	var params servicedef.CreateSiteParams
	if err := readJSON(r, &params); err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	if params.ShortName == "" || params.SitePreset == "" {
		writeWebScriptError(w, http.StatusBadRequest, "shortName and sitePreset are required")
		return
	}
	if p.sites[params.ShortName] != nil {
		writeWebScriptError(w, http.StatusBadRequest, "error.duplicateShortName")
		return
	}
	switch params.Visibility {
	case "":
		params.Visibility = servicedef.VisibilityPublic
	case servicedef.VisibilityPublic, servicedef.VisibilityModerated, servicedef.VisibilityPrivate:
	default:
		writeWebScriptError(w, http.StatusBadRequest, "Unknown visibility %s", params.Visibility)
		return
	}
	user := currentUser(r)
	s := &site{
		shortName:   params.ShortName,
		title:       params.Title,
		description: params.Description,
		visibility:  params.Visibility,
		preset:      params.SitePreset,
		created:     time.Now(),
		members:     map[string]string{user: servicedef.RoleManager},
	}
	siteNode := p.addNode(p.nodes[p.sitesRootID], s.shortName, servicedef.NodeTypeFolder, user)
	siteNode.site = s.shortName
	s.nodeID = siteNode.id
	s.docLibID = p.addNode(siteNode, documentLibrary, servicedef.NodeTypeFolder, user).id
	p.sites[s.shortName] = s
	p.log.Info().Str("site", s.shortName).Str("visibility", s.visibility).Msg("created site")
	writeJSON(w, http.StatusOK, p.siteJSON(s))
}

func (p *Platform) handleGetSite(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if s := p.visibleSite(w, r); s != nil {
		writeJSON(w, http.StatusOK, p.siteJSON(s))
	}
}

func (p *Platform) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	s := p.visibleSite(w, r)
	if s == nil {
		return
	}
	if !p.canManageSite(s, currentUser(r)) {
		writeWebScriptError(w, http.StatusForbidden, "Only site managers can update the site")
		return
	}
	var params servicedef.UpdateSiteParams
	if err := readJSON(r, &params); err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	if params.Title != "" {
		s.title = params.Title
	}
	if params.Description != "" {
		s.description = params.Description
	}
	if params.Visibility != "" {
		s.visibility = params.Visibility
	}
	writeJSON(w, http.StatusOK, p.siteJSON(s))
}

func (p *Platform) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	s := p.visibleSite(w, r)
	if s == nil {
		return
	}
	if !p.canManageSite(s, currentUser(r)) {
		writeWebScriptError(w, http.StatusForbidden, "Only site managers can delete the site")
		return
	}
	for id, inv := range p.invitations {
		if inv.site == s.shortName {
			delete(p.invitations, id)
		}
	}
	for id, post := range p.posts {
		if post.site == s.shortName {
			delete(p.posts, id)
		}
	}
	p.deleteNodeTree(p.nodes[s.nodeID])
	delete(p.sites, s.shortName)
	p.log.Info().Str("site", s.shortName).Msg("deleted site")
	writeJSON(w, http.StatusOK, jsonObject{})
}

func (p *Platform) membershipJSON(s *site, authority, role string) jsonObject {
	var auth jsonObject
	if strings.HasPrefix(authority, servicedef.GroupAuthorityPrefix) {
		if g := p.groups[strings.TrimPrefix(authority, servicedef.GroupAuthorityPrefix)]; g != nil {
			auth = groupJSON(g)
		} else {
			auth = jsonObject{"authorityType": "GROUP", "fullName": authority}
		}
	} else {
		auth = p.userAuthorityJSON(authority)
	}
	return jsonObject{
		"role":      role,
		"authority": auth,
		"url":       "/alfresco/service/api/sites/" + s.shortName + "/memberships/" + authority,
	}
}

func (p *Platform) handleListMemberships(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	s := p.visibleSite(w, r)
	if s == nil {
		return
	}
	roleFilter := r.URL.Query().Get("rf")
	typeFilter := r.URL.Query().Get("authorityType")
	authorities := make([]string, 0, len(s.members))
	for a := range s.members {
		authorities = append(authorities, a)
	}
	sort.Strings(authorities)
	data := []jsonObject{}
	for _, a := range authorities {
		isGroup := strings.HasPrefix(a, servicedef.GroupAuthorityPrefix)
		if roleFilter != "" && s.members[a] != roleFilter {
			continue
		}
		if (typeFilter == "USER" && isGroup) || (typeFilter == "GROUP" && !isGroup) {
			continue
		}
		data = append(data, p.membershipJSON(s, a, s.members[a]))
	}
	writeJSON(w, http.StatusOK, data)
}

// membershipAuthority validates the person or group of a membership request body.
func (p *Platform) membershipAuthority(w http.ResponseWriter, params servicedef.MembershipParams) (string, bool) {
	if _, ok := roleRank[params.Role]; !ok {
		writeWebScriptError(w, http.StatusBadRequest, "Unknown role %q", params.Role)
		return "", false
	}
	switch {
	case params.Person != nil:
		if p.people[params.Person.UserName] == nil {
			writeWebScriptError(w, http.StatusNotFound, "Person %s does not exist", params.Person.UserName)
			return "", false
		}
		return params.Person.UserName, true
	case params.Group != nil:
		if p.groups[strings.TrimPrefix(params.Group.FullName, servicedef.GroupAuthorityPrefix)] == nil {
			writeWebScriptError(w, http.StatusNotFound, "Group %s does not exist", params.Group.FullName)
			return "", false
		}
		return params.Group.FullName, true
	default:
		writeWebScriptError(w, http.StatusBadRequest, "A person or group must be specified")
		return "", false
	}
}

func (p *Platform) handleAddMembership(w http.ResponseWriter, r *http.Request) {
	p.setMembership(w, r, false)
}

func (p *Platform) handleUpdateMembership(w http.ResponseWriter, r *http.Request) {
	p.setMembership(w, r, true)
}

func (p *Platform) setMembership(w http.ResponseWriter, r *http.Request, mustExist bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	s := p.visibleSite(w, r)
	if s == nil {
		return
	}
	if !p.canManageSite(s, currentUser(r)) {
		writeWebScriptError(w, http.StatusForbidden, "Only site managers can change memberships")
		return
	}
	var params servicedef.MembershipParams
	if err := readJSON(r, &params); err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	authority, ok := p.membershipAuthority(w, params)
	if !ok {
		return
	}
	if _, isMember := s.members[authority]; mustExist && !isMember {
		writeWebScriptError(w, http.StatusNotFound, "%s is not a member of site %s", authority, s.shortName)
		return
	}
	s.members[authority] = params.Role
	writeJSON(w, http.StatusOK, p.membershipJSON(s, authority, params.Role))
}

func (p *Platform) handleGetMembership(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	s := p.visibleSite(w, r)
	if s == nil {
		return
	}
	authority := pathParam(r, "authority")
	role, ok := s.members[authority]
	if !ok {
		writeWebScriptError(w, http.StatusNotFound, "%s is not a member of site %s", authority, s.shortName)
		return
	}
	writeJSON(w, http.StatusOK, p.membershipJSON(s, authority, role))
}

func (p *Platform) handleDeleteMembership(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	s := p.visibleSite(w, r)
	if s == nil {
		return
	}
	user := currentUser(r)
	authority := pathParam(r, "authority")
	role, ok := s.members[authority]
	if !ok {
		writeWebScriptError(w, http.StatusNotFound, "%s is not a member of site %s", authority, s.shortName)
		return
	}
	if authority != user && !p.canManageSite(s, user) {
		writeWebScriptError(w, http.StatusForbidden, "Only site managers can remove other members")
		return
	}
	if role == servicedef.RoleManager && p.countManagers(s) == 1 {
		writeWebScriptError(w, http.StatusBadRequest, "Cannot remove the last site manager")
		return
	}
	delete(s.members, authority)
	writeJSON(w, http.StatusOK, jsonObject{})
}

// handlePotentialMembers lists the people and groups that match the filter and are not yet
// members of the site. People go in "people" and groups in "data".
func (p *Platform) handlePotentialMembers(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	s := p.visibleSite(w, r)
	if s == nil {
		return
	}
	filter := strings.ToLower(strings.TrimSuffix(r.URL.Query().Get("filter"), "*"))
	maxResults := queryInt(r, "maxResults", 0)
	authorityType := r.URL.Query().Get("authorityType")
	switch authorityType {
	case "", "USER", "GROUP":
	default:
		writeWebScriptError(w, http.StatusBadRequest, "Unknown authority type %s", authorityType)
		return
	}

	people := []jsonObject{}
	if authorityType != "GROUP" {
		names := make([]string, 0, len(p.people))
		for name, u := range p.people {
			if _, member := s.members[name]; member || !personMatches(u, filter) {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if maxResults > 0 && len(people) == maxResults {
				break
			}
			people = append(people, personJSON(p.people[name]))
		}
	}
	groups := []jsonObject{}
	if authorityType != "USER" {
		names := make([]string, 0, len(p.groups))
		for name, g := range p.groups {
			if _, member := s.members[g.fullName()]; member {
				continue
			}
			if filter != "" && !strings.Contains(strings.ToLower(name), filter) &&
				!strings.Contains(strings.ToLower(g.displayName), filter) {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if maxResults > 0 && len(groups) == maxResults {
				break
			}
			groups = append(groups, groupJSON(p.groups[name]))
		}
	}
	writeJSON(w, http.StatusOK, jsonObject{"people": people, "data": groups})
}

func personMatches(u *person, filter string) bool {
	if filter == "" {
		return true
	}
	for _, v := range []string{u.userName, u.firstName, u.lastName} {
		if strings.Contains(strings.ToLower(v), filter) {
			return true
		}
	}
	return false
}

func (p *Platform) countManagers(s *site) int {
	n := 0
	for _, role := range s.members {
		if role == servicedef.RoleManager {
			n++
		}
	}
	return n
}

func (p *Platform) handlePersonSites(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	userName := pathParam(r, "userName")
	if p.people[userName] == nil {
		writeWebScriptError(w, http.StatusNotFound, "Person %s does not exist", userName)
		return
	}
	viewer := currentUser(r)
	sites := p.sortedSites(func(s *site) bool {
		return p.roleOf(s, userName) != "" && p.siteVisible(s, viewer)
	})
	p.writeSiteArray(w, sites, queryInt(r, "size", 0))
}

func (p *Platform) invitationJSON(inv *invitation) jsonObject {
	return jsonObject{
		"inviteId":        inv.id,
		"invitationType":  servicedef.InvitationModerated,
		"resourceType":    "WEB_SITE",
		"resourceName":    inv.site,
		"inviteeUserName": inv.invitee,
		"inviteeRoleName": inv.role,
		"inviteeComments": inv.comments,
		"invitee":         p.personRef(inv.invitee),
		"createdAt":       formatISO(inv.createdAt),
	}
}

func (p *Platform) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	s := p.visibleSite(w, r)
	if s == nil {
		return
	}
	var params servicedef.InvitationParams
	if err := readJSON(r, &params); err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	if params.InvitationType != servicedef.InvitationModerated {
		writeWebScriptError(w, http.StatusBadRequest, "Unsupported invitation type %q", params.InvitationType)
		return
	}
	if s.visibility != servicedef.VisibilityModerated {
		writeWebScriptError(w, http.StatusBadRequest, "Moderated invitations are only allowed on moderated sites")
		return
	}
	user := currentUser(r)
	if params.InviteeUserName != user && !p.canManageSite(s, user) {
		writeWebScriptError(w, http.StatusForbidden, "Cannot request membership on behalf of another user")
		return
	}
	if p.people[params.InviteeUserName] == nil {
		writeWebScriptError(w, http.StatusNotFound, "Person %s does not exist", params.InviteeUserName)
		return
	}
	if _, ok := roleRank[params.InviteeRoleName]; !ok {
		writeWebScriptError(w, http.StatusBadRequest, "Unknown role %q", params.InviteeRoleName)
		return
	}
	if p.roleOf(s, params.InviteeUserName) != "" {
		writeWebScriptError(w, http.StatusBadRequest, "%s is already a member of site %s", params.InviteeUserName, s.shortName)
		return
	}
	for _, pending := range p.invitations {
		if pending.site == s.shortName && pending.invitee == params.InviteeUserName {
			writeWebScriptError(w, http.StatusConflict, "A request to join site %s is already pending for %s",
				s.shortName, params.InviteeUserName)
			return
		}
	}
	inv := &invitation{
		id:        servicedef.WorkflowEnginePrefix + uuid.New().String(),
		site:      s.shortName,
		invitee:   params.InviteeUserName,
		role:      params.InviteeRoleName,
		comments:  params.InviteeComments,
		createdAt: time.Now(),
	}
	p.invitations[inv.id] = inv
	writeJSON(w, http.StatusCreated, jsonObject{"data": p.invitationJSON(inv)})
}

func (p *Platform) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	s := p.visibleSite(w, r)
	if s == nil {
		return
	}
	user := currentUser(r)
	invitee := r.URL.Query().Get("inviteeUserName")
	var list []*invitation
	for _, inv := range p.invitations {
		if inv.site != s.shortName || (invitee != "" && inv.invitee != invitee) {
			continue
		}
		if inv.invitee != user && !p.canManageSite(s, user) {
			continue
		}
		list = append(list, inv)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].createdAt.Before(list[j].createdAt) })
	data := []jsonObject{}
	for _, inv := range list {
		data = append(data, p.invitationJSON(inv))
	}
	writeJSON(w, http.StatusOK, jsonObject{"data": data})
}

// siteInvitation looks up the invitation named in the route, and writes a 404 if it does not
// exist or the current user may not see it.
func (p *Platform) siteInvitation(w http.ResponseWriter, r *http.Request) (*site, *invitation) {
	s := p.visibleSite(w, r)
	if s == nil {
		return nil, nil
	}
	inv := p.invitations[pathParam(r, "inviteId")]
	user := currentUser(r)
	if inv == nil || inv.site != s.shortName || (inv.invitee != user && !p.canManageSite(s, user)) {
		writeWebScriptError(w, http.StatusNotFound, "Invitation %s does not exist", pathParam(r, "inviteId"))
		return nil, nil
	}
	return s, inv
}

func (p *Platform) handleGetInvitation(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if _, inv := p.siteInvitation(w, r); inv != nil {
		writeJSON(w, http.StatusOK, jsonObject{"data": p.invitationJSON(inv)})
	}
}

func (p *Platform) handleDeleteInvitation(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if _, inv := p.siteInvitation(w, r); inv != nil {
		delete(p.invitations, inv.id)
		writeJSON(w, http.StatusOK, jsonObject{"data": jsonObject{"inviteId": inv.id}})
	}
}

func (p *Platform) handleAdminSites(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.isSiteAdmin(currentUser(r)) {
		writeWebScriptError(w, http.StatusNotFound, "Web Script not found: %s", r.URL.Path)
		return
	}
	nf := r.URL.Query().Get("nf")
	sites := p.sortedSites(func(s *site) bool { return matchesNameFilter(s, nf) })
	entries := make([]jsonObject, 0, len(sites))
	for _, s := range sites {
		e := p.siteJSON(s)
		e["id"] = s.shortName
		e["guid"] = s.nodeID
		entries = append(entries, e)
	}
	writeJSON(w, http.StatusOK, publicList(entries, pageWindowFromQuery(r)))
}
