package mockplatform

import (
	"net/http"
	"sort"
	"strings"

	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/go-chi/chi/v5"
)

type person struct {
	userName  string
	firstName string
	lastName  string
	email     string
	password  string
	homeID    string
}

type group struct {
	shortName   string
	displayName string
	members     map[string]bool
}

func (g *group) fullName() string {
	return servicedef.GroupAuthorityPrefix + g.shortName
}

func (p *Platform) peopleRoutes(r chi.Router) {
	r.Post("/api/people", p.handleCreatePerson)
	r.Get("/api/people/{userName}", p.handleGetPerson)
	r.Delete("/api/people/{userName}", p.handleDeletePerson)
	r.Get("/api/people/{userName}/sites", p.handlePersonSites)

	r.Post("/api/rootgroups/{shortName}", p.handleCreateGroup)
	r.Delete("/api/rootgroups/{shortName}", p.handleDeleteGroup)
	r.Get("/api/groups/{shortName}/children", p.handleGroupChildren)
	r.Post("/api/groups/{shortName}/children/{authority}", p.handleAddGroupChild)
	r.Delete("/api/groups/{shortName}/children/{authority}", p.handleRemoveGroupChild)
}

func (p *Platform) addPerson(u *person) {
	home := p.addNode(p.nodes[p.userHomesID], u.userName, servicedef.NodeTypeFolder, p.opts.AdminUserName)
	home.home = u.userName
	u.homeID = home.id
	p.people[u.userName] = u
}

func personJSON(u *person) jsonObject {
	return jsonObject{
		"url":       "/alfresco/service/api/people/" + u.userName,
		"userName":  u.userName,
		"firstName": u.firstName,
		"lastName":  u.lastName,
		"email":     u.email,
		"enabled":   true,
	}
}

// personRef is the short form of a person embedded in other entities.
func (p *Platform) personRef(userName string) jsonObject {
	ret := jsonObject{"userName": userName}
	if u := p.people[userName]; u != nil {
		ret["firstName"] = u.firstName
		ret["lastName"] = u.lastName
	}
	return ret
}

func (p *Platform) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.isAdmin(currentUser(r)) {
		writeWebScriptError(w, http.StatusForbidden, "Only administrators can create people")
		return
	}
	var params servicedef.CreatePersonParams
	if err := readJSON(r, &params); err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	if params.UserName == "" {
		writeWebScriptError(w, http.StatusBadRequest, "User name missing when creating person")
		return
	}
	if p.people[params.UserName] != nil {
		writeWebScriptError(w, http.StatusConflict, "User name already exists: %s", params.UserName)
		return
	}
	u := &person{
		userName:  params.UserName,
		firstName: params.FirstName,
		lastName:  params.LastName,
		email:     params.Email,
		password:  params.Password,
	}
	p.addPerson(u)
	p.log.Info().Str("user", u.userName).Msg("created person")
	writeJSON(w, http.StatusOK, personJSON(u))
}

func (p *Platform) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	u := p.people[pathParam(r, "userName")]
	if u == nil {
		writeWebScriptError(w, http.StatusNotFound, "Person %s does not exist", pathParam(r, "userName"))
		return
	}
	writeJSON(w, http.StatusOK, personJSON(u))
}

func (p *Platform) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.isAdmin(currentUser(r)) {
		writeWebScriptError(w, http.StatusForbidden, "Only administrators can delete people")
		return
	}
	userName := pathParam(r, "userName")
	u := p.people[userName]
	if u == nil || p.isAdmin(userName) {
		writeWebScriptError(w, http.StatusNotFound, "Person %s does not exist", userName)
		return
	}
	for _, s := range p.sites {
		delete(s.members, userName)
	}
	for _, g := range p.groups {
		delete(g.members, userName)
	}
	p.deleteNodeTree(p.nodes[u.homeID])
	delete(p.people, userName)
	p.log.Info().Str("user", userName).Msg("deleted person")
	writeJSON(w, http.StatusOK, jsonObject{})
}

func groupJSON(g *group) jsonObject {
	return jsonObject{
		"authorityType": "GROUP",
		"shortName":     g.shortName,
		"fullName":      g.fullName(),
		"displayName":   g.displayName,
		"url":           "/api/groups/" + g.shortName,
	}
}

func (p *Platform) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.isAdmin(currentUser(r)) {
		writeWebScriptError(w, http.StatusForbidden, "Only administrators can create groups")
		return
	}
	shortName := pathParam(r, "shortName")
	if p.groups[shortName] != nil {
		writeWebScriptError(w, http.StatusBadRequest, "Group %s already exists", shortName)
		return
	}
	var params servicedef.CreateGroupParams
	_ = readJSON(r, &params)
	g := &group{shortName: shortName, displayName: params.DisplayName, members: make(map[string]bool)}
	if g.displayName == "" {
		g.displayName = shortName
	}
	p.groups[shortName] = g
	writeJSON(w, http.StatusCreated, jsonObject{"data": groupJSON(g)})
}

func (p *Platform) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.isAdmin(currentUser(r)) {
		writeWebScriptError(w, http.StatusForbidden, "Only administrators can delete groups")
		return
	}
	g := p.groups[pathParam(r, "shortName")]
	if g == nil {
		writeWebScriptError(w, http.StatusNotFound, "Group %s does not exist", pathParam(r, "shortName"))
		return
	}
	for _, s := range p.sites {
		delete(s.members, g.fullName())
	}
	delete(p.groups, g.shortName)
	writeJSON(w, http.StatusOK, jsonObject{})
}

func (p *Platform) handleGroupChildren(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	g := p.groups[pathParam(r, "shortName")]
	if g == nil {
		writeWebScriptError(w, http.StatusNotFound, "Group %s does not exist", pathParam(r, "shortName"))
		return
	}
	names := make([]string, 0, len(g.members))
	for m := range g.members {
		names = append(names, m)
	}
	sort.Strings(names)
	data := make([]jsonObject, 0, len(names))
	for _, m := range names {
		data = append(data, p.userAuthorityJSON(m))
	}
	writeJSON(w, http.StatusOK, jsonObject{"data": data})
}

func (p *Platform) handleAddGroupChild(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.isAdmin(currentUser(r)) {
		writeWebScriptError(w, http.StatusForbidden, "Only administrators can change group membership")
		return
	}
	g := p.groups[pathParam(r, "shortName")]
	if g == nil {
		writeWebScriptError(w, http.StatusNotFound, "Group %s does not exist", pathParam(r, "shortName"))
		return
	}
	authority := pathParam(r, "authority")
	if strings.HasPrefix(authority, servicedef.GroupAuthorityPrefix) {
		writeWebScriptError(w, http.StatusBadRequest, "Nested groups are not supported")
		return
	}
	if p.people[authority] == nil {
		writeWebScriptError(w, http.StatusNotFound, "Person %s does not exist", authority)
		return
	}
	g.members[authority] = true
	writeJSON(w, http.StatusCreated, jsonObject{"data": p.userAuthorityJSON(authority)})
}

func (p *Platform) handleRemoveGroupChild(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.isAdmin(currentUser(r)) {
		writeWebScriptError(w, http.StatusForbidden, "Only administrators can change group membership")
		return
	}
	g := p.groups[pathParam(r, "shortName")]
	authority := pathParam(r, "authority")
	if g == nil || !g.members[authority] {
		writeWebScriptError(w, http.StatusNotFound, "%s is not a member of group %s", authority, pathParam(r, "shortName"))
		return
	}
	delete(g.members, authority)
	writeJSON(w, http.StatusOK, jsonObject{})
}

func (p *Platform) userAuthorityJSON(userName string) jsonObject {
	ret := p.personRef(userName)
	ret["authorityType"] = "USER"
	ret["fullName"] = userName
	ret["url"] = "/alfresco/service/api/people/" + userName
	return ret
}

// groupsOf returns the full names of the groups the user belongs to, sorted.
func (p *Platform) groupsOf(userName string) []string {
	var ret []string
	for _, g := range p.groups {
		if g.members[userName] {
			ret = append(ret, g.fullName())
		}
	}
	sort.Strings(ret)
	return ret
}
