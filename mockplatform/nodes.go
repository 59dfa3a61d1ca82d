package mockplatform

import (
	"net/http"
	"strings"
	"time"

	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const documentLibrary = "documentLibrary"

type node struct {
	id       string
	name     string
	nodeType string
	parentID string
	creator  string
	created  time.Time
	children map[string]string // name -> id

	// site is the short name of the site the node belongs to, and home is the owner of the
	// home folder it belongs to. Both are inherited from the parent.
	site string
	home string
}

func (n *node) isFolder() bool {
	return n.nodeType == servicedef.NodeTypeFolder
}

func (n *node) nodeRef() string {
	return servicedef.NodeRefForID(n.id)
}

func (p *Platform) coreRoutes(r chi.Router) {
	r.Get("/nodes/{nodeId}", p.handleGetNode)
	r.Delete("/nodes/{nodeId}", p.handleDeleteNode)
	r.Post("/nodes/{nodeId}/children", p.handleCreateChild)
	r.Get("/sites/{siteId}/containers/{containerId}", p.handleGetContainer)
}

func (p *Platform) addNode(parent *node, name, nodeType, creator string) *node {
	n := &node{
		id:       uuid.New().String(),
		name:     name,
		nodeType: nodeType,
		creator:  creator,
		created:  time.Now(),
		children: make(map[string]string),
	}
	if parent != nil {
		n.parentID = parent.id
		n.site = parent.site
		n.home = parent.home
		parent.children[name] = n.id
	}
	p.nodes[n.id] = n
	return n
}

// deleteNodeTree removes a node, its descendants, and everything attached to them.
func (p *Platform) deleteNodeTree(n *node) {
	if n == nil {
		return
	}
	for _, childID := range n.children {
		p.deleteNodeTree(p.nodes[childID])
	}
	if parent := p.nodes[n.parentID]; parent != nil {
		delete(parent.children, n.name)
	}
	for id, post := range p.posts {
		if post.nodeID == n.id {
			p.deletePostTree(p.posts[id])
		}
	}
	delete(p.ratings, n.id)
	delete(p.nodes, n.id)
}

// nodePath is the display path of a node, including its own name.
func (p *Platform) nodePath(n *node) string {
	var names []string
	for cur := n; cur != nil; cur = p.nodes[cur.parentID] {
		names = append([]string{cur.name}, names...)
	}
	return "/" + strings.Join(names, "/")
}

// resolveNode finds a node by id or by "-my-", the current user's home folder.
func (p *Platform) resolveNode(r *http.Request, id string) *node {
	if id == servicedef.NodeAliasMy {
		if u := p.people[currentUser(r)]; u != nil {
			return p.nodes[u.homeID]
		}
		return nil
	}
	return p.nodes[id]
}

// nodeFromStorePath finds the node addressed by {storeType}/{storeId}/{id} route parameters.
func (p *Platform) nodeFromStorePath(r *http.Request) *node {
	if pathParam(r, "storeType") != "workspace" || pathParam(r, "storeId") != "SpacesStore" {
		return nil
	}
	return p.nodes[pathParam(r, "id")]
}

func (p *Platform) canReadNode(userName string, n *node) bool {
	switch {
	case p.isAdmin(userName):
		return true
	case n.site != "":
		s := p.sites[n.site]
		return s != nil && p.siteVisible(s, userName)
	case n.home != "":
		return n.home == userName
	default:
		return true
	}
}

func (p *Platform) canWriteNode(userName string, n *node) bool {
	switch {
	case p.isAdmin(userName):
		return true
	case n.site != "":
		s := p.sites[n.site]
		return s != nil && canContribute(p.roleOf(s, userName))
	case n.home != "":
		return n.home == userName
	default:
		return false
	}
}

func (p *Platform) canDeleteNode(userName string, n *node) bool {
	if p.isAdmin(userName) || n.creator == userName {
		return true
	}
	if n.site != "" {
		s := p.sites[n.site]
		return s != nil && p.roleOf(s, userName) == servicedef.RoleManager
	}
	return false
}

func (p *Platform) nodeJSON(n *node) jsonObject {
	created := formatPublic(n.created)
	return jsonObject{
		"id":             n.id,
		"name":           n.name,
		"nodeType":       n.nodeType,
		"isFolder":       n.isFolder(),
		"isFile":         !n.isFolder(),
		"parentId":       n.parentID,
		"createdAt":      created,
		"modifiedAt":     created,
		"createdByUser":  jsonObject{"id": n.creator, "displayName": n.creator},
		"modifiedByUser": jsonObject{"id": n.creator, "displayName": n.creator},
		"path":           jsonObject{"name": p.nodePath(n)},
	}
}

func (p *Platform) handleGetNode(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	n := p.resolveNode(r, pathParam(r, "nodeId"))
	if n == nil {
		writePublicError(w, http.StatusNotFound, "The entity with id: %s was not found", pathParam(r, "nodeId"))
		return
	}
	if !p.canReadNode(currentUser(r), n) {
		writePublicError(w, http.StatusForbidden, "Permission was denied")
		return
	}
	writeJSON(w, http.StatusOK, jsonObject{"entry": p.nodeJSON(n)})
}

func (p *Platform) handleCreateChild(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	user := currentUser(r)
	parent := p.resolveNode(r, pathParam(r, "nodeId"))
	if parent == nil || !p.canReadNode(user, parent) {
		writePublicError(w, http.StatusNotFound, "The entity with id: %s was not found", pathParam(r, "nodeId"))
		return
	}
	if !parent.isFolder() {
		writePublicError(w, http.StatusBadRequest, "Parent %s is not a folder", parent.id)
		return
	}
	if !p.canWriteNode(user, parent) {
		writePublicError(w, http.StatusForbidden, "Permission was denied")
		return
	}
	var params servicedef.CreateNodeParams
	if err := readJSON(r, &params); err != nil || params.Name == "" {
		writePublicError(w, http.StatusBadRequest, "A node must have a name")
		return
	}
	switch params.NodeType {
	case "":
		params.NodeType = servicedef.NodeTypeContent
	case servicedef.NodeTypeFolder, servicedef.NodeTypeContent:
	default:
		writePublicError(w, http.StatusBadRequest, "Unsupported node type %s", params.NodeType)
		return
	}
	if _, exists := parent.children[params.Name]; exists {
		writePublicError(w, http.StatusConflict, "Duplicate child name not allowed: %s", params.Name)
		return
	}
	n := p.addNode(parent, params.Name, params.NodeType, user)
	writeJSON(w, http.StatusCreated, jsonObject{"entry": p.nodeJSON(n)})
}

func (p *Platform) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	user := currentUser(r)
	n := p.nodes[pathParam(r, "nodeId")]
	if n == nil || !p.canReadNode(user, n) {
		writePublicError(w, http.StatusNotFound, "The entity with id: %s was not found", pathParam(r, "nodeId"))
		return
	}
	if n.parentID == "" || n.id == p.sitesRootID || n.id == p.userHomesID {
		writePublicError(w, http.StatusForbidden, "Cannot delete a root folder")
		return
	}
	if !p.canDeleteNode(user, n) {
		writePublicError(w, http.StatusForbidden, "Permission was denied")
		return
	}
	p.deleteNodeTree(n)
	w.WriteHeader(http.StatusNoContent)
}

func (p *Platform) handleGetContainer(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	s := p.sites[pathParam(r, "siteId")]
	if s == nil || !p.siteVisible(s, currentUser(r)) {
		writePublicError(w, http.StatusNotFound, "Site %s was not found", pathParam(r, "siteId"))
		return
	}
	if pathParam(r, "containerId") != documentLibrary {
		writePublicError(w, http.StatusNotFound, "Container %s was not found", pathParam(r, "containerId"))
		return
	}
	writeJSON(w, http.StatusOK, jsonObject{"entry": jsonObject{"id": s.docLibID, "folderId": documentLibrary}})
}
