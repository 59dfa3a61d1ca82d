package mockplatform

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/go-chi/chi/v5"
)

const (
	defaultForumPageSize = 10
	defaultNewPostDays   = 7
)

// post is a discussion topic or a reply. A topic either belongs to a site's discussions
// container, or hangs off a content node.
type post struct {
	id       string
	name     string
	title    string
	content  string
	author   string
	created  time.Time
	modified time.Time
	updated  bool
	deleted  bool
	seq      int

	site     string
	nodeID   string
	topicID  string
	parentID string
	replies  []string
}

func (ps *post) isTopic() bool {
	return ps.parentID == ""
}

func (p *Platform) forumRoutes(r chi.Router) {
	r.Get("/api/forum/site/{shortName}/discussions/posts", p.handleListSitePosts("all"))
	r.Get("/api/forum/site/{shortName}/discussions/posts/hot", p.handleListSitePosts("hot"))
	r.Get("/api/forum/site/{shortName}/discussions/posts/myposts", p.handleListSitePosts("myposts"))
	r.Get("/api/forum/site/{shortName}/discussions/posts/new", p.handleListSitePosts("new"))
	r.Post("/api/forum/site/{shortName}/discussions/posts", p.handleCreateSiteTopic)

	r.Get("/api/forum/node/{storeType}/{storeId}/{id}/posts", p.handleListNodePosts("all"))
	r.Get("/api/forum/node/{storeType}/{storeId}/{id}/posts/hot", p.handleListNodePosts("hot"))
	r.Get("/api/forum/node/{storeType}/{storeId}/{id}/posts/myposts", p.handleListNodePosts("myposts"))
	r.Get("/api/forum/node/{storeType}/{storeId}/{id}/posts/new", p.handleListNodePosts("new"))
	r.Post("/api/forum/node/{storeType}/{storeId}/{id}/posts", p.handleCreateNodeTopic)

	r.Get("/api/forum/post/site/{shortName}/discussions/{name}", p.handleSitePost(p.getPost))
	r.Put("/api/forum/post/site/{shortName}/discussions/{name}", p.handleSitePost(p.updatePost))
	r.Delete("/api/forum/post/site/{shortName}/discussions/{name}", p.handleSitePost(p.deletePost))
	r.Get("/api/forum/post/site/{shortName}/discussions/{name}/replies", p.handleSitePost(p.listReplies))
	r.Post("/api/forum/post/site/{shortName}/discussions/{name}/replies", p.handleSitePost(p.createReply))

	r.Get("/api/forum/post/node/{storeType}/{storeId}/{id}", p.handleNodePost(p.getPost))
	r.Put("/api/forum/post/node/{storeType}/{storeId}/{id}", p.handleNodePost(p.updatePost))
	r.Delete("/api/forum/post/node/{storeType}/{storeId}/{id}", p.handleNodePost(p.deletePost))
	r.Get("/api/forum/post/node/{storeType}/{storeId}/{id}/replies", p.handleNodePost(p.listReplies))
	r.Post("/api/forum/post/node/{storeType}/{storeId}/{id}/replies", p.handleNodePost(p.createReply))
}

type postAction func(w http.ResponseWriter, r *http.Request, ps *post)

// handleSitePost resolves a site topic by its name.
func (p *Platform) handleSitePost(action postAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.lock.Lock()
		defer p.lock.Unlock()

		s := p.visibleSite(w, r)
		if s == nil {
			return
		}
		name := pathParam(r, "name")
		for _, ps := range p.posts {
			if ps.site == s.shortName && ps.isTopic() && ps.name == name {
				action(w, r, ps)
				return
			}
		}
		writeWebScriptError(w, http.StatusNotFound, "Could not find topic '%s' in site '%s'", name, s.shortName)
	}
}

// handleNodePost resolves a topic or reply by its node reference.
func (p *Platform) handleNodePost(action postAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.lock.Lock()
		defer p.lock.Unlock()

		ps := p.posts[pathParam(r, "id")]
		if ps == nil || !p.canReadPost(currentUser(r), ps) {
			writeWebScriptError(w, http.StatusNotFound, "Could not find post %s", pathParam(r, "id"))
			return
		}
		action(w, r, ps)
	}
}

func (p *Platform) topicOf(ps *post) *post {
	if ps.isTopic() {
		return ps
	}
	return p.posts[ps.topicID]
}

func (p *Platform) canReadPost(userName string, ps *post) bool {
	topic := p.topicOf(ps)
	if topic == nil {
		return false
	}
	if topic.site != "" {
		s := p.sites[topic.site]
		return s != nil && p.siteVisible(s, userName)
	}
	n := p.nodes[topic.nodeID]
	return n != nil && p.canReadNode(userName, n)
}

func (p *Platform) canEditPost(userName string, ps *post) bool {
	if p.isAdmin(userName) || ps.author == userName {
		return true
	}
	if topic := p.topicOf(ps); topic != nil && topic.site != "" {
		if s := p.sites[topic.site]; s != nil {
			return roleRank[p.roleOf(s, userName)] >= roleRank[servicedef.RoleCollaborator]
		}
	}
	return false
}

func (p *Platform) canReplyTo(userName string, ps *post) bool {
	if p.isAdmin(userName) {
		return true
	}
	topic := p.topicOf(ps)
	if topic == nil {
		return false
	}
	if topic.site != "" {
		s := p.sites[topic.site]
		return s != nil && canContribute(p.roleOf(s, userName))
	}
	return p.canReadPost(userName, ps)
}

func (p *Platform) postURL(ps *post) string {
	if ps.isTopic() && ps.site != "" {
		return fmt.Sprintf("/forum/post/site/%s/discussions/%s", ps.site, ps.name)
	}
	return "/forum/post/node/" + servicedef.NodeRefPath(servicedef.NodeRefForID(ps.id))
}

func (p *Platform) totalReplies(ps *post) int {
	n := 0
	for _, id := range ps.replies {
		if reply := p.posts[id]; reply != nil {
			n += 1 + p.totalReplies(reply)
		}
	}
	return n
}

// lastReply returns the most recent reply anywhere below the post.
func (p *Platform) lastReply(ps *post) *post {
	var last *post
	for _, id := range ps.replies {
		reply := p.posts[id]
		if reply == nil {
			continue
		}
		for _, candidate := range []*post{reply, p.lastReply(reply)} {
			if candidate != nil && (last == nil || candidate.seq > last.seq) {
				last = candidate
			}
		}
	}
	return last
}

func (p *Platform) postJSON(ps *post, userName string) jsonObject {
	url := p.postURL(ps)
	canEdit := p.canEditPost(userName, ps)
	item := jsonObject{
		"url":             url,
		"repliesUrl":      url + "/replies",
		"nodeRef":         servicedef.NodeRefForID(ps.id),
		"name":            ps.name,
		"title":           ps.title,
		"content":         ps.content,
		"author":          p.authorJSON(ps.author),
		"createdOn":       formatISO(ps.created),
		"modifiedOn":      formatISO(ps.modified),
		"isUpdated":       ps.updated,
		"isDeleted":       ps.deleted,
		"replyCount":      len(ps.replies),
		"totalReplyCount": p.totalReplies(ps),
		"tags":            []string{},
		"permissions": jsonObject{
			"edit":   canEdit && !ps.deleted,
			"delete": canEdit && !ps.deleted,
			"reply":  p.canReplyTo(userName, ps),
		},
	}
	if ps.updated {
		item["updatedOn"] = formatISO(ps.modified)
	}
	if last := p.lastReply(ps); last != nil {
		item["lastReplyOn"] = formatISO(last.created)
		item["lastReplyBy"] = p.authorJSON(last.author)
	}
	if ps.site != "" {
		item["site"] = ps.site
		item["container"] = "discussions"
	}
	return item
}

func (p *Platform) authorJSON(userName string) jsonObject {
	ret := p.personRef(userName)
	ret["username"] = userName
	delete(ret, "userName")
	return ret
}

func (p *Platform) newPost(parent *post, title, content, author string) *post {
	now := time.Now()
	n := p.nextID()
	ps := &post{
		id:       fmt.Sprintf("post-%d-%d", now.UnixNano(), n),
		title:    title,
		content:  content,
		author:   author,
		created:  now,
		modified: now,
		seq:      n,
	}
	ps.name = ps.id
	if parent != nil {
		ps.parentID = parent.id
		ps.topicID = p.topicOf(parent).id
		parent.replies = append(parent.replies, ps.id)
	}
	p.posts[ps.id] = ps
	return ps
}

func (p *Platform) handleCreateSiteTopic(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	s := p.visibleSite(w, r)
	if s == nil {
		return
	}
	user := currentUser(r)
	if !p.isAdmin(user) && !canContribute(p.roleOf(s, user)) {
		writeWebScriptError(w, http.StatusForbidden, "You do not have permission to create topics in site %s", s.shortName)
		return
	}
	var params servicedef.ForumPostParams
	if err := readJSON(r, &params); err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	ps := p.newPost(nil, params.Title, params.Content, user)
	ps.site = s.shortName
	writeJSON(w, http.StatusOK, jsonObject{"item": p.postJSON(ps, user)})
}

func (p *Platform) handleCreateNodeTopic(w http.ResponseWriter, r *http.Request) {
	p.lock.Lock()
	defer p.lock.Unlock()

	user := currentUser(r)
	n := p.nodeFromStorePath(r)
	if n == nil || !p.canReadNode(user, n) {
		writeWebScriptError(w, http.StatusNotFound, "Could not find node %s", pathParam(r, "id"))
		return
	}
	var params servicedef.ForumPostParams
	if err := readJSON(r, &params); err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	ps := p.newPost(nil, params.Title, params.Content, user)
	ps.nodeID = n.id
	writeJSON(w, http.StatusOK, jsonObject{"item": p.postJSON(ps, user)})
}

func (p *Platform) getPost(w http.ResponseWriter, r *http.Request, ps *post) {
	writeJSON(w, http.StatusOK, jsonObject{"item": p.postJSON(ps, currentUser(r))})
}

func (p *Platform) updatePost(w http.ResponseWriter, r *http.Request, ps *post) {
	user := currentUser(r)
	if ps.deleted || !p.canEditPost(user, ps) {
		writeWebScriptError(w, http.StatusForbidden, "You do not have permission to update post %s", ps.name)
		return
	}
	var params servicedef.ForumPostParams
	if err := readJSON(r, &params); err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	if params.Title != "" {
		ps.title = params.Title
	}
	ps.content = params.Content
	ps.modified = time.Now()
	ps.updated = true
	writeJSON(w, http.StatusOK, jsonObject{"item": p.postJSON(ps, user)})
}

// deletePost removes a topic with all of its replies. A reply is only blanked out, so that
// the replies below it stay in place.
func (p *Platform) deletePost(w http.ResponseWriter, r *http.Request, ps *post) {
	user := currentUser(r)
	if ps.deleted || !p.canEditPost(user, ps) {
		writeWebScriptError(w, http.StatusForbidden, "You do not have permission to delete post %s", ps.name)
		return
	}
	if ps.isTopic() {
		p.deletePostTree(ps)
	} else {
		ps.title = servicedef.DeletedPlaceholder
		ps.content = servicedef.DeletedPlaceholder
		ps.deleted = true
		ps.modified = time.Now()
	}
	writeJSON(w, http.StatusOK, jsonObject{"message": "Node " + servicedef.NodeRefForID(ps.id) + " deleted"})
}

func (p *Platform) deletePostTree(ps *post) {
	if ps == nil {
		return
	}
	for _, id := range ps.replies {
		p.deletePostTree(p.posts[id])
	}
	delete(p.posts, ps.id)
}

func (p *Platform) replyTreeJSON(ps *post, userName string) []jsonObject {
	items := []jsonObject{}
	for _, id := range ps.replies {
		reply := p.posts[id]
		if reply == nil {
			continue
		}
		item := p.postJSON(reply, userName)
		children := p.replyTreeJSON(reply, userName)
		item["children"] = children
		item["childCount"] = len(children)
		items = append(items, item)
	}
	return items
}

func (p *Platform) listReplies(w http.ResponseWriter, r *http.Request, ps *post) {
	writeJSON(w, http.StatusOK, jsonObject{"items": p.replyTreeJSON(ps, currentUser(r))})
}

func (p *Platform) createReply(w http.ResponseWriter, r *http.Request, ps *post) {
	user := currentUser(r)
	if !p.canReplyTo(user, ps) {
		writeWebScriptError(w, http.StatusForbidden, "You do not have permission to reply to post %s", ps.name)
		return
	}
	var params servicedef.ForumPostParams
	if err := readJSON(r, &params); err != nil {
		writeWebScriptError(w, http.StatusBadRequest, "Invalid request body: %s", err)
		return
	}
	reply := p.newPost(ps, params.Title, params.Content, user)
	writeJSON(w, http.StatusOK, jsonObject{"item": p.postJSON(reply, user)})
}

func (p *Platform) handleListSitePosts(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.lock.Lock()
		defer p.lock.Unlock()

		s := p.visibleSite(w, r)
		if s == nil {
			return
		}
		user := currentUser(r)
		canCreate := p.isAdmin(user) || canContribute(p.roleOf(s, user))
		p.writeTopicList(w, r, kind, canCreate, func(ps *post) bool { return ps.site == s.shortName })
	}
}

func (p *Platform) handleListNodePosts(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.lock.Lock()
		defer p.lock.Unlock()

		n := p.nodeFromStorePath(r)
		if n == nil || !p.canReadNode(currentUser(r), n) {
			writeWebScriptError(w, http.StatusNotFound, "Could not find node %s", pathParam(r, "id"))
			return
		}
		p.writeTopicList(w, r, kind, true, func(ps *post) bool { return ps.nodeID == n.id })
	}
}

// forumPageWindow reads the startIndex/pageSize paging of the forum listings, which otherwise
// behaves like skipCount/maxItems.
func forumPageWindow(r *http.Request) pageWindow {
	pw := pageWindow{
		skipCount: queryInt(r, "startIndex", 0),
		maxItems:  queryInt(r, "pageSize", defaultForumPageSize),
	}
	if pw.skipCount < 0 {
		pw.skipCount = 0
	}
	if pw.maxItems <= 0 {
		pw.maxItems = defaultForumPageSize
	}
	return pw
}

// writeTopicList renders one page of the topics of a forum. Topics are newest first, except
// for "hot", which orders by latest reply.
func (p *Platform) writeTopicList(w http.ResponseWriter, r *http.Request, kind string, canCreate bool, inForum func(*post) bool) {
	user := currentUser(r)
	numDays := queryInt(r, "numdays", defaultNewPostDays)
	var topics []*post
	for _, ps := range p.posts {
		if !ps.isTopic() || !inForum(ps) {
			continue
		}
		switch kind {
		case "hot":
			if len(ps.replies) == 0 {
				continue
			}
		case "myposts":
			if ps.author != user {
				continue
			}
		case "new":
			if time.Since(ps.created) > time.Duration(numDays)*24*time.Hour {
				continue
			}
		}
		topics = append(topics, ps)
	}
	if kind == "hot" {
		sort.Slice(topics, func(i, j int) bool { return p.lastReply(topics[i]).seq > p.lastReply(topics[j]).seq })
	} else {
		sort.Slice(topics, func(i, j int) bool { return topics[i].seq > topics[j].seq })
	}

	pw := forumPageWindow(r)
	start, end := pw.bounds(len(topics))
	items := []jsonObject{}
	for _, ps := range topics[start:end] {
		items = append(items, p.postJSON(ps, user))
	}
	writeJSON(w, http.StatusOK, jsonObject{
		"total":      len(topics),
		"pageSize":   pw.maxItems,
		"startIndex": pw.skipCount,
		"itemCount":  len(items),
		"items":      items,
		"forumPermissions": jsonObject{
			"create": canCreate,
		},
	})
}
