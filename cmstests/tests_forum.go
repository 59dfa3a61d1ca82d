package cmstests

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/contentrepo/webscript-contract-tests/framework/jsontree"
	"github.com/contentrepo/webscript-contract-tests/framework/ldtest"
	"github.com/contentrepo/webscript-contract-tests/framework/restclient"
	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// forumSite is a public site with a member in each role that matters to discussions.
type forumSite struct {
	name         string
	manager      User
	collaborator User
	contributor  User
}

func newForumSite(t *ldtest.T) forumSite {
	f := forumSite{manager: NewUser(t), collaborator: NewUser(t), contributor: NewUser(t)}
	f.name = NewSite(t, f.manager, servicedef.VisibilityPublic)
	AddSiteMember(t, f.name, f.manager, f.collaborator, servicedef.RoleCollaborator)
	AddSiteMember(t, f.name, f.manager, f.contributor, servicedef.RoleContributor)
	return f
}

func topicsPath(site string) string {
	return restclient.Pathf("api/forum/site/%s/discussions/posts", site)
}

func sitePostPath(site, name string) string {
	return restclient.Pathf("api/forum/post/site/%s/discussions/%s", site, name)
}

func nodePostPath(nodeRef string) string {
	return "api/forum/post/node/" + servicedef.NodeRefPath(nodeRef)
}

func createSiteTopic(t *ldtest.T, site string, author User, title string) ldvalue.Value {
	resp := newClient(t).Post(topicsPath(site)).As(author.Creds()).
		JSON(servicedef.ForumPostParams{Title: title, Content: "Content of " + title}).
		ExpectJSON(t, http.StatusOK)
	return jsontree.RequireObject(t, resp, "item")
}

// replyTo replies to a topic or a reply, addressing it by node reference.
func replyTo(t *ldtest.T, post ldvalue.Value, author User, content string) ldvalue.Value {
	nodeRef := jsontree.RequireString(t, post, "nodeRef")
	resp := newClient(t).Post(nodePostPath(nodeRef)+"/replies").As(author.Creds()).
		JSON(servicedef.ForumPostParams{Title: "Re: " + content, Content: content}).
		ExpectJSON(t, http.StatusOK)
	return jsontree.RequireObject(t, resp, "item")
}

func getPost(t *ldtest.T, path string, user User) ldvalue.Value {
	resp := newClient(t).Get(path).As(user.Creds()).ExpectJSON(t, http.StatusOK)
	return jsontree.RequireObject(t, resp, "item")
}

func listTopics(t *ldtest.T, path string, user User, query ...string) ldvalue.Value {
	req := newClient(t).Get(path).As(user.Creds())
	for i := 0; i+1 < len(query); i += 2 {
		req.Query(query[i], query[i+1])
	}
	return req.ExpectJSON(t, http.StatusOK)
}

func requirePermissions(t *ldtest.T, post ldvalue.Value, edit, del, reply bool) {
	assert.Equal(t, edit, jsontree.RequireBool(t, post, "permissions", "edit"), "edit permission")
	assert.Equal(t, del, jsontree.RequireBool(t, post, "permissions", "delete"), "delete permission")
	assert.Equal(t, reply, jsontree.RequireBool(t, post, "permissions", "reply"), "reply permission")
}

func DoForumTests(t *ldtest.T) {
	t.RequireCapability(servicedef.CapabilityForum)

	t.Run("create site topic", func(t *ldtest.T) {
		f := newForumSite(t)
		item := createSiteTopic(t, f.name, f.collaborator, "First topic")

		assert.Equal(t, "First topic", jsontree.RequireString(t, item, "title"))
		assert.Equal(t, "Content of First topic", jsontree.RequireString(t, item, "content"))
		assert.NotEmpty(t, jsontree.RequireString(t, item, "name"))
		assert.True(t, strings.HasPrefix(jsontree.RequireString(t, item, "nodeRef"), servicedef.StoreRefPrefix))
		assert.Equal(t, f.collaborator.UserName, jsontree.RequireString(t, item, "author", "username"))
		assert.Equal(t, 0, jsontree.RequireInt(t, item, "replyCount"))
		assert.False(t, jsontree.RequireBool(t, item, "isUpdated"))
		for _, prop := range []string{"createdOn", "modifiedOn", "url", "repliesUrl"} {
			jsontree.RequireString(t, item, prop)
		}
		requirePermissions(t, item, true, true, true)
	})

	t.Run("consumer cannot create topic", func(t *ldtest.T) {
		f := newForumSite(t)
		consumer := NewUser(t)
		AddSiteMember(t, f.name, f.manager, consumer, servicedef.RoleConsumer)
		newClient(t).Post(topicsPath(f.name)).As(consumer.Creds()).
			JSON(servicedef.ForumPostParams{Title: "x", Content: "y"}).
			Expect(t, http.StatusForbidden)
	})

	t.Run("get topic", func(t *ldtest.T) {
		f := newForumSite(t)
		item := createSiteTopic(t, f.name, f.collaborator, "Readable")
		name := jsontree.RequireString(t, item, "name")

		bySite := getPost(t, sitePostPath(f.name, name), f.collaborator)
		assert.Equal(t, "Readable", jsontree.RequireString(t, bySite, "title"))

		byNode := getPost(t, nodePostPath(jsontree.RequireString(t, item, "nodeRef")), f.collaborator)
		assert.Equal(t, name, jsontree.RequireString(t, byNode, "name"))

		newClient(t).Get(sitePostPath(f.name, "no-such-topic")).As(f.collaborator.Creds()).
			Expect(t, http.StatusNotFound)
	})

	t.Run("update topic", func(t *ldtest.T) {
		f := newForumSite(t)
		item := createSiteTopic(t, f.name, f.collaborator, "Before")
		path := sitePostPath(f.name, jsontree.RequireString(t, item, "name"))

		resp := newClient(t).Put(path).As(f.collaborator.Creds()).
			JSON(servicedef.ForumPostParams{Title: "After", Content: "New content"}).
			ExpectJSON(t, http.StatusOK)
		updated := jsontree.RequireObject(t, resp, "item")
		assert.Equal(t, "After", jsontree.RequireString(t, updated, "title"))
		assert.Equal(t, "New content", jsontree.RequireString(t, updated, "content"))
		assert.True(t, jsontree.RequireBool(t, updated, "isUpdated"))

		t.Run("by node reference", func(t *ldtest.T) {
			nodeRef := jsontree.RequireString(t, item, "nodeRef")
			resp := newClient(t).Put(nodePostPath(nodeRef)).As(f.collaborator.Creds()).
				JSON(servicedef.ForumPostParams{Title: "Again", Content: "Third content"}).
				ExpectJSON(t, http.StatusOK)
			again := jsontree.RequireObject(t, resp, "item")
			assert.Equal(t, jsontree.RequireString(t, item, "name"), jsontree.RequireString(t, again, "name"))
			assert.Equal(t, nodeRef, jsontree.RequireString(t, again, "nodeRef"))
			assert.True(t, jsontree.RequireBool(t, again, "isUpdated"))

			reread := getPost(t, path, f.manager)
			assert.Equal(t, "Again", jsontree.RequireString(t, reread, "title"))
			assert.Equal(t, "Third content", jsontree.RequireString(t, reread, "content"))
			newClient(t).Put(path).As(f.collaborator.Creds()).
				JSON(servicedef.ForumPostParams{Title: "After", Content: "New content"}).
				Expect(t, http.StatusOK)
		})

		t.Run("contributor cannot update another user's topic", func(t *ldtest.T) {
			newClient(t).Put(path).As(f.contributor.Creds()).
				JSON(servicedef.ForumPostParams{Title: "Hijacked", Content: "x"}).
				Expect(t, http.StatusForbidden)
			assert.Equal(t, "After", jsontree.RequireString(t, getPost(t, path, f.manager), "title"))
		})
	})

	t.Run("node topics", func(t *ldtest.T) {
		f := newForumSite(t)
		doc := NewSiteContent(t, f.name, f.collaborator)
		resp := newClient(t).Post("api/forum/node/"+doc.Path()+"/posts").As(f.collaborator.Creds()).
			JSON(servicedef.ForumPostParams{Title: "About the document", Content: "Comments"}).
			ExpectJSON(t, http.StatusOK)
		item := jsontree.RequireObject(t, resp, "item")
		assert.Equal(t, "About the document", jsontree.RequireString(t, item, "title"))

		list := listTopics(t, "api/forum/node/"+doc.Path()+"/posts", f.collaborator)
		assert.Equal(t, 1, jsontree.RequireInt(t, list, "total"))
		assert.Equal(t, []string{"About the document"}, jsontree.Pluck(jsontree.Get(list, "items"), "title"))

		byNode := getPost(t, nodePostPath(jsontree.RequireString(t, item, "nodeRef")), f.contributor)
		assert.Equal(t, "Comments", jsontree.RequireString(t, byNode, "content"))
	})

	t.Run("replies", func(t *ldtest.T) {
		f := newForumSite(t)
		topic := createSiteTopic(t, f.name, f.collaborator, "Discuss")
		reply := replyTo(t, topic, f.contributor, "first reply")
		nested := replyTo(t, reply, f.collaborator, "nested reply")
		assert.Equal(t, "nested reply", jsontree.RequireString(t, nested, "content"))

		path := sitePostPath(f.name, jsontree.RequireString(t, topic, "name"))
		reread := getPost(t, path, f.collaborator)
		assert.Equal(t, 1, jsontree.RequireInt(t, reread, "replyCount"))
		assert.Equal(t, 2, jsontree.RequireInt(t, reread, "totalReplyCount"))

		resp := newClient(t).Get(path+"/replies").As(f.collaborator.Creds()).ExpectJSON(t, http.StatusOK)
		items := jsontree.RequireArray(t, resp, "items")
		require.Len(t, items, 1)
		assert.Equal(t, "first reply", jsontree.RequireString(t, items[0], "content"))
		assert.Equal(t, 1, jsontree.RequireInt(t, items[0], "childCount"))
		assert.Equal(t, []string{"nested reply"}, jsontree.Pluck(jsontree.Get(items[0], "children"), "content"))
	})

	t.Run("contributor can edit own reply", func(t *ldtest.T) {
		f := newForumSite(t)
		topic := createSiteTopic(t, f.name, f.manager, "Can contributors edit replies?")
		reply := replyTo(t, topic, f.contributor, "Let's see.")
		replyPath := nodePostPath(jsontree.RequireString(t, reply, "nodeRef"))
		newClient(t).Put(replyPath).As(f.contributor.Creds()).
			JSON(servicedef.ForumPostParams{Content: "Yes I can"}).
			Expect(t, http.StatusOK)

		topicPath := nodePostPath(jsontree.RequireString(t, topic, "nodeRef"))
		reread := getPost(t, topicPath, f.manager)
		assert.Equal(t, "Can contributors edit replies?", jsontree.RequireString(t, reread, "title"))
		assert.Equal(t, 1, jsontree.RequireInt(t, reread, "replyCount"))
		resp := newClient(t).Get(topicPath+"/replies").As(f.manager.Creds()).ExpectJSON(t, http.StatusOK)
		assert.Equal(t, []string{"Yes I can"}, jsontree.Pluck(jsontree.Get(resp, "items"), "content"))
	})

	t.Run("reply by deleted user is still listed", func(t *ldtest.T) {
		f := newForumSite(t)
		topic := createSiteTopic(t, f.name, f.manager, "Who said that?")
		replier := NewUser(t)
		AddSiteMember(t, f.name, f.manager, replier, servicedef.RoleContributor)
		replyTo(t, topic, replier, "By the other user")

		repliesPath := sitePostPath(f.name, jsontree.RequireString(t, topic, "name")) + "/replies"
		resp := newClient(t).Get(repliesPath).As(f.manager.Creds()).ExpectJSON(t, http.StatusOK)
		require.Len(t, jsontree.RequireArray(t, resp, "items"), 1)

		newClient(t).Delete(restclient.Pathf("api/people/%s", replier.UserName)).As(adminCreds(t)).
			Expect(t, http.StatusOK)

		resp = newClient(t).Get(repliesPath).As(f.manager.Creds()).ExpectJSON(t, http.StatusOK)
		items := jsontree.RequireArray(t, resp, "items")
		require.Len(t, items, 1)
		assert.Equal(t, "By the other user", jsontree.RequireString(t, items[0], "content"))
		assert.Equal(t, replier.UserName, jsontree.RequireString(t, items[0], "author", "username"))
	})

	t.Run("delete", func(t *ldtest.T) {
		f := newForumSite(t)
		topic := createSiteTopic(t, f.name, f.collaborator, "Doomed")
		reply := replyTo(t, topic, f.contributor, "going away")
		replyPath := nodePostPath(jsontree.RequireString(t, reply, "nodeRef"))

		t.Run("reply is blanked out", func(t *ldtest.T) {
			newClient(t).Delete(replyPath).As(f.contributor.Creds()).Expect(t, http.StatusOK)
			deleted := getPost(t, replyPath, f.contributor)
			assert.Equal(t, servicedef.DeletedPlaceholder, jsontree.RequireString(t, deleted, "title"))
			assert.Equal(t, servicedef.DeletedPlaceholder, jsontree.RequireString(t, deleted, "content"))
			assert.True(t, jsontree.RequireBool(t, deleted, "isDeleted"))

			reread := getPost(t, sitePostPath(f.name, jsontree.RequireString(t, topic, "name")), f.collaborator)
			assert.Equal(t, 1, jsontree.RequireInt(t, reread, "replyCount"))
			assert.Equal(t, 1, jsontree.RequireInt(t, reread, "totalReplyCount"))
		})

		t.Run("topic is removed", func(t *ldtest.T) {
			path := sitePostPath(f.name, jsontree.RequireString(t, topic, "name"))
			newClient(t).Delete(path).As(f.collaborator.Creds()).Expect(t, http.StatusOK)
			newClient(t).Get(path).As(f.collaborator.Creds()).Expect(t, http.StatusNotFound)
		})
	})

	t.Run("list topics", func(t *ldtest.T) {
		f := newForumSite(t)
		first := createSiteTopic(t, f.name, f.collaborator, "one")
		createSiteTopic(t, f.name, f.collaborator, "two")
		createSiteTopic(t, f.name, f.collaborator, "three")
		replyTo(t, first, f.contributor, "bump")
		path := topicsPath(f.name)

		t.Run("newest first", func(t *ldtest.T) {
			list := listTopics(t, path, f.collaborator)
			assert.Equal(t, 3, jsontree.RequireInt(t, list, "total"))
			assert.Equal(t, 3, jsontree.RequireInt(t, list, "itemCount"))
			assert.Equal(t, []string{"three", "two", "one"}, jsontree.Pluck(jsontree.Get(list, "items"), "title"))
		})

		t.Run("page size", func(t *ldtest.T) {
			list := listTopics(t, path, f.collaborator, "pageSize", "2")
			assert.Equal(t, 3, jsontree.RequireInt(t, list, "total"))
			assert.Equal(t, 2, jsontree.RequireInt(t, list, "itemCount"))
			assert.Equal(t, 2, jsontree.RequireInt(t, list, "pageSize"))

			next := listTopics(t, path, f.collaborator, "pageSize", "2", "startIndex", "2")
			assert.Equal(t, []string{"one"}, jsontree.Pluck(jsontree.Get(next, "items"), "title"))
		})

		t.Run("hot", func(t *ldtest.T) {
			list := listTopics(t, path+"/hot", f.collaborator)
			assert.Equal(t, []string{"one"}, jsontree.Pluck(jsontree.Get(list, "items"), "title"))
		})

		t.Run("my posts", func(t *ldtest.T) {
			createSiteTopic(t, f.name, f.contributor, "mine")
			list := listTopics(t, path+"/myposts", f.contributor)
			assert.Equal(t, []string{"mine"}, jsontree.Pluck(jsontree.Get(list, "items"), "title"))
		})

		t.Run("new", func(t *ldtest.T) {
			list := listTopics(t, path+"/new", f.collaborator, "numdays", strconv.Itoa(1))
			assert.GreaterOrEqual(t, jsontree.RequireInt(t, list, "total"), 3)
		})
	})

	t.Run("permissions", func(t *ldtest.T) {
		f := newForumSite(t)
		topic := createSiteTopic(t, f.name, f.collaborator, "Guarded")
		path := sitePostPath(f.name, jsontree.RequireString(t, topic, "name"))

		t.Run("contributor can only reply", func(t *ldtest.T) {
			requirePermissions(t, getPost(t, path, f.contributor), false, false, true)
		})

		t.Run("non-member of public site has no permissions", func(t *ldtest.T) {
			requirePermissions(t, getPost(t, path, NewUser(t)), false, false, false)
		})

		t.Run("create permission on topic listing", func(t *ldtest.T) {
			canCreate := func(user restclient.Credentials) bool {
				resp := newClient(t).Get(topicsPath(f.name)).As(user).ExpectJSON(t, http.StatusOK)
				return jsontree.RequireBool(t, resp, "forumPermissions", "create")
			}
			assert.True(t, canCreate(adminCreds(t)), "admin")
			assert.True(t, canCreate(f.manager.Creds()), "manager")
			assert.True(t, canCreate(f.collaborator.Creds()), "collaborator")
			assert.True(t, canCreate(f.contributor.Creds()), "contributor")
			assert.False(t, canCreate(NewUser(t).Creds()), "non-member")

			owned := NewSite(t, f.contributor, servicedef.VisibilityPublic)
			resp := newClient(t).Get(topicsPath(owned)).As(f.contributor.Creds()).ExpectJSON(t, http.StatusOK)
			assert.True(t, jsontree.RequireBool(t, resp, "forumPermissions", "create"), "site creator")
		})

		t.Run("non-member cannot see private site topic", func(t *ldtest.T) {
			owner := NewUser(t)
			private := NewSite(t, owner, servicedef.VisibilityPrivate)
			item := createSiteTopic(t, private, owner, "Secret")
			newClient(t).Get(sitePostPath(private, jsontree.RequireString(t, item, "name"))).
				As(NewUser(t).Creds()).Expect(t, http.StatusNotFound)
		})
	})
}
