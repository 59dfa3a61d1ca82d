package cmstests

import (
	"net/http"
	"strings"

	"github.com/contentrepo/webscript-contract-tests/framework/harness"
	"github.com/contentrepo/webscript-contract-tests/framework/jsontree"
	"github.com/contentrepo/webscript-contract-tests/framework/ldtest"
	"github.com/contentrepo/webscript-contract-tests/framework/paging"
	"github.com/contentrepo/webscript-contract-tests/framework/restclient"
	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// User is a person created for one test. The password is the same as the user name.
type User struct {
	UserName string
}

func (u User) Creds() restclient.Credentials {
	return restclient.Credentials{UserName: u.UserName, Password: u.UserName}
}

// Group is a root group created for one test.
type Group struct {
	ShortName string
}

func (g Group) FullName() string {
	return servicedef.GroupAuthorityPrefix + g.ShortName
}

// Node is a content node or folder created for one test.
type Node struct {
	ID   string
	Name string
}

func (n Node) NodeRef() string {
	return servicedef.NodeRefForID(n.ID)
}

// Path returns the "workspace/SpacesStore/<id>" form used inside web-script URLs.
func (n Node) Path() string {
	return servicedef.NodeRefPath(n.NodeRef())
}

// uniqueName returns a name that no other test run will use.
func uniqueName(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// disposeOnExit deletes a fixture when the test ends. Fixtures that the test already deleted
// are ignored.
func disposeOnExit(t *ldtest.T, description string, dispose *restclient.Request) {
	entity := harness.NewEntity(description, dispose, t.DebugLogger())
	t.Defer(func() {
		if err := entity.Close(); err != nil {
			t.Errorf("%s", err)
		}
	})
}

func NewUser(t *ldtest.T) User {
	c := newClient(t)
	u := User{UserName: uniqueName("user")}
	c.Post("api/people").As(adminCreds(t)).Retry().JSON(servicedef.CreatePersonParams{
		UserName:  u.UserName,
		FirstName: "First " + u.UserName,
		LastName:  "Last " + u.UserName,
		Email:     u.UserName + "@example.com",
		Password:  u.UserName,
	}).Expect(t, http.StatusOK)
	disposeOnExit(t, "user "+u.UserName,
		c.Delete(restclient.Pathf("api/people/%s", u.UserName)).As(adminCreds(t)))
	return u
}

// NewSite creates a site owned by the specified user, who becomes its manager.
func NewSite(t *ldtest.T, owner User, visibility string) string {
	return NewSiteNamed(t, owner, uniqueName("site"), visibility)
}

// NewSiteNamed is like NewSite, but lets the test pick the short name.
func NewSiteNamed(t *ldtest.T, owner User, shortName, visibility string) string {
	c := newClient(t)
	c.Post("api/sites").As(owner.Creds()).Retry().JSON(servicedef.CreateSiteParams{
		SitePreset:  servicedef.DefaultSitePreset,
		ShortName:   shortName,
		Title:       "Site " + shortName,
		Description: "Description of " + shortName,
		Visibility:  visibility,
	}).Expect(t, http.StatusOK)
	disposeOnExit(t, "site "+shortName,
		c.Delete(restclient.Pathf("api/sites/%s", shortName)).As(adminCreds(t)))
	return shortName
}

func AddSiteMember(t *ldtest.T, site string, manager, user User, role string) {
	newClient(t).Post(restclient.Pathf("api/sites/%s/memberships", site)).As(manager.Creds()).Retry().
		JSON(servicedef.MembershipParams{Role: role, Person: &servicedef.MembershipPerson{UserName: user.UserName}}).
		Expect(t, http.StatusOK)
}

func NewGroup(t *ldtest.T) Group {
	c := newClient(t)
	g := Group{ShortName: uniqueName("group")}
	c.Post(restclient.Pathf("api/rootgroups/%s", g.ShortName)).As(adminCreds(t)).Retry().
		JSON(servicedef.CreateGroupParams{DisplayName: g.ShortName}).
		Expect(t, http.StatusCreated)
	disposeOnExit(t, "group "+g.ShortName,
		c.Delete(restclient.Pathf("api/rootgroups/%s", g.ShortName)).As(adminCreds(t)))
	return g
}

func AddGroupMember(t *ldtest.T, g Group, user User) {
	newClient(t).Post(restclient.Pathf("api/groups/%s/children/%s", g.ShortName, user.UserName)).
		As(adminCreds(t)).Retry().Expect(t, http.StatusCreated)
}

func RemoveGroupMember(t *ldtest.T, g Group, user User) {
	newClient(t).Delete(restclient.Pathf("api/groups/%s/children/%s", g.ShortName, user.UserName)).
		As(adminCreds(t)).Retry().Expect(t, http.StatusOK)
}

// NewNode creates a content node or folder through the core API. The parent may be the
// "-my-" alias.
func NewNode(t *ldtest.T, owner User, parentID, name string, folder bool) Node {
	c := newClient(t)
	nodeType := servicedef.NodeTypeContent
	if folder {
		nodeType = servicedef.NodeTypeFolder
	}
	resp := c.Post(restclient.Pathf("nodes/%s/children", parentID)).On(restclient.Core).As(owner.Creds()).Retry().
		JSON(servicedef.CreateNodeParams{Name: name, NodeType: nodeType}).
		ExpectJSON(t, http.StatusCreated)
	n := Node{ID: jsontree.RequireString(t, resp, "entry", "id"), Name: name}
	disposeOnExit(t, "node "+n.ID,
		c.Delete(restclient.Pathf("nodes/%s", n.ID)).On(restclient.Core).Query("permanent", "true").As(adminCreds(t)))
	return n
}

// SiteDocumentLibrary returns the id of a site's document library folder.
func SiteDocumentLibrary(t *ldtest.T, site string, user User) string {
	resp := newClient(t).Get(restclient.Pathf("sites/%s/containers/documentLibrary", site)).
		On(restclient.Core).As(user.Creds()).Retry().
		ExpectJSON(t, http.StatusOK)
	return jsontree.RequireString(t, resp, "entry", "id")
}

// NewSiteContent creates a content node in a site's document library.
func NewSiteContent(t *ldtest.T, site string, user User) Node {
	return NewNode(t, user, SiteDocumentLibrary(t, site, user), uniqueName("doc")+".txt", false)
}

// StartAdhocProcess starts an ad hoc workflow that assigns a task to the assignee. The
// process is deleted when the test ends unless it has already finished.
func StartAdhocProcess(t *ldtest.T, initiator, assignee User, items ...Node) paging.ProcessInfo {
	return StartAdhocProcessWithKey(t, initiator, assignee, "", items...)
}

// StartAdhocProcessWithKey is like StartAdhocProcess, but also sets the business key.
func StartAdhocProcessWithKey(t *ldtest.T, initiator, assignee User, businessKey string, items ...Node) paging.ProcessInfo {
	c := newClient(t)
	refs := make([]string, 0, len(items))
	for _, n := range items {
		refs = append(refs, n.NodeRef())
	}
	resp := c.Post("processes").On(restclient.Workflow).As(initiator.Creds()).Retry().
		JSON(servicedef.StartProcessParams{
			ProcessDefinitionKey: servicedef.AdhocProcessKey,
			BusinessKey:          businessKey,
			Variables: map[string]interface{}{
				"bpm_assignee":            assignee.UserName,
				"bpm_workflowDescription": "Task for " + assignee.UserName,
			},
			Items: refs,
		}).
		ExpectJSON(t, http.StatusCreated)
	process, err := paging.ProcessesParser.ParseSingle(resp)
	require.NoError(t, err)
	disposeOnExit(t, "process "+process.ID,
		c.Delete(restclient.Pathf("processes/%s", process.ID)).On(restclient.Workflow).As(initiator.Creds()))
	return process
}
