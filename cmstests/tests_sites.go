package cmstests

import (
	"context"
	"net/http"

	"github.com/contentrepo/webscript-contract-tests/framework/jsontree"
	"github.com/contentrepo/webscript-contract-tests/framework/ldtest"
	"github.com/contentrepo/webscript-contract-tests/framework/paging"
	"github.com/contentrepo/webscript-contract-tests/framework/restclient"
	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func sitePath(site string) string {
	return restclient.Pathf("api/sites/%s", site)
}

func membershipsPath(site string) string {
	return restclient.Pathf("api/sites/%s/memberships", site)
}

func membershipPath(site, authority string) string {
	return restclient.Pathf("api/sites/%s/memberships/%s", site, authority)
}

func invitationsPath(site string) string {
	return restclient.Pathf("api/sites/%s/invitations", site)
}

func getSite(t *ldtest.T, site string, user User) ldvalue.Value {
	return newClient(t).Get(sitePath(site)).As(user.Creds()).ExpectJSON(t, http.StatusOK)
}

func DoSiteTests(t *ldtest.T) {
	t.RequireCapability(servicedef.CapabilitySites)

	t.Run("create", doSiteCreateTests)
	t.Run("visibility", doSiteVisibilityTests)
	t.Run("update and delete", doSiteUpdateTests)
	t.Run("list and query", doSiteListTests)
	t.Run("memberships", doSiteMembershipTests)
	t.Run("invitations", doSiteInvitationTests)
	t.Run("admin sites", doAdminSiteTests)
}

func doSiteCreateTests(t *ldtest.T) {
	owner := NewUser(t)
	site := NewSite(t, owner, servicedef.VisibilityPublic)

	t.Run("properties", func(t *ldtest.T) {
		data := getSite(t, site, owner)
		assert.Equal(t, site, jsontree.RequireString(t, data, "shortName"))
		assert.Equal(t, "Site "+site, jsontree.RequireString(t, data, "title"))
		assert.Equal(t, "Description of "+site, jsontree.RequireString(t, data, "description"))
		assert.Equal(t, servicedef.DefaultSitePreset, jsontree.RequireString(t, data, "sitePreset"))
		assert.Equal(t, servicedef.VisibilityPublic, jsontree.RequireString(t, data, "visibility"))
		assert.True(t, jsontree.RequireBool(t, data, "isPublic"))
		assert.Equal(t, []string{owner.UserName}, jsontree.Strings(jsontree.Get(data, "siteManagers")))
		for _, prop := range []string{"url", "node", "tagScope"} {
			jsontree.RequireString(t, data, prop)
		}
	})

	t.Run("creator is manager", func(t *ldtest.T) {
		resp := newClient(t).Get(membershipPath(site, owner.UserName)).As(owner.Creds()).
			ExpectJSON(t, http.StatusOK)
		assert.Equal(t, servicedef.RoleManager, jsontree.RequireString(t, resp, "role"))
		assert.Equal(t, owner.UserName, jsontree.RequireString(t, resp, "authority", "userName"))
	})

	t.Run("document library", func(t *ldtest.T) {
		assert.NotEmpty(t, SiteDocumentLibrary(t, site, owner))
	})

	t.Run("duplicate short name", func(t *ldtest.T) {
		newClient(t).Post("api/sites").As(owner.Creds()).JSON(servicedef.CreateSiteParams{
			SitePreset: servicedef.DefaultSitePreset,
			ShortName:  site,
			Title:      "again",
			Visibility: servicedef.VisibilityPublic,
		}).Expect(t, http.StatusBadRequest)
	})

	t.Run("missing preset", func(t *ldtest.T) {
		newClient(t).Post("api/sites").As(owner.Creds()).JSON(servicedef.CreateSiteParams{
			ShortName:  uniqueName("site"),
			Visibility: servicedef.VisibilityPublic,
		}).Expect(t, http.StatusBadRequest)
	})

	t.Run("custom properties", func(t *ldtest.T) {
		data := getSite(t, site, owner)
		custom := jsontree.Get(data, "customProperties")
		require.Equal(t, ldvalue.ObjectType, custom.Type(), "customProperties should be an object")
		assert.Empty(t, jsontree.Keys(custom))
	})

	t.Run("unknown site", func(t *ldtest.T) {
		newClient(t).Get(sitePath(uniqueName("missing"))).As(owner.Creds()).Expect(t, http.StatusNotFound)
	})
}

func doSiteVisibilityTests(t *ldtest.T) {
	owner := NewUser(t)
	outsider := NewUser(t)

	for _, visibility := range []string{servicedef.VisibilityPublic, servicedef.VisibilityModerated} {
		visibility := visibility
		t.Run(visibility+" site is visible to non-members", func(t *ldtest.T) {
			site := NewSite(t, owner, visibility)
			data := getSite(t, site, outsider)
			assert.Equal(t, visibility, jsontree.RequireString(t, data, "visibility"))
			assert.Equal(t, visibility == servicedef.VisibilityPublic, jsontree.RequireBool(t, data, "isPublic"))
		})
	}

	t.Run("private site", func(t *ldtest.T) {
		site := NewSite(t, owner, servicedef.VisibilityPrivate)
		newClient(t).Get(sitePath(site)).As(outsider.Creds()).Expect(t, http.StatusNotFound)
		getSite(t, site, owner)
		newClient(t).Get(sitePath(site)).As(adminCreds(t)).Expect(t, http.StatusOK)

		t.Run("visible through group membership", func(t *ldtest.T) {
			member := NewUser(t)
			g := NewGroup(t)
			AddGroupMember(t, g, member)
			newClient(t).Post(membershipsPath(site)).As(owner.Creds()).
				JSON(servicedef.MembershipParams{Role: servicedef.RoleConsumer, Group: &servicedef.MembershipGroup{FullName: g.FullName()}}).
				Expect(t, http.StatusOK)
			getSite(t, site, member)
		})
	})
}

func doSiteUpdateTests(t *ldtest.T) {
	owner := NewUser(t)
	site := NewSite(t, owner, servicedef.VisibilityPublic)
	collaborator := NewUser(t)
	AddSiteMember(t, site, owner, collaborator, servicedef.RoleCollaborator)

	t.Run("manager can update", func(t *ldtest.T) {
		data := newClient(t).Put(sitePath(site)).As(owner.Creds()).
			JSON(servicedef.UpdateSiteParams{Title: "Renamed", Visibility: servicedef.VisibilityModerated}).
			ExpectJSON(t, http.StatusOK)
		assert.Equal(t, "Renamed", jsontree.RequireString(t, data, "title"))
		assert.Equal(t, "Description of "+site, jsontree.RequireString(t, data, "description"))
		assert.Equal(t, servicedef.VisibilityModerated, jsontree.RequireString(t, data, "visibility"))
		assert.False(t, jsontree.RequireBool(t, data, "isPublic"))
	})

	t.Run("collaborator cannot update", func(t *ldtest.T) {
		newClient(t).Put(sitePath(site)).As(collaborator.Creds()).
			JSON(servicedef.UpdateSiteParams{Title: "Nope"}).
			Expect(t, http.StatusForbidden)
	})

	t.Run("delete", func(t *ldtest.T) {
		doomed := NewSite(t, owner, servicedef.VisibilityPublic)
		AddSiteMember(t, doomed, owner, collaborator, servicedef.RoleCollaborator)
		newClient(t).Delete(sitePath(doomed)).As(collaborator.Creds()).Expect(t, http.StatusForbidden)
		newClient(t).Delete(sitePath(doomed)).As(owner.Creds()).Expect(t, http.StatusOK)
		newClient(t).Get(sitePath(doomed)).As(owner.Creds()).Expect(t, http.StatusNotFound)
	})
}

func doSiteListTests(t *ldtest.T) {
	owner := NewUser(t)
	public := NewSite(t, owner, servicedef.VisibilityPublic)
	private := NewSite(t, owner, servicedef.VisibilityPrivate)
	outsider := NewUser(t)

	listNames := func(t *ldtest.T, user User, query ...string) []string {
		req := newClient(t).Get("api/sites").As(user.Creds())
		for i := 0; i+1 < len(query); i += 2 {
			req.Query(query[i], query[i+1])
		}
		return jsontree.Pluck(req.ExpectJSON(t, http.StatusOK), "shortName")
	}

	t.Run("name filter", func(t *ldtest.T) {
		assert.Equal(t, []string{public}, listNames(t, outsider, "nf", public))
		assert.Equal(t, []string{private}, listNames(t, owner, "nf", private))
	})

	t.Run("private sites are hidden from non-members", func(t *ldtest.T) {
		assert.Empty(t, listNames(t, outsider, "nf", private))
	})

	t.Run("size", func(t *ldtest.T) {
		assert.Len(t, listNames(t, owner, "size", "1"), 1)
	})

	t.Run("preset filter", func(t *ldtest.T) {
		assert.Equal(t, []string{public}, listNames(t, owner, "nf", public, "spf", servicedef.DefaultSitePreset))
		assert.Empty(t, listNames(t, owner, "nf", public, "spf", "no-such-preset"))
	})

	t.Run("query by short name", func(t *ldtest.T) {
		resp := newClient(t).Post("api/sites/query").As(outsider.Creds()).
			JSON(servicedef.SiteQueryParams{ShortName: servicedef.ShortNameQuery{Match: "exact", Values: []string{public, private}}}).
			ExpectJSON(t, http.StatusOK)
		assert.Equal(t, []string{public}, jsontree.Pluck(resp, "shortName"))
	})

	t.Run("sites of a person", func(t *ldtest.T) {
		path := restclient.Pathf("api/people/%s/sites", owner.UserName)
		resp := newClient(t).Get(path).As(owner.Creds()).ExpectJSON(t, http.StatusOK)
		assert.ElementsMatch(t, []string{public, private}, jsontree.Pluck(resp, "shortName"))

		resp = newClient(t).Get(path).As(outsider.Creds()).ExpectJSON(t, http.StatusOK)
		assert.Equal(t, []string{public}, jsontree.Pluck(resp, "shortName"))

		resp = newClient(t).Get(path).Query("size", "1").As(owner.Creds()).ExpectJSON(t, http.StatusOK)
		assert.Len(t, jsontree.Items(resp), 1)
	})
}

func doSiteMembershipTests(t *ldtest.T) {
	owner := NewUser(t)
	site := NewSite(t, owner, servicedef.VisibilityPublic)
	member := NewUser(t)
	c := newClient(t)

	t.Run("add person", func(t *ldtest.T) {
		resp := c.Post(membershipsPath(site)).As(owner.Creds()).
			JSON(servicedef.MembershipParams{Role: servicedef.RoleConsumer, Person: &servicedef.MembershipPerson{UserName: member.UserName}}).
			ExpectJSON(t, http.StatusOK)
		assert.Equal(t, servicedef.RoleConsumer, jsontree.RequireString(t, resp, "role"))
		assert.Equal(t, "USER", jsontree.RequireString(t, resp, "authority", "authorityType"))
		assert.Equal(t, member.UserName, jsontree.RequireString(t, resp, "authority", "userName"))
	})

	t.Run("change role", func(t *ldtest.T) {
		c.Put(membershipsPath(site)).As(owner.Creds()).
			JSON(servicedef.MembershipParams{Role: servicedef.RoleCollaborator, Person: &servicedef.MembershipPerson{UserName: member.UserName}}).
			Expect(t, http.StatusOK)
		resp := c.Get(membershipPath(site, member.UserName)).As(owner.Creds()).ExpectJSON(t, http.StatusOK)
		assert.Equal(t, servicedef.RoleCollaborator, jsontree.RequireString(t, resp, "role"))
	})

	t.Run("change role of non-member", func(t *ldtest.T) {
		c.Put(membershipsPath(site)).As(owner.Creds()).
			JSON(servicedef.MembershipParams{Role: servicedef.RoleConsumer, Person: &servicedef.MembershipPerson{UserName: NewUser(t).UserName}}).
			Expect(t, http.StatusNotFound)
	})

	t.Run("add group", func(t *ldtest.T) {
		g := NewGroup(t)
		resp := c.Post(membershipsPath(site)).As(owner.Creds()).
			JSON(servicedef.MembershipParams{Role: servicedef.RoleContributor, Group: &servicedef.MembershipGroup{FullName: g.FullName()}}).
			ExpectJSON(t, http.StatusOK)
		assert.Equal(t, "GROUP", jsontree.RequireString(t, resp, "authority", "authorityType"))
		assert.Equal(t, g.FullName(), jsontree.RequireString(t, resp, "authority", "fullName"))

		groups := c.Get(membershipsPath(site)).Query("authorityType", "GROUP").As(owner.Creds()).
			ExpectJSON(t, http.StatusOK)
		assert.Equal(t, []string{g.FullName()}, jsontree.Pluck(groups, "authority", "fullName"))
	})

	t.Run("list with role filter", func(t *ldtest.T) {
		resp := c.Get(membershipsPath(site)).Query("rf", servicedef.RoleManager).As(member.Creds()).
			ExpectJSON(t, http.StatusOK)
		assert.Equal(t, []string{owner.UserName}, jsontree.Pluck(resp, "authority", "userName"))
	})

	t.Run("invalid requests", func(t *ldtest.T) {
		c.Post(membershipsPath(site)).As(owner.Creds()).
			JSON(servicedef.MembershipParams{Role: "NoSuchRole", Person: &servicedef.MembershipPerson{UserName: member.UserName}}).
			Expect(t, http.StatusBadRequest)
		c.Post(membershipsPath(site)).As(owner.Creds()).
			JSON(servicedef.MembershipParams{Role: servicedef.RoleConsumer, Person: &servicedef.MembershipPerson{UserName: uniqueName("ghost")}}).
			Expect(t, http.StatusNotFound)
		c.Post(membershipsPath(site)).As(member.Creds()).
			JSON(servicedef.MembershipParams{Role: servicedef.RoleManager, Person: &servicedef.MembershipPerson{UserName: member.UserName}}).
			Expect(t, http.StatusForbidden)
		c.Get(membershipPath(site, uniqueName("ghost"))).As(owner.Creds()).Expect(t, http.StatusNotFound)
	})

	t.Run("remove", func(t *ldtest.T) {
		leaver := NewUser(t)
		AddSiteMember(t, site, owner, leaver, servicedef.RoleConsumer)
		c.Delete(membershipPath(site, member.UserName)).As(leaver.Creds()).Expect(t, http.StatusForbidden)
		c.Delete(membershipPath(site, leaver.UserName)).As(leaver.Creds()).Expect(t, http.StatusOK)
		c.Get(membershipPath(site, leaver.UserName)).As(owner.Creds()).Expect(t, http.StatusNotFound)
	})

	t.Run("last manager cannot leave", func(t *ldtest.T) {
		c.Delete(membershipPath(site, owner.UserName)).As(owner.Creds()).Expect(t, http.StatusBadRequest)
	})

	t.Run("potential members", func(t *ldtest.T) {
		candidate := NewUser(t)
		g := NewGroup(t)
		potential := func(t *ldtest.T, filter, authorityType string) ldvalue.Value {
			req := c.Get(restclient.Pathf("api/sites/%s/potentialmembers", site)).As(owner.Creds()).
				Query("filter", filter).Query("maxResults", "10")
			if authorityType != "" {
				req.Query("authorityType", authorityType)
			}
			resp := req.ExpectJSON(t, http.StatusOK)
			require.Equal(t, ldvalue.ArrayType, jsontree.Get(resp, "people").Type(), "people should be an array")
			require.Equal(t, ldvalue.ArrayType, jsontree.Get(resp, "data").Type(), "data should be an array")
			return resp
		}

		resp := potential(t, candidate.UserName, "USER")
		assert.Equal(t, []string{candidate.UserName}, jsontree.Pluck(jsontree.Get(resp, "people"), "userName"))
		assert.Empty(t, jsontree.Items(jsontree.Get(resp, "data")))

		resp = potential(t, owner.UserName, "USER")
		assert.Empty(t, jsontree.Items(jsontree.Get(resp, "people")), "existing members are not potential members")

		resp = potential(t, g.ShortName, "GROUP")
		assert.Equal(t, []string{g.FullName()}, jsontree.Pluck(jsontree.Get(resp, "data"), "fullName"))
		assert.Empty(t, jsontree.Items(jsontree.Get(resp, "people")))

		resp = potential(t, "", "GROUP")
		assert.LessOrEqual(t, len(jsontree.Items(jsontree.Get(resp, "data"))), 10)
	})
}

func doSiteInvitationTests(t *ldtest.T) {
	owner := NewUser(t)
	site := NewSite(t, owner, servicedef.VisibilityModerated)
	requester := NewUser(t)
	c := newClient(t)

	params := servicedef.InvitationParams{
		InvitationType:  servicedef.InvitationModerated,
		InviteeUserName: requester.UserName,
		InviteeRoleName: servicedef.RoleConsumer,
		InviteeComments: "please let me in",
	}
	resp := c.Post(invitationsPath(site)).As(requester.Creds()).JSON(params).ExpectJSON(t, http.StatusCreated)
	inviteID := jsontree.RequireString(t, resp, "data", "inviteId")
	invitePath := restclient.Pathf("api/sites/%s/invitations/%s", site, inviteID)

	t.Run("properties", func(t *ldtest.T) {
		data := jsontree.RequireObject(t, resp, "data")
		assert.Equal(t, servicedef.InvitationModerated, jsontree.RequireString(t, data, "invitationType"))
		assert.Equal(t, site, jsontree.RequireString(t, data, "resourceName"))
		assert.Equal(t, requester.UserName, jsontree.RequireString(t, data, "inviteeUserName"))
		assert.Equal(t, servicedef.RoleConsumer, jsontree.RequireString(t, data, "inviteeRoleName"))
		assert.Equal(t, "please let me in", jsontree.RequireString(t, data, "inviteeComments"))
	})

	t.Run("manager sees pending invitation", func(t *ldtest.T) {
		list := c.Get(invitationsPath(site)).As(owner.Creds()).ExpectJSON(t, http.StatusOK)
		assert.Equal(t, []string{inviteID}, jsontree.Pluck(jsontree.Get(list, "data"), "inviteId"))

		got := c.Get(invitePath).As(owner.Creds()).ExpectJSON(t, http.StatusOK)
		assert.Equal(t, requester.UserName, jsontree.RequireString(t, got, "data", "inviteeUserName"))
	})

	t.Run("other users do not see it", func(t *ldtest.T) {
		other := NewUser(t)
		list := c.Get(invitationsPath(site)).As(other.Creds()).ExpectJSON(t, http.StatusOK)
		assert.Empty(t, jsontree.Items(jsontree.Get(list, "data")))
		c.Get(invitePath).As(other.Creds()).Expect(t, http.StatusNotFound)
	})

	t.Run("cannot request on behalf of another user", func(t *ldtest.T) {
		other := NewUser(t)
		p := params
		p.InviteeUserName = NewUser(t).UserName
		c.Post(invitationsPath(site)).As(other.Creds()).JSON(p).Expect(t, http.StatusForbidden)
	})

	t.Run("only on moderated sites", func(t *ldtest.T) {
		public := NewSite(t, owner, servicedef.VisibilityPublic)
		c.Post(invitationsPath(public)).As(requester.Creds()).JSON(params).Expect(t, http.StatusBadRequest)
	})

	t.Run("existing member", func(t *ldtest.T) {
		p := params
		p.InviteeUserName = owner.UserName
		c.Post(invitationsPath(site)).As(owner.Creds()).JSON(p).Expect(t, http.StatusBadRequest)
	})

	t.Run("second request while one is pending", func(t *ldtest.T) {
		resp, err := c.Post(invitationsPath(site)).As(requester.Creds()).JSON(params).Send(context.Background())
		require.NoError(t, err)
		assert.False(t, resp.IsSuccess(), "duplicate request returned status %d", resp.StatusCode)
		list := c.Get(invitationsPath(site)).As(owner.Creds()).ExpectJSON(t, http.StatusOK)
		assert.Equal(t, []string{inviteID}, jsontree.Pluck(jsontree.Get(list, "data"), "inviteId"))
	})

	t.Run("cancel", func(t *ldtest.T) {
		cancelled := c.Delete(invitePath).As(requester.Creds()).ExpectJSON(t, http.StatusOK)
		assert.Equal(t, inviteID, jsontree.RequireString(t, cancelled, "data", "inviteId"))
		c.Get(invitePath).As(owner.Creds()).Expect(t, http.StatusNotFound)
	})
}

func doAdminSiteTests(t *ldtest.T) {
	t.RequireCapability(servicedef.CapabilityAdminSites)

	owner := NewUser(t)
	site := NewSite(t, owner, servicedef.VisibilityPrivate)

	listAdminSites := func(t *ldtest.T, creds restclient.Credentials) paging.ListResponse[ldvalue.Value] {
		resp := newClient(t).Get("api/admin-sites").Query("nf", site).As(creds).ExpectJSON(t, http.StatusOK)
		list, err := paging.RawParser.ParseList(resp)
		require.NoError(t, err)
		return list
	}

	t.Run("administrator sees private sites", func(t *ldtest.T) {
		list := listAdminSites(t, adminCreds(t))
		require.Len(t, list.Entries, 1)
		assert.Equal(t, site, jsontree.RequireString(t, list.Entries[0], "shortName"))
		assert.Equal(t, site, jsontree.RequireString(t, list.Entries[0], "id"))
		assert.Equal(t, servicedef.VisibilityPrivate, jsontree.RequireString(t, list.Entries[0], "visibility"))
		assert.Equal(t, 1, list.Paging.Count)
		assert.Equal(t, ldvalue.NewOptionalInt(1), list.Paging.TotalItems)
	})

	t.Run("site administrators group", func(t *ldtest.T) {
		siteAdmin := NewUser(t)
		AddGroupMember(t, Group{ShortName: servicedef.SiteAdministratorsGroup}, siteAdmin)
		list := listAdminSites(t, siteAdmin.Creds())
		assert.Equal(t, []string{site}, jsontree.Pluck(ldvalue.ArrayOf(list.Entries...), "shortName"))
	})

	t.Run("other users get not found", func(t *ldtest.T) {
		newClient(t).Get("api/admin-sites").As(owner.Creds()).Expect(t, http.StatusNotFound)
	})

	t.Run("paging", func(t *ldtest.T) {
		prefix := uniqueName("paged")
		first := NewSiteNamed(t, owner, prefix+"-a", servicedef.VisibilityPrivate)
		second := NewSiteNamed(t, owner, prefix+"-b", servicedef.VisibilityPrivate)

		page := func(t *ldtest.T, skipCount string) paging.ListResponse[ldvalue.Value] {
			resp := newClient(t).Get("api/admin-sites").As(adminCreds(t)).
				Query("nf", prefix).Query("maxItems", "1").Query("skipCount", skipCount).
				ExpectJSON(t, http.StatusOK)
			list, err := paging.RawParser.ParseList(resp)
			require.NoError(t, err)
			return list
		}

		list := page(t, "0")
		assert.Equal(t, []string{first}, jsontree.Pluck(ldvalue.ArrayOf(list.Entries...), "shortName"))
		assert.Equal(t, 1, list.Paging.Count)
		assert.Equal(t, 0, list.Paging.SkipCount)
		assert.Equal(t, 1, list.Paging.MaxItems)
		assert.True(t, list.Paging.HasMoreItems)
		assert.Equal(t, ldvalue.NewOptionalInt(2), list.Paging.TotalItems)

		list = page(t, "1")
		assert.Equal(t, []string{second}, jsontree.Pluck(ldvalue.ArrayOf(list.Entries...), "shortName"))
		assert.Equal(t, 1, list.Paging.Count)
		assert.Equal(t, 1, list.Paging.SkipCount)
		assert.False(t, list.Paging.HasMoreItems)

		list = page(t, "2")
		assert.Empty(t, list.Entries)
		assert.Equal(t, 0, list.Paging.Count)
		assert.False(t, list.Paging.HasMoreItems)
	})

	t.Run("site administrator", doSiteAdministratorTests)
}

// doSiteAdministratorTests checks that members of the site administrators group can manage
// sites they do not belong to, and lose that right when they leave the group.
func doSiteAdministratorTests(t *ldtest.T) {
	owner := NewUser(t)
	outsider := NewUser(t)
	member := NewUser(t)
	siteAdmin := NewUser(t)
	siteAdmins := Group{ShortName: servicedef.SiteAdministratorsGroup}
	AddGroupMember(t, siteAdmins, siteAdmin)
	site := NewSite(t, owner, servicedef.VisibilityPublic)
	AddSiteMember(t, site, owner, member, servicedef.RoleConsumer)
	c := newClient(t)

	t.Run("change visibility", func(t *ldtest.T) {
		c.Put(sitePath(site)).As(outsider.Creds()).
			JSON(servicedef.UpdateSiteParams{Visibility: servicedef.VisibilityPrivate}).
			Expect(t, http.StatusForbidden)
		assert.Equal(t, servicedef.VisibilityPublic, jsontree.RequireString(t, getSite(t, site, owner), "visibility"))

		for _, visibility := range []string{servicedef.VisibilityPrivate, servicedef.VisibilityModerated} {
			data := c.Put(sitePath(site)).As(siteAdmin.Creds()).
				JSON(servicedef.UpdateSiteParams{Visibility: visibility}).
				ExpectJSON(t, http.StatusOK)
			assert.Equal(t, visibility, jsontree.RequireString(t, data, "visibility"))
		}
	})

	t.Run("change membership role", func(t *ldtest.T) {
		params := servicedef.MembershipParams{
			Role:   servicedef.RoleCollaborator,
			Person: &servicedef.MembershipPerson{UserName: member.UserName},
		}
		c.Put(membershipsPath(site)).As(outsider.Creds()).JSON(params).Expect(t, http.StatusForbidden)
		resp := c.Get(membershipPath(site, member.UserName)).As(owner.Creds()).ExpectJSON(t, http.StatusOK)
		assert.Equal(t, servicedef.RoleConsumer, jsontree.RequireString(t, resp, "role"))

		resp = c.Put(membershipsPath(site)).As(siteAdmin.Creds()).JSON(params).ExpectJSON(t, http.StatusOK)
		assert.Equal(t, servicedef.RoleCollaborator, jsontree.RequireString(t, resp, "role"))
		assert.Equal(t, member.UserName, jsontree.RequireString(t, resp, "authority", "userName"))
	})

	t.Run("remove member", func(t *ldtest.T) {
		leaver := NewUser(t)
		AddSiteMember(t, site, owner, leaver, servicedef.RoleConsumer)
		c.Delete(membershipPath(site, leaver.UserName)).As(outsider.Creds()).Expect(t, http.StatusForbidden)
		c.Get(membershipPath(site, leaver.UserName)).As(owner.Creds()).Expect(t, http.StatusOK)

		c.Delete(membershipPath(site, leaver.UserName)).As(siteAdmin.Creds()).Expect(t, http.StatusOK)
		c.Get(membershipPath(site, leaver.UserName)).As(owner.Creds()).Expect(t, http.StatusNotFound)
	})

	t.Run("delete site", func(t *ldtest.T) {
		doomed := NewSite(t, owner, servicedef.VisibilityPublic)
		c.Delete(sitePath(doomed)).As(outsider.Creds()).Expect(t, http.StatusForbidden)
		assert.Equal(t, doomed, jsontree.RequireString(t, getSite(t, doomed, owner), "shortName"))

		c.Delete(sitePath(doomed)).As(siteAdmin.Creds()).Expect(t, http.StatusOK)
		c.Get(sitePath(doomed)).As(owner.Creds()).Expect(t, http.StatusNotFound)
	})

	t.Run("rights end when leaving the group", func(t *ldtest.T) {
		former := NewUser(t)
		AddGroupMember(t, siteAdmins, former)
		before := jsontree.RequireString(t, getSite(t, site, owner), "visibility")
		RemoveGroupMember(t, siteAdmins, former)

		c.Put(sitePath(site)).As(former.Creds()).
			JSON(servicedef.UpdateSiteParams{Title: "Taken over"}).
			Expect(t, http.StatusForbidden)
		data := getSite(t, site, owner)
		assert.Equal(t, before, jsontree.RequireString(t, data, "visibility"))
		assert.Equal(t, "Site "+site, jsontree.RequireString(t, data, "title"))
	})
}
