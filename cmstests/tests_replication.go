package cmstests

import (
	"net/http"
	"strings"

	"github.com/contentrepo/webscript-contract-tests/framework/jsontree"
	"github.com/contentrepo/webscript-contract-tests/framework/ldtest"
	"github.com/contentrepo/webscript-contract-tests/framework/restclient"
	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func replicationPath(name string) string {
	return restclient.Pathf("api/replication-definition/%s", name)
}

// newReplication creates a replication definition, which is deleted when the test ends.
func newReplication(t *ldtest.T, name string, payload ...Node) ldvalue.Value {
	c := newClient(t)
	params := servicedef.ReplicationDefinitionParams{
		Name:        name,
		Description: "Replication " + name,
		TargetName:  "target-" + name,
	}
	for _, n := range payload {
		params.Payload = append(params.Payload, n.NodeRef())
	}
	resp := c.Post("api/replication-definitions").As(adminCreds(t)).JSON(params).
		ExpectJSON(t, http.StatusOK)
	disposeOnExit(t, "replication definition "+name, c.Delete(replicationPath(name)).As(adminCreds(t)))
	return jsontree.RequireObject(t, resp, "data")
}

func getReplication(t *ldtest.T, name string) ldvalue.Value {
	resp := newClient(t).Get(replicationPath(name)).As(adminCreds(t)).ExpectJSON(t, http.StatusOK)
	return jsontree.RequireObject(t, resp, "data")
}

// listReplicationNames lists the definitions whose names start with prefix, in the order the
// platform returns them. Other tests may have definitions of their own.
func listReplicationNames(t *ldtest.T, prefix, sort string) []string {
	req := newClient(t).Get("api/replication-definitions").As(adminCreds(t))
	if sort != "" {
		req.Query("sort", sort)
	}
	var names []string
	for _, name := range jsontree.Pluck(jsontree.Get(req.ExpectJSON(t, http.StatusOK), "data"), "name") {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names
}

func runReplication(t *ldtest.T, name string) ldvalue.Value {
	resp := newClient(t).Post("api/running-replication-actions").As(adminCreds(t)).
		JSON(servicedef.RunReplicationParams{Name: name}).
		ExpectJSON(t, http.StatusOK)
	return jsontree.RequireObject(t, resp, "data")
}

func awaitReplicationStatus(t *ldtest.T, name, status string) ldvalue.Value {
	var last ldvalue.Value
	awaitCondition(t, "replication "+name+" to reach status "+status, func() bool {
		last = getReplication(t, name)
		return jsontree.Get(last, "status").StringValue() == status
	})
	return last
}

// webScriptPath turns a service-relative URL from a response into a request path.
func webScriptPath(url string) string {
	return strings.TrimPrefix(url, "/")
}

func DoReplicationTests(t *ldtest.T) {
	t.RequireCapability(servicedef.CapabilityReplication)

	t.Run("service status", func(t *ldtest.T) {
		resp := newClient(t).Get("api/replication-service-status").As(adminCreds(t)).
			ExpectJSON(t, http.StatusOK)
		assert.True(t, jsontree.RequireBool(t, resp, "data", "enabled"))
	})

	t.Run("requires administrator", func(t *ldtest.T) {
		user := NewUser(t)
		newClient(t).Get("api/replication-definitions").As(user.Creds()).
			Expect(t, http.StatusUnauthorized)
		newClient(t).Post("api/replication-definitions").As(user.Creds()).
			JSON(servicedef.ReplicationDefinitionParams{Name: uniqueName("rep"), Description: "d"}).
			Expect(t, http.StatusUnauthorized)
	})

	t.Run("create", func(t *ldtest.T) {
		owner := NewUser(t)
		folder := NewNode(t, owner, servicedef.NodeAliasMy, uniqueName("folder"), true)
		doc := NewNode(t, owner, servicedef.NodeAliasMy, uniqueName("doc")+".txt", false)
		name := uniqueName("rep")

		data := newReplication(t, name, folder, doc)
		assert.Equal(t, name, jsontree.RequireString(t, data, "name"))
		assert.Equal(t, "Replication "+name, jsontree.RequireString(t, data, "description"))
		assert.Equal(t, "target-"+name, jsontree.RequireString(t, data, "targetName"))
		assert.Equal(t, servicedef.ReplicationStatusNew, jsontree.RequireString(t, data, "status"))
		assert.True(t, jsontree.RequireBool(t, data, "enabled"))
		assert.True(t, jsontree.Get(data, "startedAt").IsNull())
		assert.True(t, jsontree.Get(data, "executionDetails").IsNull())

		payload := jsontree.RequireArray(t, data, "payload")
		require.Len(t, payload, 2)
		assert.Equal(t, folder.NodeRef(), jsontree.RequireString(t, payload[0], "nodeRef"))
		assert.True(t, jsontree.RequireBool(t, payload[0], "isFolder"))
		assert.Equal(t, doc.Name, jsontree.RequireString(t, payload[1], "name"))
		assert.False(t, jsontree.RequireBool(t, payload[1], "isFolder"))

		t.Run("duplicate name", func(t *ldtest.T) {
			newClient(t).Post("api/replication-definitions").As(adminCreds(t)).
				JSON(servicedef.ReplicationDefinitionParams{Name: name, Description: "again"}).
				Expect(t, http.StatusBadRequest)
		})

		t.Run("missing description", func(t *ldtest.T) {
			newClient(t).Post("api/replication-definitions").As(adminCreds(t)).
				JSON(servicedef.ReplicationDefinitionParams{Name: uniqueName("rep")}).
				Expect(t, http.StatusBadRequest)
		})

		t.Run("unknown payload node", func(t *ldtest.T) {
			newClient(t).Post("api/replication-definitions").As(adminCreds(t)).
				JSON(servicedef.ReplicationDefinitionParams{
					Name:        uniqueName("rep"),
					Description: "d",
					Payload:     []string{servicedef.NodeRefForID("no-such-node")},
				}).
				Expect(t, http.StatusBadRequest)
		})
	})

	t.Run("name with special characters", func(t *ldtest.T) {
		name := uniqueName("rep") + " a/b & c?d"
		newReplication(t, name)
		assert.Equal(t, name, jsontree.RequireString(t, getReplication(t, name), "name"))
		assert.Equal(t, []string{name}, listReplicationNames(t, name, ""))
	})

	t.Run("get unknown definition", func(t *ldtest.T) {
		newClient(t).Get(replicationPath(uniqueName("missing"))).As(adminCreds(t)).
			Expect(t, http.StatusNotFound)
	})

	t.Run("update", func(t *ldtest.T) {
		name := uniqueName("rep")
		newReplication(t, name)
		disabled := false

		resp := newClient(t).Put(replicationPath(name)).As(adminCreds(t)).
			JSON(servicedef.ReplicationDefinitionParams{Description: "changed", Enabled: &disabled}).
			ExpectJSON(t, http.StatusOK)
		assert.Equal(t, "changed", jsontree.RequireString(t, resp, "data", "description"))
		assert.False(t, jsontree.RequireBool(t, resp, "data", "enabled"))
		assert.Equal(t, "target-"+name, jsontree.RequireString(t, resp, "data", "targetName"))

		t.Run("disabled definition cannot run", func(t *ldtest.T) {
			newClient(t).Post("api/running-replication-actions").As(adminCreds(t)).
				JSON(servicedef.RunReplicationParams{Name: name}).
				Expect(t, http.StatusBadRequest)
		})

		t.Run("rename", func(t *ldtest.T) {
			renamed := name + "-renamed"
			c := newClient(t)
			disposeOnExit(t, "replication definition "+renamed, c.Delete(replicationPath(renamed)).As(adminCreds(t)))
			c.Put(replicationPath(name)).As(adminCreds(t)).
				JSON(servicedef.ReplicationDefinitionParams{Name: renamed}).
				Expect(t, http.StatusOK)
			assert.Equal(t, "changed", jsontree.RequireString(t, getReplication(t, renamed), "description"))
			c.Get(replicationPath(name)).As(adminCreds(t)).Expect(t, http.StatusNotFound)
		})
	})

	t.Run("delete", func(t *ldtest.T) {
		name := uniqueName("rep")
		newReplication(t, name)
		c := newClient(t)
		c.Delete(replicationPath(name)).As(adminCreds(t)).Expect(t, http.StatusNoContent)
		c.Get(replicationPath(name)).As(adminCreds(t)).Expect(t, http.StatusNotFound)
		c.Delete(replicationPath(name)).As(adminCreds(t)).Expect(t, http.StatusNotFound)
	})

	t.Run("list", func(t *ldtest.T) {
		prefix := uniqueName("replist")
		nameA, nameB, nameC := prefix+"-a", prefix+"-b", prefix+"-c"
		newReplication(t, nameC)
		newReplication(t, nameA)
		newReplication(t, nameB)

		t.Run("by name", func(t *ldtest.T) {
			assert.Equal(t, []string{nameA, nameB, nameC}, listReplicationNames(t, prefix, ""))
		})

		runReplication(t, nameB)
		awaitReplicationStatus(t, nameB, servicedef.ReplicationStatusCompleted)

		t.Run("by status", func(t *ldtest.T) {
			assert.Equal(t, []string{nameB, nameA, nameC}, listReplicationNames(t, prefix, "status"))
		})

		t.Run("by last run", func(t *ldtest.T) {
			assert.Equal(t, nameB, listReplicationNames(t, prefix, "lastRun")[0])
		})

		t.Run("summary fields", func(t *ldtest.T) {
			resp := newClient(t).Get("api/replication-definitions").As(adminCreds(t)).ExpectJSON(t, http.StatusOK)
			for _, item := range jsontree.Items(jsontree.Get(resp, "data")) {
				if jsontree.Get(item, "name").StringValue() == nameB {
					assert.Equal(t, []string{"details", "enabled", "name", "startedAt", "status"}, jsontree.Keys(item))
					assert.Equal(t, servicedef.ReplicationStatusCompleted, jsontree.RequireString(t, item, "status"))
					assert.True(t, jsontree.RequireBool(t, item, "enabled"))
					jsontree.RequireString(t, item, "startedAt", "iso8601")
					jsontree.RequireString(t, item, "details")
					return
				}
			}
			t.Errorf("definition %s was not listed", nameB)
		})
	})

	t.Run("run", func(t *ldtest.T) {
		name := uniqueName("rep")
		newReplication(t, name)

		action := runReplication(t, name)
		assert.Equal(t, name, jsontree.RequireString(t, action, "replicationName"))
		assert.Equal(t, servicedef.ReplicationActionExecutor, jsontree.RequireString(t, action, "type"))
		assert.Contains(t, []string{servicedef.ReplicationStatusPending, servicedef.ReplicationStatusRunning},
			jsontree.RequireString(t, action, "status"))
		assert.False(t, jsontree.RequireBool(t, action, "cancelRequested"))
		jsontree.RequireString(t, action, "id")

		t.Run("already running", func(t *ldtest.T) {
			newClient(t).Post("api/running-replication-actions").As(adminCreds(t)).
				JSON(servicedef.RunReplicationParams{Name: name}).
				Expect(t, http.StatusBadRequest)
		})

		data := awaitReplicationStatus(t, name, servicedef.ReplicationStatusCompleted)
		jsontree.RequireString(t, data, "startedAt", "iso8601")
		jsontree.RequireString(t, data, "endedAt", "iso8601")
		assert.True(t, jsontree.Get(data, "failureMessage").IsNull())

		t.Run("finished action is no longer running", func(t *ldtest.T) {
			details := jsontree.RequireString(t, data, "executionDetails")
			newClient(t).Get(webScriptPath(details)).As(adminCreds(t)).Expect(t, http.StatusNotFound)
		})

		t.Run("can run again", func(t *ldtest.T) {
			again := runReplication(t, name)
			assert.NotEqual(t, jsontree.RequireString(t, action, "id"), jsontree.RequireString(t, again, "id"))
			awaitReplicationStatus(t, name, servicedef.ReplicationStatusCompleted)
		})
	})

	t.Run("run unknown definition", func(t *ldtest.T) {
		newClient(t).Post("api/running-replication-actions").As(adminCreds(t)).
			JSON(servicedef.RunReplicationParams{Name: uniqueName("missing")}).
			Expect(t, http.StatusNotFound)
	})

	t.Run("cancel", func(t *ldtest.T) {
		name := uniqueName("rep")
		newReplication(t, name)
		action := runReplication(t, name)
		details := webScriptPath(jsontree.RequireString(t, action, "details"))

		running := newClient(t).Get("api/running-actions").As(adminCreds(t)).
			Query("type", servicedef.ReplicationActionExecutor).ExpectJSON(t, http.StatusOK)
		assert.Contains(t, jsontree.Pluck(jsontree.Get(running, "data"), "replicationName"), name)

		newClient(t).Delete(details).As(adminCreds(t)).Expect(t, http.StatusNoContent)
		status := jsontree.RequireString(t, getReplication(t, name), "status")
		assert.Contains(t, []string{servicedef.ReplicationStatusCancelRequested, servicedef.ReplicationStatusCancelled}, status,
			"status right after cancelling")
		data := awaitReplicationStatus(t, name, servicedef.ReplicationStatusCancelled)
		jsontree.RequireString(t, data, "endedAt", "iso8601")

		newClient(t).Delete(details).As(adminCreds(t)).Expect(t, http.StatusNotFound)
	})
}
