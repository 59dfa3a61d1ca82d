package cmstests

import (
	"github.com/contentrepo/webscript-contract-tests/framework/harness"
	"github.com/contentrepo/webscript-contract-tests/framework/ldtest"
	"github.com/contentrepo/webscript-contract-tests/framework/restclient"
	"github.com/contentrepo/webscript-contract-tests/servicedef"
)

func RunTestSuite(
	h *harness.TestHarness,
	filter ldtest.Filter,
	testLogger ldtest.TestLogger,
) ldtest.Results {
	config := ldtest.TestConfiguration{
		Filter:       filter,
		Capabilities: h.Capabilities(),
		TestLogger:   testLogger,
		Context:      CMSTestContext{harness: h},
	}
	return ldtest.Run(config, func(t *ldtest.T) {
		t.Run("forum", DoForumTests)
		t.Run("ratings", DoRatingTests)
		t.Run("replication", DoReplicationTests)
		t.Run("sites", DoSiteTests)
		t.Run("legacy workflow", DoLegacyWorkflowTests)
		t.Run("public workflow", DoPublicWorkflowTests)
	})
}

type CMSTestContext struct {
	harness *harness.TestHarness
}

func requireContext(t *ldtest.T) CMSTestContext {
	if c, ok := t.Context().(CMSTestContext); ok {
		return c
	}
	panic("CMSTestContext was not included in the global test configuration!" +
		" This is a basic mistake in the initialization logic.")
}

// newClient returns a REST client that logs to the test's debug output.
func newClient(t *ldtest.T) *restclient.Client {
	return requireContext(t).harness.Client(t.DebugLogger())
}

func adminCreds(t *ldtest.T) restclient.Credentials {
	return requireContext(t).harness.AdminCredentials()
}

// requireWorkflow skips the test unless the platform has every workflow capability the test
// depends on. Legacy workflow tests start their processes through the public API.
func requireWorkflow(t *ldtest.T, capabilities ...string) {
	for _, c := range append([]string{servicedef.CapabilityPublicWorkflow}, capabilities...) {
		t.RequireCapability(c)
	}
}
