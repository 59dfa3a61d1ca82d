package cmstests

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/contentrepo/webscript-contract-tests/framework/harness"
	"github.com/contentrepo/webscript-contract-tests/framework/ldtest"
	"github.com/contentrepo/webscript-contract-tests/framework/restclient"
	"github.com/contentrepo/webscript-contract-tests/mockplatform"
	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startMockHarness(t *testing.T, capabilities ...string) *harness.TestHarness {
	platform := mockplatform.New(mockplatform.Options{
		Capabilities: capabilities,
		AsyncDelay:   time.Millisecond * 100,
	})
	server := httptest.NewServer(platform.Handler())
	t.Cleanup(server.Close)

	h, err := harness.NewTestHarness(harness.Params{
		Endpoints: restclient.Endpoints{
			WebScripts: server.URL + mockplatform.WebScriptsPrefix,
			Workflow:   server.URL + mockplatform.WorkflowPrefix,
			Core:       server.URL + mockplatform.CorePrefix,
		},
		Admin:              restclient.Credentials{UserName: "admin", Password: "admin"},
		StatusQueryTimeout: time.Second * 5,
	}, nil, &bytes.Buffer{})
	require.NoError(t, err)
	return h
}

func failureReport(results ldtest.Results, out *bytes.Buffer) string {
	var b strings.Builder
	ldtest.PrintResults(&b, results)
	return b.String() + "\n" + out.String()
}

func TestAllSuitesPassAgainstMockPlatform(t *testing.T) {
	h := startMockHarness(t)
	var out bytes.Buffer
	results := RunTestSuite(h, nil, ldtest.ConsoleTestLogger{DebugOutputOnFailure: true, Output: &out})

	require.True(t, results.OK(), failureReport(results, &out))
	assert.Empty(t, results.Skipped())
	assert.Greater(t, len(results.Tests), 100)
}

func TestSuitesAreSkippedWithoutCapability(t *testing.T) {
	h := startMockHarness(t, servicedef.CapabilityRatings)
	var out bytes.Buffer
	results := RunTestSuite(h, nil, ldtest.ConsoleTestLogger{Output: &out})

	require.True(t, results.OK(), failureReport(results, &out))
	var skipped []string
	for _, r := range results.Skipped() {
		skipped = append(skipped, r.TestID.String())
	}
	assert.ElementsMatch(t, []string{"forum", "replication", "sites", "legacy workflow", "public workflow"}, skipped)
}

func TestFilterSelectsOneSuite(t *testing.T) {
	h := startMockHarness(t)
	var out bytes.Buffer
	var filters ldtest.RegexFilters
	require.NoError(t, filters.MustMatch.Set("ratings"))
	results := RunTestSuite(h, filters.AsFilter, ldtest.ConsoleTestLogger{Output: &out})

	require.True(t, results.OK(), failureReport(results, &out))
	require.Greater(t, len(results.Tests), 1)
	for _, r := range results.Tests {
		if len(r.TestID.Path) > 0 {
			assert.Equal(t, "ratings", r.TestID.Path[0])
		}
	}
}
