package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/contentrepo/webscript-contract-tests/config"
	"github.com/contentrepo/webscript-contract-tests/framework/ldtest"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseRunFlags(t *testing.T, args ...string) (*commandParams, *cobra.Command) {
	var params commandParams
	cmd := &cobra.Command{Use: "run"}
	params.addFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return &params, cmd
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
url: http://file.example.com
admin:
  user: fileadmin
  password: filepassword
statusTimeout: 1m
`), 0o600))

	params, cmd := parseRunFlags(t, "--config", path, "--admin-password", "flagpassword", "--status-timeout", "5s")
	cfg, err := params.resolveConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, "http://file.example.com", cfg.URL)
	assert.Equal(t, "fileadmin", cfg.Admin.User)
	assert.Equal(t, "flagpassword", cfg.Admin.Password)
	assert.Equal(t, time.Second*5, cfg.StatusTimeout)
}

func TestDefaultsWithoutConfigFile(t *testing.T) {
	params, cmd := parseRunFlags(t)
	cfg, err := params.resolveConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestInvalidURLFlag(t *testing.T) {
	params, cmd := parseRunFlags(t, "--url", "localhost:8080")
	_, err := params.resolveConfig(cmd)
	assert.Error(t, err)
}

func TestRunAndSkipFlagsAreRepeatable(t *testing.T) {
	params, _ := parseRunFlags(t, "--run", "sites", "--run", "forum", "--skip", "forum/list topics")
	assert.True(t, params.filters.AsFilter(ldtest.TestID{Path: []string{"sites"}}))
	assert.True(t, params.filters.AsFilter(ldtest.TestID{Path: []string{"forum", "replies"}}))
	assert.False(t, params.filters.AsFilter(ldtest.TestID{Path: []string{"forum", "list topics"}}))
	assert.False(t, params.filters.AsFilter(ldtest.TestID{Path: []string{"ratings"}}))
}

func TestRerunCommand(t *testing.T) {
	params, _ := parseRunFlags(t, "--url", "http://cms:8080")
	results := ldtest.Results{
		Failures: []ldtest.TestResult{
			{TestID: ldtest.TestID{Path: []string{"sites", "memberships"}}},
		},
	}
	assert.Equal(t,
		`contract-tests run --url http://cms:8080 --run '^sites$/^memberships$' --debug`,
		params.rerunCommand("contract-tests", results))
}
