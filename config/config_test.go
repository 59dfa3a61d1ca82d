package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, "", c.URL)
	assert.Equal(t, DefaultAdminUser, c.Admin.User)
	assert.Equal(t, DefaultAdminPassword, c.Admin.Password)
	assert.Equal(t, servicedef.AllCapabilities, c.Capabilities)
	assert.Equal(t, DefaultStatusTimeout, c.StatusTimeout)
	assert.NoError(t, c.Validate())
}

func TestParseOverridesOnlyGivenSettings(t *testing.T) {
	c, err := Parse([]byte(`
url: http://cms.example.com:8080
admin:
  password: secret
capabilities: [sites, forum]
statusTimeout: 30s
prefixes:
  webScripts: /cms/service
`))
	require.NoError(t, err)

	assert.Equal(t, "http://cms.example.com:8080", c.URL)
	assert.Equal(t, DefaultAdminUser, c.Admin.User)
	assert.Equal(t, "secret", c.Admin.Password)
	assert.Equal(t, []string{"sites", "forum"}, c.Capabilities)
	assert.Equal(t, time.Second*30, c.StatusTimeout)
	assert.Equal(t, "/cms/service", c.Prefixes.WebScripts)
	assert.Equal(t, DefaultWorkflowPrefix, c.Prefixes.Workflow)
	assert.Equal(t, DefaultCorePrefix, c.Prefixes.Core)
}

func TestParseEmptyDocument(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestParseErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown key":        "adminUser: bob\n",
		"bad url":            "url: cms.example.com\n",
		"unknown capability": "capabilities: [calendar]\n",
		"bad duration":       "statusTimeout: soon\n",
		"bad port":           "mockPort: 70000\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mockPort: 9000\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, c.MockPort)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEndpoints(t *testing.T) {
	c := Default()
	c.Prefixes.Core = "api/core/"
	e := c.Endpoints("http://localhost:8080/")
	assert.Equal(t, "http://localhost:8080"+DefaultWebScriptsPrefix, e.WebScripts)
	assert.Equal(t, "http://localhost:8080"+DefaultWorkflowPrefix, e.Workflow)
	assert.Equal(t, "http://localhost:8080/api/core", e.Core)
}
