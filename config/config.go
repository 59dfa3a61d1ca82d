// Package config holds the settings of a test run. Settings come from built-in defaults, then
// an optional YAML file, then command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/contentrepo/webscript-contract-tests/framework/restclient"
	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"gopkg.in/yaml.v3"
)

const (
	DefaultWebScriptsPrefix = "/alfresco/service"
	DefaultWorkflowPrefix   = "/alfresco/api/-default-/public/workflow/versions/1"
	DefaultCorePrefix       = "/alfresco/api/-default-/public/alfresco/versions/1"

	DefaultAdminUser     = "admin"
	DefaultAdminPassword = "admin"

	DefaultStatusTimeout = time.Second * 10
	DefaultMockPort      = 8111
)

type Config struct {
	// URL is the base URL of the platform, for instance http://localhost:8080. If empty, the
	// embedded mock platform is used.
	URL string `yaml:"url"`

	Prefixes Prefixes `yaml:"prefixes"`
	Admin    Admin    `yaml:"admin"`

	// Capabilities is used when the platform does not report its own.
	Capabilities []string `yaml:"capabilities"`

	StatusTimeout time.Duration `yaml:"statusTimeout"`
	MockPort      int           `yaml:"mockPort"`
}

// Prefixes are the paths of each API family relative to the platform URL.
type Prefixes struct {
	WebScripts string `yaml:"webScripts"`
	Workflow   string `yaml:"workflow"`
	Core       string `yaml:"core"`
}

type Admin struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

func Default() Config {
	return Config{
		Prefixes: Prefixes{
			WebScripts: DefaultWebScriptsPrefix,
			Workflow:   DefaultWorkflowPrefix,
			Core:       DefaultCorePrefix,
		},
		Admin: Admin{
			User:     DefaultAdminUser,
			Password: DefaultAdminPassword,
		},
		Capabilities:  append([]string(nil), servicedef.AllCapabilities...),
		StatusTimeout: DefaultStatusTimeout,
		MockPort:      DefaultMockPort,
	}
}

// Load reads a YAML file and applies it on top of the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

func Parse(data []byte) (Config, error) {
	var file Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse yaml config: %w", err)
	}
	cfg := Default()
	Merge(&cfg, file)
	return cfg, cfg.Validate()
}

// Merge copies every setting that is set in src into dst.
func Merge(dst *Config, src Config) {
	if src.URL != "" {
		dst.URL = src.URL
	}
	if src.Prefixes.WebScripts != "" {
		dst.Prefixes.WebScripts = src.Prefixes.WebScripts
	}
	if src.Prefixes.Workflow != "" {
		dst.Prefixes.Workflow = src.Prefixes.Workflow
	}
	if src.Prefixes.Core != "" {
		dst.Prefixes.Core = src.Prefixes.Core
	}
	if src.Admin.User != "" {
		dst.Admin.User = src.Admin.User
	}
	if src.Admin.Password != "" {
		dst.Admin.Password = src.Admin.Password
	}
	if len(src.Capabilities) != 0 {
		dst.Capabilities = src.Capabilities
	}
	if src.StatusTimeout != 0 {
		dst.StatusTimeout = src.StatusTimeout
	}
	if src.MockPort != 0 {
		dst.MockPort = src.MockPort
	}
}

func (c Config) Validate() error {
	if c.URL != "" && !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("url %q must start with http:// or https://", c.URL)
	}
	if c.StatusTimeout < 0 {
		return errors.New("statusTimeout must not be negative")
	}
	if c.MockPort < 0 || c.MockPort > 65535 {
		return fmt.Errorf("mockPort %d is out of range", c.MockPort)
	}
	for _, capability := range c.Capabilities {
		if !isKnownCapability(capability) {
			return fmt.Errorf("unknown capability %q", capability)
		}
	}
	return nil
}

// Endpoints resolves the API prefixes against a platform base URL.
func (c Config) Endpoints(baseURL string) restclient.Endpoints {
	base := strings.TrimSuffix(baseURL, "/")
	return restclient.Endpoints{
		WebScripts: base + ensureLeadingSlash(c.Prefixes.WebScripts),
		Workflow:   base + ensureLeadingSlash(c.Prefixes.Workflow),
		Core:       base + ensureLeadingSlash(c.Prefixes.Core),
	}
}

func (c Config) AdminCredentials() restclient.Credentials {
	return restclient.Credentials{UserName: c.Admin.User, Password: c.Admin.Password}
}

func ensureLeadingSlash(p string) string {
	p = strings.TrimSuffix(p, "/")
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

func isKnownCapability(capability string) bool {
	for _, c := range servicedef.AllCapabilities {
		if c == capability {
			return true
		}
	}
	return false
}
