package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/contentrepo/webscript-contract-tests/config"
	"github.com/contentrepo/webscript-contract-tests/framework/ldtest"

	"github.com/alessio/shellescape"
	"github.com/spf13/cobra"
)

type commandParams struct {
	configPath    string
	url           string
	adminUser     string
	adminPassword string
	statusTimeout time.Duration
	filters       ldtest.RegexFilters
	debug         bool
	debugAll      bool
}

func (c *commandParams) addFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&c.configPath, "config", "", "YAML file with settings for the test run")
	fs.StringVar(&c.url, "url", "", "base URL of the platform (default: start the embedded mock platform)")
	fs.StringVar(&c.adminUser, "admin-user", config.DefaultAdminUser, "administrator user name")
	fs.StringVar(&c.adminPassword, "admin-password", config.DefaultAdminPassword, "administrator password")
	fs.DurationVar(&c.statusTimeout, "status-timeout", config.DefaultStatusTimeout, "how long to wait for the platform to respond")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")
}

// resolveConfig applies the flags that were given explicitly on top of the config file.
func (c *commandParams) resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		loaded, err := config.Load(c.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	var fromFlags config.Config
	fs := cmd.Flags()
	if fs.Changed("url") {
		fromFlags.URL = c.url
	}
	if fs.Changed("admin-user") {
		fromFlags.Admin.User = c.adminUser
	}
	if fs.Changed("admin-password") {
		fromFlags.Admin.Password = c.adminPassword
	}
	if fs.Changed("status-timeout") {
		fromFlags.StatusTimeout = c.statusTimeout
	}
	config.Merge(&cfg, fromFlags)
	return cfg, cfg.Validate()
}

// rerunCommand builds a command line that runs only the failed tests again.
func (c *commandParams) rerunCommand(program string, results ldtest.Results) string {
	var b commandBuilder
	b.add(program, "run")
	if c.configPath != "" {
		b.add("--config", c.configPath)
	}
	if c.url != "" {
		b.add("--url", c.url)
	}
	for _, f := range results.Failures {
		b.add("--run", ldtest.ExactPattern(f.TestID))
	}
	b.add("--debug")
	return b.String()
}

func (c *commandParams) printRerunCommand(out io.Writer, program string, results ldtest.Results) {
	if results.OK() {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "To run only the failed tests again:")
	fmt.Fprintf(out, "  %s\n", c.rerunCommand(program, results))
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}
