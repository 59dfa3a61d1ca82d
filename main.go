package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/contentrepo/webscript-contract-tests/cmstests"
	"github.com/contentrepo/webscript-contract-tests/config"
	"github.com/contentrepo/webscript-contract-tests/framework"
	"github.com/contentrepo/webscript-contract-tests/framework/harness"
	"github.com/contentrepo/webscript-contract-tests/framework/ldtest"
	"github.com/contentrepo/webscript-contract-tests/mockplatform"
	"github.com/contentrepo/webscript-contract-tests/servicedef"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = time.Second * 5

// errTestsFailed has already been reported by the results summary.
var errTestsFailed = errors.New("some tests failed")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           filepath.Base(os.Args[0]),
		Short:         "Contract tests for the web script and workflow REST APIs of a content platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(), newServeMockCommand())
	return root
}

func newRunCommand() *cobra.Command {
	var params commandParams
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the test suites against a platform",
		Long: `Runs the forum, ratings, replication, sites and workflow suites against the platform
at --url. Without --url, the embedded mock platform is started on a local port and tested.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTests(cmd, &params)
		},
	}
	params.addFlags(cmd)
	return cmd
}

func runTests(cmd *cobra.Command, params *commandParams) error {
	cfg, err := params.resolveConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	baseURL := cfg.URL
	if baseURL == "" {
		platform := mockplatform.New(mockplatform.Options{
			AdminUserName: cfg.Admin.User,
			AdminPassword: cfg.Admin.Password,
			Capabilities:  cfg.Capabilities,
		})
		listener, err := harness.StartListener("127.0.0.1:0", platform.Handler())
		if err != nil {
			return fmt.Errorf("could not start mock platform: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = listener.Shutdown(ctx)
		}()
		baseURL = listener.BaseURL()
		cfg.Prefixes = config.Prefixes{
			WebScripts: mockplatform.WebScriptsPrefix,
			Workflow:   mockplatform.WorkflowPrefix,
			Core:       mockplatform.CorePrefix,
		}
		fmt.Fprintf(out, "No platform URL was given; testing the mock platform at %s\n", baseURL)
	}

	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = framework.WriterLogger(out, "[harness] ")
	}

	h, err := harness.NewTestHarness(harness.Params{
		Endpoints:          cfg.Endpoints(baseURL),
		Admin:              cfg.AdminCredentials(),
		Capabilities:       cfg.Capabilities,
		StatusQueryTimeout: cfg.StatusTimeout,
	}, mainDebugLogger, out)
	if err != nil {
		return fmt.Errorf("platform error: %w", err)
	}

	fmt.Fprintln(out)
	ldtest.PrintFilterDescription(out, params.filters, h.Capabilities(), servicedef.AllCapabilities)

	fmt.Fprintln(out, "Running test suite")
	testLogger := ldtest.ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
		Output:               out,
	}
	results := cmstests.RunTestSuite(h, params.filters.AsFilter, testLogger)

	fmt.Fprintln(out)
	ldtest.PrintResults(out, results)
	if !results.OK() {
		params.printRerunCommand(out, os.Args[0], results)
		return errTestsFailed
	}
	return nil
}

func newServeMockCommand() *cobra.Command {
	var (
		configPath string
		port       int
		asyncDelay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve-mock",
		Short: "Serve the mock platform until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if cmd.Flags().Changed("port") {
				cfg.MockPort = port
			}
			log := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
				With().Timestamp().Logger()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serveMock(ctx, cfg, asyncDelay, log)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML file with settings for the mock platform")
	cmd.Flags().IntVar(&port, "port", config.DefaultMockPort, "port to listen on")
	cmd.Flags().DurationVar(&asyncDelay, "async-delay", 0, "duration of each asynchronous step (default 200ms)")
	return cmd
}

// serveMock runs until ctx is done or the server fails.
func serveMock(ctx context.Context, cfg config.Config, asyncDelay time.Duration, log zerolog.Logger) error {
	platform := mockplatform.New(mockplatform.Options{
		AdminUserName: cfg.Admin.User,
		AdminPassword: cfg.Admin.Password,
		Capabilities:  cfg.Capabilities,
		AsyncDelay:    asyncDelay,
		Logger:        &log,
	})
	listener, err := harness.StartListener(fmt.Sprintf(":%d", cfg.MockPort), platform.Handler())
	if err != nil {
		return err
	}
	log.Info().Str("url", listener.BaseURL()).
		Str("webScripts", mockplatform.WebScriptsPrefix).
		Msg("mock platform is listening")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err := <-listener.Done():
			return err
		case <-ctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return listener.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
