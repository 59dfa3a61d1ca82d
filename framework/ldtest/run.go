package ldtest

// TestConfiguration contains global parameters for a test run.
type TestConfiguration struct {
	// Filter determines which tests should be run. If nil, all tests are run.
	Filter Filter

	// Capabilities are the optional features that the platform under test supports.
	Capabilities Capabilities

	// TestLogger receives notifications about each test as it runs. If nil, nothing is logged.
	TestLogger TestLogger

	// Context is an arbitrary value that is made available to every test through T.Context().
	Context interface{}
}

type environment struct {
	config  TestConfiguration
	results Results
}

// Run starts a test run. The action is the root of the test tree; it normally calls T.Run to
// add named tests.
func Run(config TestConfiguration, action func(*T)) Results {
	if config.TestLogger == nil {
		config.TestLogger = nullTestLogger{}
	}
	env := &environment{config: config}
	t := &T{env: env}
	t.run(action)
	return env.results
}
