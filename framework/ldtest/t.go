package ldtest

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/contentrepo/webscript-contract-tests/framework"
)

// T represents a test or subtest.
//
// It implements the same basic functionality as Go's testing.T, but in an environment that is
// outside of the Go test runner, and with some extra features such as debug logging and
// capability checks. Failing or skipping a test causes an immediate exit via panic, which is
// recovered by the runner.
type T struct {
	env         *environment
	id          TestID
	debugLogger framework.CapturingLogger
	failed      bool
	skipped     bool
	skipReason  string
	errors      []error
	cleanups    []func()
}

func (t *T) run(action func(*T)) {
	defer func() {
		if r := recover(); r != nil {
			t.recordPanic(r)
		}
		t.runCleanups()
		result := TestResult{TestID: t.id, Errors: t.errors, Skipped: t.skipped}
		t.env.results.Tests = append(t.env.results.Tests, result)
		if t.failed {
			t.env.results.Failures = append(t.env.results.Failures, result)
		}
	}()

	action(t)
}

func (t *T) recordPanic(r interface{}) {
	if t.skipped {
		return
	}
	t.failed = true
	var addError error
	if _, ok := r.(*T); ok {
		if len(t.errors) == 0 {
			addError = errors.New("test failed with no failure message")
		}
	} else {
		addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
	}
	if addError != nil {
		t.errors = append(t.errors, addError)
		t.env.config.TestLogger.TestError(t.id, addError)
	}
}

// Cleanups run last-in-first-out. A cleanup that fails is recorded but does not stop the others.
func (t *T) runCleanups() {
	for len(t.cleanups) > 0 {
		last := len(t.cleanups) - 1
		fn := t.cleanups[last]
		t.cleanups = t.cleanups[:last]
		func() {
			defer func() {
				if r := recover(); r != nil {
					if _, ok := r.(*T); ok {
						t.failed = true
						return
					}
					t.Errorf("unexpected panic in cleanup: %+v", r)
				}
			}()
			fn()
		}()
	}
}

// ID returns the unique identifier of this test.
func (t *T) ID() TestID {
	return t.id
}

// Run runs a subtest. This is equivalent to the Run method of testing.T.
func (t *T) Run(name string, action func(*T)) {
	id := t.id.Plus(name)

	t.env.config.TestLogger.TestStarted(id)
	if t.env.config.Filter != nil && !t.env.config.Filter(id) {
		t.env.config.TestLogger.TestSkipped(id, "excluded by filter parameters")
		return
	}
	t1 := &T{
		id:  id,
		env: t.env,
	}
	t1.run(action)
	if t1.skipped {
		t.env.config.TestLogger.TestSkipped(id, t1.skipReason)
	} else {
		t.env.config.TestLogger.TestFinished(id, t1.failed, t1.debugLogger.Output())
	}
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.failed = true
	err := fmt.Errorf(format, args...)
	t.errors = append(t.errors, err)
	t.env.config.TestLogger.TestError(t.id, err)
}

// FailNow is called by assertions when a test should fail and immediately exit. The methods in
// the require package call FailNow.
func (t *T) FailNow() {
	panic(t)
}

// Failed returns true if the test has already failed.
func (t *T) Failed() bool {
	return t.failed
}

// Skip marks the test as skipped and immediately exits.
func (t *T) Skip() {
	t.skipped = true
	panic(t)
}

func (t *T) SkipWithReason(reason string) {
	t.skipReason = reason
	t.Skip()
}

// Defer schedules a function to run when the test ends, whether it passed or not. Deferred
// functions run in reverse order of registration, after all of the test's subtests.
func (t *T) Defer(fn func()) {
	t.cleanups = append(t.cleanups, fn)
}

// Debug writes a message to the test's debug output, which the TestLogger receives at the end
// of the test.
func (t *T) Debug(message string, args ...interface{}) {
	t.debugLogger.Printf(message, args...)
}

func (t *T) DebugLogger() framework.Logger {
	return &t.debugLogger
}

// Capabilities returns the capabilities declared by the platform under test.
func (t *T) Capabilities() Capabilities {
	return t.env.config.Capabilities
}

// RequireCapability skips this test if the platform under test did not declare the capability.
func (t *T) RequireCapability(capability string) {
	if !t.env.config.Capabilities.Has(capability) {
		t.SkipWithReason(fmt.Sprintf("platform does not have capability %q", capability))
	}
}

// Context returns the value that was provided in TestConfiguration.Context.
func (t *T) Context() interface{} {
	return t.env.config.Context
}
