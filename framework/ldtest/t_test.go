package ldtest

import (
	"errors"
	"testing"

	"github.com/contentrepo/webscript-contract-tests/framework"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTestLogger struct {
	started  []string
	finished map[string]bool
	skipped  map[string]string
	errors   map[string][]error
}

func newRecordingTestLogger() *recordingTestLogger {
	return &recordingTestLogger{
		finished: make(map[string]bool),
		skipped:  make(map[string]string),
		errors:   make(map[string][]error),
	}
}

func (r *recordingTestLogger) TestStarted(id TestID) { r.started = append(r.started, id.String()) }
func (r *recordingTestLogger) TestError(id TestID, err error) {
	r.errors[id.String()] = append(r.errors[id.String()], err)
}
func (r *recordingTestLogger) TestFinished(id TestID, failed bool, _ framework.CapturedOutput) {
	r.finished[id.String()] = failed
}
func (r *recordingTestLogger) TestSkipped(id TestID, reason string) { r.skipped[id.String()] = reason }

func TestPassingAndFailingTests(t *testing.T) {
	logger := newRecordingTestLogger()
	results := Run(TestConfiguration{TestLogger: logger}, func(t *T) {
		t.Run("good", func(t *T) {
			assert.True(t, true)
		})
		t.Run("bad", func(t *T) {
			require.Equal(t, 1, 2)
			panic("should not get here")
		})
	})

	assert.False(t, results.OK())
	require.Len(t, results.Failures, 1)
	assert.Equal(t, "bad", results.Failures[0].TestID.String())
	assert.Equal(t, []string{"good", "bad"}, logger.started)
	assert.Equal(t, map[string]bool{"good": false, "bad": true}, logger.finished)
	assert.Len(t, logger.errors["bad"], 1)
}

func TestUnexpectedPanicIsRecordedAsFailure(t *testing.T) {
	results := Run(TestConfiguration{}, func(t *T) {
		t.Run("panics", func(t *T) {
			panic(errors.New("boom"))
		})
	})
	require.Len(t, results.Failures, 1)
	require.Len(t, results.Failures[0].Errors, 1)
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "unexpected panic in test: boom")
}

func TestDeferredFunctionsRunInReverseOrderEvenAfterFailure(t *testing.T) {
	var calls []string
	Run(TestConfiguration{}, func(t *T) {
		t.Run("a", func(t *T) {
			t.Defer(func() { calls = append(calls, "first") })
			t.Defer(func() { calls = append(calls, "second") })
			t.Run("child", func(t *T) {
				t.Defer(func() { calls = append(calls, "child") })
			})
			t.FailNow()
		})
	})
	assert.Equal(t, []string{"child", "second", "first"}, calls)
}

func TestFailingCleanupDoesNotStopOtherCleanups(t *testing.T) {
	ran := false
	results := Run(TestConfiguration{}, func(t *T) {
		t.Run("a", func(t *T) {
			t.Defer(func() { ran = true })
			t.Defer(func() { require.Fail(t, "cleanup failed") })
		})
	})
	assert.True(t, ran)
	require.Len(t, results.Failures, 1)
	assert.Equal(t, "a", results.Failures[0].TestID.String())
}

func TestSkipAndCapabilities(t *testing.T) {
	logger := newRecordingTestLogger()
	results := Run(TestConfiguration{TestLogger: logger, Capabilities: Capabilities{"sites"}}, func(t *T) {
		t.Run("has it", func(t *T) {
			t.RequireCapability("sites")
		})
		t.Run("lacks it", func(t *T) {
			t.RequireCapability("forum")
			t.Errorf("should not get here")
		})
	})
	assert.True(t, results.OK())
	assert.Equal(t, `platform does not have capability "forum"`, logger.skipped["lacks it"])
	_, finished := logger.finished["lacks it"]
	assert.False(t, finished)
	require.Len(t, results.Skipped(), 1)
	assert.Equal(t, "lacks it", results.Skipped()[0].TestID.String())
}

func TestFilterExcludesTests(t *testing.T) {
	var filters RegexFilters
	require.NoError(t, filters.MustMatch.Set("forum/replies"))
	var ran []string
	logger := newRecordingTestLogger()
	Run(TestConfiguration{Filter: filters.AsFilter, TestLogger: logger}, func(t *T) {
		t.Run("forum", func(t *T) {
			t.Run("replies", func(t *T) { ran = append(ran, t.ID().String()) })
			t.Run("permissions", func(t *T) { ran = append(ran, t.ID().String()) })
		})
		t.Run("sites", func(t *T) { ran = append(ran, t.ID().String()) })
	})
	assert.Equal(t, []string{"forum/replies"}, ran)
	assert.Equal(t, "excluded by filter parameters", logger.skipped["sites"])
}

func TestContextIsAvailableToAllTests(t *testing.T) {
	var seen []interface{}
	Run(TestConfiguration{Context: "shared"}, func(t *T) {
		seen = append(seen, t.Context())
		t.Run("child", func(t *T) { seen = append(seen, t.Context()) })
	})
	assert.Equal(t, []interface{}{"shared", "shared"}, seen)
}

func TestSubtestIDsDoNotShareStorage(t *testing.T) {
	parent := TestID{Path: make([]string, 1, 10)}
	parent.Path[0] = "p"
	a := parent.Plus("a")
	b := parent.Plus("b")
	assert.Equal(t, "p/a", a.String())
	assert.Equal(t, "p/b", b.String())
	assert.Equal(t, "p", b.Parent().String())
}
