package cmstests

import (
	"errors"
	"time"

	"github.com/contentrepo/webscript-contract-tests/framework/ldtest"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

const (
	awaitTimeout     = time.Second * 10
	awaitMinInterval = time.Millisecond * 50
	awaitMaxInterval = time.Millisecond * 500
)

var errConditionNotMet = errors.New("condition not met")

// awaitCondition polls until check returns true, and fails the test if that does not happen
// within awaitTimeout. Asynchronous work on the platform, such as replication runs and the end
// of a workflow, is observed this way.
func awaitCondition(t *ldtest.T, description string, check func() bool) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = awaitMinInterval
	b.MaxInterval = awaitMaxInterval
	b.MaxElapsedTime = awaitTimeout
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		if check() {
			return nil
		}
		return errConditionNotMet
	}, b)
	require.NoError(t, err, "timed out after %d attempts waiting for %s", attempts, description)
	t.Debug("%s after %d attempts", description, attempts)
}
