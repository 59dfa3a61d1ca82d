package harness

import (
	"context"
	"fmt"
	"net/http"

	"github.com/contentrepo/webscript-contract-tests/framework"
	"github.com/contentrepo/webscript-contract-tests/framework/restclient"
)

// Entity represents something that a test has asked the platform to create, which must be
// deleted again when the test ends.
type Entity struct {
	description string
	dispose     *restclient.Request
	logger      framework.Logger
	closed      bool
}

// NewEntity registers a remote entity that is disposed of by sending the specified request.
// The request is retried if the platform is briefly unavailable.
func NewEntity(description string, dispose *restclient.Request, logger framework.Logger) *Entity {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Entity{description: description, dispose: dispose.Retry(), logger: logger}
}

func (e *Entity) String() string {
	return e.description
}

// Close tells the platform to dispose of this entity. An entity that is already gone (404) is
// not an error, since tests may delete their own fixtures.
func (e *Entity) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	resp, err := e.dispose.Send(context.Background())
	if err != nil {
		return fmt.Errorf("could not delete %s: %w", e.description, err)
	}
	switch {
	case resp.IsSuccess(), resp.StatusCode == http.StatusNotFound:
		e.logger.Printf("Deleted %s", e.description)
		return nil
	default:
		return fmt.Errorf("DELETE request for %s returned HTTP status %d", e.description, resp.StatusCode)
	}
}
