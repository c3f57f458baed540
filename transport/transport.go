package transport

import "context"

// Doer issues HTTP requests to remote services. All calls are bounded by the
// context deadline or the client's configured timeout, whichever is shorter;
// a timeout is reported as a failure, never as an indefinite wait.
type Doer interface {
	// Get issues a GET request and returns the response body.
	Get(ctx context.Context, url string) ([]byte, error)

	// Post issues a POST request with a JSON-encoded body and returns the
	// response body.
	Post(ctx context.Context, url string, body any) ([]byte, error)
}
