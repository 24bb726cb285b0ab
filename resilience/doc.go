// Package resilience retries failing operations with exponential backoff.
//
// Sources use it to reopen devices that went away:
//
//	port, err := resilience.Retry(ctx, cfg, func(ctx context.Context) (io.ReadCloser, error) {
//	    return open(ctx)
//	})
//
// A RetryConfig with MaxAttempts of zero keeps trying until the context
// ends, which is what a logger attached to a flaky serial port wants.
package resilience
