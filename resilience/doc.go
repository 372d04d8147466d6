// Package resilience provides retry with exponential backoff and a circuit
// breaker for calls to remote collaborators such as the CDM specification
// download.
//
//	spec, err := resilience.Retry(ctx, resilience.DefaultRetryConfig(),
//	    func(ctx context.Context) (*Spec, error) {
//	        return download(ctx, url)
//	    })
//
// By default an *errors.AppError is retried, and counted by a Breaker,
// only when it is marked retryable. Context cancellation never is.
package resilience
