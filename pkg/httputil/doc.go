// Package httputil provides the HTTP plumbing shared by the update provider
// client.
//
//   - [NewClient]: an http.Client with a bounded connect timeout whose
//     transport reports every request to the observability HTTP hooks.
//   - [Backoff]: retry with capped exponential backoff for transient
//     failures, paced by a juju/clock so tests need not sleep. [Retry] is
//     the wall-clock shorthand.
//
// Only errors wrapped in [RetryableError] are retried:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    ...
//	})
package httputil
