// Package resilience decides when a failed call is retried and how long to
// wait before the next attempt.
//
// RetryPolicy works on normalized errors only: network failures and the
// transient statuses 408, 429, 500, 502, 503 and 504 are retried, with
// exponential backoff of BaseDelay * 2^attempt, at most MaxRetries times.
//
//	resp, err := resilience.Retry(ctx, resilience.DefaultRetryPolicy(),
//	    func(attempt int) (*httpclient.Response, error) {
//	        return client.Do(ctx, req)
//	    })
package resilience
