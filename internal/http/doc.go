// Package http provides the HTTP client used for catalog calls and
// resource downloads.
//
// This package handles:
//   - Connection pooling shared by concurrent transfers
//   - Single-attempt streaming GETs with status-code errors
//   - Retry with exponential backoff and a per-attempt timeout
//   - Classification of transient failures
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	attempts, err := client.Retry(ctx, func(ctx context.Context, attempt int) error {
//	    resp, err := client.Get(ctx, url)
//	    if err != nil {
//	        return err
//	    }
//	    defer resp.Body.Close()
//	    _, err = io.Copy(dst, resp.Body)
//	    return err
//	})
//
// 4xx responses are never retried. 5xx responses, network errors and
// attempt timeouts are retried up to Options.RetryAttempts times; when the
// budget is spent Retry returns a *RetryError wrapping the last failure.
package http
