// Package retry provides backoff and retry logic for transient failures
// while talking to the image search backend and image hosts.
//
// Basic usage:
//
//	err := retry.Do(func() error {
//		hits, err = client.Search(ctx, keyword, offset, count)
//		return err
//	}, retry.FromRateLimit(cfg.RateLimit, log).WithContext(ctx))
//
// Network, rate limit and server errors are retried. Auth, not found,
// parsing and invalid image errors are returned immediately, as are
// context cancellation and filesystem errors.
//
// Setting ErrorBackoff on a Config picks the delay from the error type,
// so a 429 waits considerably longer than a dropped connection.
package retry
