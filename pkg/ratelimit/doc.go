// Package ratelimit throttles requests to the image search service and to the
// hosts serving the images.
//
// Token Bucket:
//   - Continuously refilled bucket, capacity tokens per period
//   - Used for image downloads (requests_per_minute)
//
// Sliding Window:
//   - At most N requests in any moving window
//   - Used for search result pages
//
// All limiters implement Limiter; Wait honours context cancellation:
//
//	limiter := ratelimit.PerMinute(120)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
