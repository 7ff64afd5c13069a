// Package bing provides a client for Bing image search.
//
// This package includes:
//   - Result page URLs for the async image endpoint
//   - A goquery parser for the a.iusc result anchors
//   - An HTTP client with shared headers and typed errors
//   - Image downloads with size limits
//
// Example usage:
//
//	client := bing.NewClientFromConfig(cfg, log)
//
//	hits, err := client.Search(ctx, "paper cup isolated white background", 0, 35)
//	if err != nil {
//	    switch errors.TypeOf(err) {
//	    case errors.ErrorTypeRateLimit:
//	        // back off
//	    case errors.ErrorTypeParsing:
//	        // markup changed
//	    }
//	}
//
//	for _, hit := range hits {
//	    data, contentType, err := client.DownloadImage(ctx, hit.URL)
//	    // validate and store data
//	}
package bing
