// Package crawler fetches images for one search keyword into a directory.
//
// A fetch pages through the search results, queues every new image URL on a
// download worker pool and stores images as 000001.jpg, 000002.png, ... until
// the requested count is reached or the results run out. Progress is saved to
// a checkpoint after every page and stored image so an interrupted fetch can
// be resumed.
//
//	c := crawler.NewFromConfig(cfg, crawler.OptionsFromConfig(cfg), log)
//	summary, err := c.Fetch(ctx, models.FetchRequest{
//	    Keyword:     "paper cup",
//	    Destination: "dataset/paper_cup",
//	    MaxCount:    500,
//	})
package crawler
