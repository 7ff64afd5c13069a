// Package dataset lays out an image classification dataset on disk.
//
// A Builder creates the dataset root and one directory per category, then
// asks a Fetcher to fill each directory with images for the category's
// search keyword. Categories are processed sequentially in declared order and
// the first filesystem or fetch failure aborts the run without retrying:
//
//	b := dataset.NewBuilder(dataset.Options{
//	    Root:       "dataset",
//	    Categories: models.DefaultCategories(),
//	    MaxCount:   500,
//	}, crawler, log)
//	report, err := b.Run(ctx)
//
// Retries, paging and file naming belong to the Fetcher.
package dataset
