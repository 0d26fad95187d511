// Package downloader turns the resources of a catalog dataset into local
// files.
//
// A request flows through four stages:
//
//   - Resolve picks the downloadable resources of a dataset, in catalog
//     order.
//   - The Planner assigns each resource a unique path below
//     <base>/<dataset>/, numbering duplicates as name-1.ext, name-2.ext.
//   - Transfers stream each file into a temporary .part file next to its
//     destination and rename it into place once complete.
//   - The Downloader admits at most Request.Concurrency transfers at a
//     time and collects one Outcome per resource.
//
// # Usage
//
//	d := downloader.New(downloader.Options{HTTP: client})
//
//	resources, err := downloader.ResolveDataset(ctx, catalog, "sample-set")
//	if err != nil {
//	    return err
//	}
//
//	run, err := d.Start(ctx, downloader.Request{
//	    DatasetID:   "sample-set",
//	    Resources:   resources,
//	    BaseDir:     downloader.ResolveBaseDir(downloader.ModeDirect, "", dirs),
//	    Concurrency: 4,
//	})
//	if err != nil {
//	    return err // only ErrInvalidConfiguration
//	}
//
//	for s := range run.Progress().Snapshots(ctx, time.Second) {
//	    fmt.Println(s.Active, s.Throughput)
//	}
//	outcomes := run.Wait()
//
// # Failures
//
// A failing resource never stops its siblings. Client errors (4xx) fail
// at once; server errors, dropped connections and attempt timeouts are
// retried with exponential backoff. A body shorter or longer than its
// Content-Length fails with ErrSizeMismatch. No file is ever left at the
// destination name unless the transfer succeeded.
//
// # Cancellation
//
// Cancelling the context fails in-flight transfers with ErrCancelled and
// skips those that had not started yet.
package downloader
