// Package progress aggregates and renders download progress.
//
// Transfers publish TransferProgress values to a Sink. The Aggregator is
// the Sink used by the downloader: it keeps the latest value per transfer
// and computes, on demand, a Snapshot with byte totals, throughput over a
// trailing window and a per-transfer ETA.
//
// # Usage
//
//	agg := progress.NewAggregator(progress.Options{Total: len(resources)})
//
//	// Pull a single view
//	s := agg.Snapshot()
//
//	// Or iterate until the request completes
//	for s := range agg.Snapshots(ctx, 500*time.Millisecond) {
//	    fmt.Println(s.Active, s.Throughput)
//	}
//
// Nothing has to read the aggregator; results do not depend on it.
//
// # Output Format
//
// The Renderer turns snapshots into status lines:
//
//	[datagov] Downloading 4 resources from sample-set
//	[datagov] Progress: 1/4 done | 3 active | 12.5 MiB | Speed: 3.1 MiB/s | ETA: 18s
//	[datagov] Finished: 4/4 succeeded | 48.0 MiB in 21s | Average speed: 2.3 MiB/s
package progress
