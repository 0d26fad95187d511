// Package explorer implements the catalog commands of the datagov CLI:
// search, show, download, list organizations, info and setdir.
//
// The same Explorer backs direct mode, where cobra runs one command, and
// the interactive shell, where commands run one after the other against
// the same session. The only session state is the download directory
// changed by SetDownloadDir.
//
//	ex := explorer.New(explorer.Options{
//	    Catalog:    ckan.NewClient(ckan.Options{}),
//	    Downloader: downloader.New(downloader.DefaultOptions()),
//	    Config:     config.Default(),
//	    Mode:       downloader.ModeDirect,
//	})
//	summary, err := ex.Download(ctx, "consumer-complaint-database")
package explorer
