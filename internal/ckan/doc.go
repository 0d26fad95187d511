// Package ckan is a client for the CKAN action API used by data.gov.
//
// Only the read actions needed to find and fetch datasets are covered:
// package_show, package_search, organization_list and
// package_autocomplete. Requests go through internal/http and share its
// retry policy.
//
//	client := ckan.NewClient(ckan.Options{})
//	pkg, err := client.PackageShow(ctx, "electric-vehicle-population-data")
//	if errors.Is(err, ckan.ErrNotFound) {
//	    // no such dataset
//	}
//
// Every action answers with an envelope:
//
//	{"success": true, "result": {...}}
//	{"success": false, "error": {"message": "Not found", "__type": "Not Found Error"}}
//
// Missing datasets map to ErrNotFound; every other failure is an
// *UpstreamError carrying the HTTP status and the catalog's message.
package ckan
