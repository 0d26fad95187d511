package downloader

import (
	"context"
	"net/url"

	"github.com/ligustah/datagov/internal/ckan"
)

// Catalog looks up datasets.
type Catalog interface {
	PackageShow(ctx context.Context, id string) (*ckan.Package, error)
}

// Resolve turns a dataset's resources into descriptors, in catalog order.
// Resources without a usable http(s) URL and API endpoints are left out.
func Resolve(pkg *ckan.Package) []Descriptor {
	if pkg == nil {
		return nil
	}

	descriptors := make([]Descriptor, 0, len(pkg.Resources))
	for _, r := range pkg.Resources {
		if !downloadable(r) {
			continue
		}
		descriptors = append(descriptors, Descriptor{
			ID:       r.ID,
			URL:      r.URL,
			Name:     r.Name,
			Format:   r.Format,
			SizeHint: r.Size.Int64(),
		})
	}
	return descriptors
}

// ResolveDataset fetches a dataset and resolves its resources. Catalog
// errors are returned unchanged.
func ResolveDataset(ctx context.Context, catalog Catalog, datasetID string) ([]Descriptor, error) {
	pkg, err := catalog.PackageShow(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return Resolve(pkg), nil
}

func downloadable(r ckan.Resource) bool {
	if r.URL == "" || r.URLType == "api" {
		return false
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return false
	}
	return u.IsAbs() && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
