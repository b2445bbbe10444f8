package domain

import (
	"context"
	"encoding/json"
)

// QueryClient executes a single query against the remote POD data service
type QueryClient interface {
	Query(ctx context.Context, expr string, limit int) ([]json.RawMessage, error)
}

// ProductCatalog defines the typed lookups the export pipeline needs
type ProductCatalog interface {
	ProductIDs(ctx context.Context, field SearchField, keyword string, limit int) ([]string, error)
	Nutrition(ctx context.Context, gtin string) (*Nutrition, error)
	Details(ctx context.Context, gtin string) (*ProductDetails, error)
	Brand(ctx context.Context, bsin string) (*Brand, error)
}

// ImageProber checks whether a product picture exists and returns its URL
type ImageProber interface {
	Probe(ctx context.Context, gtin string) (string, error)
}

// BundleStore persists export bundles and finds previously written ones
type BundleStore interface {
	Write(ctx context.Context, keyword string, bundle *Bundle) error
	Lookup(ctx context.Context, keyword string) (*Bundle, error)
}
