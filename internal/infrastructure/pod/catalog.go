package pod

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/podexport/backend/internal/domain"
	"github.com/rs/zerolog"
)

// Catalog implements the typed product lookups on top of a QueryClient
type Catalog struct {
	client domain.QueryClient
	logger zerolog.Logger
}

// NewCatalog creates a catalog backed by client
func NewCatalog(client domain.QueryClient, logger zerolog.Logger) *Catalog {
	return &Catalog{
		client: client,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// ProductIDs returns the GTINs of branded products matching keyword on field
func (c *Catalog) ProductIDs(ctx context.Context, field domain.SearchField, keyword string, limit int) ([]string, error) {
	expr, err := productIDsExpr(field, keyword)
	if err != nil {
		return nil, err
	}

	records, err := c.client.Query(ctx, expr, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		id, err := MapIdentifier(record)
		if err != nil {
			c.logger.Warn().Err(err).Msg("skipping malformed identifier")
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Nutrition returns the nutrition facts of one product
func (c *Catalog) Nutrition(ctx context.Context, gtin string) (*domain.Nutrition, error) {
	record, err := c.first(ctx, nutritionExpr(gtin))
	if err != nil {
		return nil, err
	}
	return MapToNutrition(record)
}

// Details returns category, brand id and name of one product
func (c *Catalog) Details(ctx context.Context, gtin string) (*domain.ProductDetails, error) {
	record, err := c.first(ctx, detailsExpr(gtin))
	if err != nil {
		return nil, err
	}
	return MapToDetails(record)
}

// Brand returns brand metadata for one BSIN
func (c *Catalog) Brand(ctx context.Context, bsin string) (*domain.Brand, error) {
	record, err := c.first(ctx, brandExpr(bsin))
	if err != nil {
		return nil, err
	}
	return MapToBrand(record)
}

// first runs a single-row query and returns its only record
func (c *Catalog) first(ctx context.Context, expr string) (json.RawMessage, error) {
	records, err := c.client.Query(ctx, expr, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoRecords, expr)
	}
	return records[0], nil
}
