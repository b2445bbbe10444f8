package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/podexport/backend/internal/domain"
	"github.com/podexport/backend/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// defaultResultLimit caps the identifier query when no limit is configured
const defaultResultLimit = 100

// Export modes used as metric labels
const (
	modeFull  = "full"
	modeQuick = "quick"
)

// ExportServiceConfig holds configuration for the export service
type ExportServiceConfig struct {
	ResultLimit       int
	ProbeConcurrency  int // 0 = probe all identifiers at once
	EnrichConcurrency int // 0 = enrich all products at once
}

// ExportService runs the cache-then-export flow for product searches
type ExportService struct {
	catalog           domain.ProductCatalog
	prober            domain.ImageProber
	store             domain.BundleStore
	resultLimit       int
	probeConcurrency  int
	enrichConcurrency int
	logger            zerolog.Logger
}

// NewExportService creates a new export service with dependencies
func NewExportService(
	catalog domain.ProductCatalog,
	prober domain.ImageProber,
	store domain.BundleStore,
	config ExportServiceConfig,
	logger zerolog.Logger,
) *ExportService {
	resultLimit := config.ResultLimit
	if resultLimit <= 0 {
		resultLimit = defaultResultLimit
	}

	return &ExportService{
		catalog:           catalog,
		prober:            prober,
		store:             store,
		resultLimit:       resultLimit,
		probeConcurrency:  config.ProbeConcurrency,
		enrichConcurrency: config.EnrichConcurrency,
		logger:            logger.With().Str("component", "export").Logger(),
	}
}

// Search returns the export bundle for a keyword.
// Flow: check cache -> product ids -> image filter -> nutrition -> details
// -> companies -> write files -> return
func (s *ExportService) Search(ctx context.Context, request domain.SearchRequest) (*domain.SearchResult, error) {
	keyword, err := NormalizeKeyword(request.Keyword)
	if err != nil {
		return nil, err
	}

	if bundle, ok := s.cached(ctx, keyword); ok {
		metrics.ExportsTotal.WithLabelValues(modeFull, domain.SourceCache).Inc()
		return &domain.SearchResult{
			Keyword:   keyword,
			Source:    domain.SourceCache,
			Products:  bundle.Products,
			Companies: bundle.Companies,
		}, nil
	}

	bundle, err := s.export(ctx, request.Field, keyword)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues(modeFull, "error").Inc()
		s.logger.Error().Err(err).Str("keyword", keyword).Msg("aborted export due to fatal error")
		return nil, err
	}

	metrics.ExportsTotal.WithLabelValues(modeFull, domain.SourceExport).Inc()
	return &domain.SearchResult{
		Keyword:   keyword,
		Source:    domain.SourceExport,
		Products:  bundle.Products,
		Companies: bundle.Companies,
	}, nil
}

// QuickSearch returns only the GTINs matching a keyword. It stops right
// after identifier retrieval and never writes export files.
func (s *ExportService) QuickSearch(ctx context.Context, request domain.SearchRequest) (*domain.QuickResult, error) {
	keyword, err := NormalizeKeyword(request.Keyword)
	if err != nil {
		return nil, err
	}

	if bundle, ok := s.cached(ctx, keyword); ok {
		metrics.ExportsTotal.WithLabelValues(modeQuick, domain.SourceCache).Inc()
		return &domain.QuickResult{
			Keyword:     keyword,
			Source:      domain.SourceCache,
			Identifiers: domain.Identifiers(bundle.Products),
		}, nil
	}

	ids, err := s.fetchIdentifiers(ctx, request.Field, keyword)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues(modeQuick, "error").Inc()
		return nil, err
	}

	s.logger.Info().Str("keyword", keyword).Msg("quick lookup, terminating before full export")
	metrics.ExportsTotal.WithLabelValues(modeQuick, domain.SourceExport).Inc()
	return &domain.QuickResult{
		Keyword:     keyword,
		Source:      domain.SourceExport,
		Identifiers: ids,
	}, nil
}

// cached returns a previously written bundle for keyword. Unreadable cache
// files are logged and treated as a miss so the export can replace them.
func (s *ExportService) cached(ctx context.Context, keyword string) (*domain.Bundle, bool) {
	bundle, err := s.store.Lookup(ctx, keyword)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("keyword", keyword).Msg("cache lookup failed, running export")
		}
		return nil, false
	}
	s.logger.Info().Str("keyword", keyword).Int("products", len(bundle.Products)).Msg("serving cached export")
	return bundle, true
}

// export runs the waterfall. Each stage receives the complete output of the
// previous one.
func (s *ExportService) export(ctx context.Context, field domain.SearchField, keyword string) (*domain.Bundle, error) {
	ids, err := s.fetchIdentifiers(ctx, field, keyword)
	if err != nil {
		return nil, err
	}

	products := s.filterByImage(ctx, ids)
	products = s.enrichNutrition(ctx, products)
	products = s.enrichDetails(ctx, products)
	companies := s.collectCompanies(ctx, products)

	bundle := &domain.Bundle{Products: products, Companies: companies}

	start := time.Now()
	err = s.store.Write(ctx, keyword, bundle)
	metrics.ObserveStage("write", start)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("keyword", keyword).
		Int("products", len(products)).
		Int("companies", len(companies)).
		Msg("export completed")
	return bundle, nil
}

// fetchIdentifiers retrieves the GTINs matching keyword. Failure here
// aborts the whole export.
func (s *ExportService) fetchIdentifiers(ctx context.Context, field domain.SearchField, keyword string) ([]string, error) {
	defer metrics.ObserveStage("identifiers", time.Now())

	ids, err := s.catalog.ProductIDs(ctx, field, keyword, s.resultLimit)
	if err != nil {
		return nil, fmt.Errorf("product id query failed: %w", err)
	}

	s.logger.Info().Str("keyword", keyword).Int("products", len(ids)).Msg("relevant product ids retrieved")
	return ids, nil
}

// filterByImage keeps the identifiers whose picture exists on the picture
// host. Probes run concurrently; failed probes drop the identifier.
func (s *ExportService) filterByImage(ctx context.Context, ids []string) []domain.Product {
	defer metrics.ObserveStage("images", time.Now())

	found := make([]*domain.Product, len(ids))

	var g errgroup.Group
	if s.probeConcurrency > 0 {
		g.SetLimit(s.probeConcurrency)
	}
	for i, id := range ids {
		g.Go(func() error {
			url, err := s.prober.Probe(ctx, id)
			if err != nil {
				s.logger.Debug().Err(err).Str("gtin", id).Msg("no image found for product, discarding")
				return nil
			}
			found[i] = &domain.Product{GTIN: id, Picture: url}
			return nil
		})
	}
	_ = g.Wait()

	products := make([]domain.Product, 0, len(ids))
	for _, p := range found {
		if p != nil {
			products = append(products, *p)
		}
	}

	s.logger.Info().Int("products", len(products)).Msg("filtered to products with images available")
	return products
}

// enrichNutrition returns a copy of products with nutrition facts merged in
func (s *ExportService) enrichNutrition(ctx context.Context, products []domain.Product) []domain.Product {
	defer metrics.ObserveStage("nutrition", time.Now())

	out := s.enrich(products, func(p domain.Product) domain.Product {
		nutrition, err := s.catalog.Nutrition(ctx, p.GTIN)
		if err != nil {
			s.logItemFailure(err, "gtin", p.GTIN, "nutrition")
			return p
		}
		return p.WithNutrition(*nutrition)
	})

	s.logger.Info().Int("products", len(out)).Msg("nutritional information retrieved")
	return out
}

// enrichDetails returns a copy of products with category, brand id and name
// merged in
func (s *ExportService) enrichDetails(ctx context.Context, products []domain.Product) []domain.Product {
	defer metrics.ObserveStage("details", time.Now())

	out := s.enrich(products, func(p domain.Product) domain.Product {
		details, err := s.catalog.Details(ctx, p.GTIN)
		if err != nil {
			s.logItemFailure(err, "gtin", p.GTIN, "meta-data")
			return p
		}
		return p.WithDetails(*details)
	})

	s.logger.Info().Int("products", len(out)).Msg("detailed meta-data retrieved")
	return out
}

// enrich applies fn to every product concurrently and returns the results
// in input order
func (s *ExportService) enrich(products []domain.Product, fn func(domain.Product) domain.Product) []domain.Product {
	out := make([]domain.Product, len(products))

	var g errgroup.Group
	if s.enrichConcurrency > 0 {
		g.SetLimit(s.enrichConcurrency)
	}
	for i, p := range products {
		g.Go(func() error {
			out[i] = fn(p)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// collectCompanies looks up brand metadata for every distinct BSIN. It runs
// sequentially so each brand is queried at most once.
func (s *ExportService) collectCompanies(ctx context.Context, products []domain.Product) []domain.Company {
	defer metrics.ObserveStage("companies", time.Now())

	companies := []domain.Company{}
	seen := make(map[string]struct{})

	for _, p := range products {
		if p.BSIN == "" {
			continue
		}
		if _, ok := seen[p.BSIN]; ok {
			continue
		}
		seen[p.BSIN] = struct{}{}

		brand, err := s.catalog.Brand(ctx, p.BSIN)
		switch {
		case err == nil:
			companies = append(companies, domain.Company{BSIN: p.BSIN, Name: brand.Name, Website: brand.Website})
		case errors.Is(err, domain.ErrNoRecords):
			s.logger.Debug().Str("bsin", p.BSIN).Msg("no company meta-data found")
			companies = append(companies, domain.Company{BSIN: p.BSIN})
		default:
			// The product keeps its BSIN even though the company is absent.
			s.logger.Warn().Err(err).Str("bsin", p.BSIN).Msg("problem with company meta-data query")
		}
	}

	s.logger.Info().
		Int("companies", len(companies)).
		Int("products", len(products)).
		Msg("relevant company meta-data retrieved")
	return companies
}

func (s *ExportService) logItemFailure(err error, key, value, what string) {
	if errors.Is(err, domain.ErrNoRecords) {
		s.logger.Debug().Str(key, value).Msgf("no %s found", what)
		return
	}
	s.logger.Warn().Err(err).Str(key, value).Msgf("problem with %s query", what)
}
