package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/podexport/backend/internal/domain"
	"github.com/podexport/backend/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Match modes for Lookup
const (
	MatchExact     = "exact"
	MatchSubstring = "substring"
)

const (
	productsSuffix  = ".json"
	companiesSuffix = "-companies.json"
	companiesMarker = "companies"
)

// FileStore writes export bundles as JSON files and serves them back as a
// cache. Files are read and written without locking; the last writer wins.
type FileStore struct {
	fs     afero.Fs
	dir    string
	match  string
	logger zerolog.Logger
}

// NewFileStore creates a store rooted at dir on fs
func NewFileStore(fs afero.Fs, dir, match string, logger zerolog.Logger) *FileStore {
	if match == "" {
		match = MatchExact
	}
	return &FileStore{
		fs:     fs,
		dir:    dir,
		match:  match,
		logger: logger.With().Str("component", "filestore").Logger(),
	}
}

// ProductsPath returns the path of the products file for keyword
func (s *FileStore) ProductsPath(keyword string) string {
	return filepath.Join(s.dir, keyword+productsSuffix)
}

// CompaniesPath returns the path of the companies file for keyword
func (s *FileStore) CompaniesPath(keyword string) string {
	return filepath.Join(s.dir, keyword+companiesSuffix)
}

// Write stores both collections of bundle under keyword. The two files are
// written concurrently; Write succeeds only if both writes do.
func (s *FileStore) Write(ctx context.Context, keyword string, bundle *domain.Bundle) error {
	if err := checkKeyword(keyword); err != nil {
		return err
	}
	if bundle == nil {
		bundle = &domain.Bundle{}
	}

	products := bundle.Products
	if products == nil {
		products = []domain.Product{}
	}
	companies := bundle.Companies
	if companies == nil {
		companies = []domain.Company{}
	}

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", domain.ErrIO, s.dir, err)
	}

	productsPath := s.ProductsPath(keyword)
	companiesPath := s.CompaniesPath(keyword)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.writeJSON(gctx, productsPath, products)
	})
	g.Go(func() error {
		return s.writeJSON(gctx, companiesPath, companies)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info().
		Str("products", productsPath).
		Str("companies", companiesPath).
		Msg("exported data written to files")
	return nil
}

func (s *FileStore) writeJSON(ctx context.Context, path string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %v", domain.ErrIO, path, err)
	}

	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("failed to write file")
		return fmt.Errorf("%w: writing %s: %v", domain.ErrIO, path, err)
	}
	return nil
}

// Lookup returns the bundle previously written for keyword, or
// domain.ErrCacheMiss when there is none.
func (s *FileStore) Lookup(ctx context.Context, keyword string) (*domain.Bundle, error) {
	bundle, err := s.lookup(ctx, keyword)
	switch {
	case err == nil:
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	case errors.Is(err, domain.ErrCacheMiss):
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	default:
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
	}
	return bundle, err
}

func (s *FileStore) lookup(ctx context.Context, keyword string) (*domain.Bundle, error) {
	if err := checkKeyword(keyword); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	productsPath, err := s.findProducts(keyword)
	if err != nil {
		return nil, err
	}

	var products []domain.Product
	if err := s.readJSON(productsPath, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}

	companiesPath := strings.TrimSuffix(productsPath, productsSuffix) + companiesSuffix
	companies := []domain.Company{}
	if err := s.readJSON(companiesPath, &companies); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		s.logger.Debug().Str("path", companiesPath).Msg("cached export has no companies file")
	}
	if companies == nil {
		companies = []domain.Company{}
	}

	s.logger.Debug().Str("keyword", keyword).Str("path", productsPath).Msg("serving cached export")
	return &domain.Bundle{Products: products, Companies: companies}, nil
}

// findProducts resolves the products file for keyword according to the
// configured match mode
func (s *FileStore) findProducts(keyword string) (string, error) {
	if s.match == MatchExact {
		path := s.ProductsPath(keyword)
		info, err := s.fs.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", domain.ErrCacheMiss
			}
			return "", fmt.Errorf("%w: %v", domain.ErrIO, err)
		}
		if info.IsDir() {
			return "", domain.ErrCacheMiss
		}
		return path, nil
	}

	// Substring mode: the first file (by name) whose name contains the
	// keyword and is not a companies file. "tomato" matches "tomatoes.json".
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domain.ErrCacheMiss
		}
		return "", fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, productsSuffix) {
			continue
		}
		if strings.Contains(name, keyword) && !strings.Contains(name, companiesMarker) {
			return filepath.Join(s.dir, name), nil
		}
	}
	return "", domain.ErrCacheMiss
}

// readJSON decodes the file at path into v. A missing file is reported
// with os.ErrNotExist in the chain.
func (s *FileStore) readJSON(path string, v interface{}) error {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", domain.ErrIO, path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrParseFailure, path, err)
	}
	return nil
}

// checkKeyword rejects keywords that would escape the export directory
func checkKeyword(keyword string) error {
	if keyword == "" || keyword != filepath.Base(keyword) || keyword == "." || keyword == ".." {
		return fmt.Errorf("%w: keyword %q is not a valid file name", domain.ErrInvalidRequest, keyword)
	}
	return nil
}
