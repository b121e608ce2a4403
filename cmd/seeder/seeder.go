package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/ports"
)

// Seeder loads products into the catalog, creating any categories they reference
type Seeder struct {
	catalog    ports.CatalogService
	classifier *CategoryClassifier
	dryRun     bool
	logger     *slog.Logger
}

// NewSeeder creates a seeder on top of the catalog service
func NewSeeder(catalog ports.CatalogService, dryRun bool, logger *slog.Logger) *Seeder {
	return &Seeder{
		catalog:    catalog,
		classifier: NewCategoryClassifier(),
		dryRun:     dryRun,
		logger:     logger.With(slog.String("component", "seeder")),
	}
}

// SeedResult summarizes one batch
type SeedResult struct {
	Rows              int
	Imported          int
	CategoriesCreated int
	RowErrors         []string
}

// Seed classifies the products, creates missing categories and imports the batch
func (s *Seeder) Seed(ctx context.Context, products []domain.Product) (*SeedResult, error) {
	s.classifier.Fill(products)
	res := &SeedResult{Rows: len(products)}

	if s.dryRun {
		for _, p := range products {
			s.logger.InfoContext(ctx, "would import product",
				slog.String("title", p.Title),
				slog.String("category", p.CategoryName),
				slog.Int("variants", len(p.Variants)))
		}
		return res, nil
	}

	created, err := s.ensureCategories(ctx, products)
	res.CategoriesCreated = created
	if err != nil {
		return res, err
	}

	imported, err := s.catalog.ImportProducts(ctx, products)
	res.Imported = imported
	if err != nil {
		var joined interface{ Unwrap() []error }
		if !errors.As(err, &joined) {
			return res, err
		}
		for _, e := range joined.Unwrap() {
			res.RowErrors = append(res.RowErrors, e.Error())
		}
	}
	return res, nil
}

func (s *Seeder) ensureCategories(ctx context.Context, products []domain.Product) (int, error) {
	tree, err := s.catalog.CategoryTree(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load categories: %w", err)
	}

	known := make(map[string]bool)
	var walk func([]*domain.Category)
	walk = func(nodes []*domain.Category) {
		for _, c := range nodes {
			known[strings.ToLower(c.Name)] = true
			known[c.Slug] = true
			walk(c.Children)
		}
	}
	walk(tree)

	var missing []string
	for _, p := range products {
		name := strings.TrimSpace(p.CategoryName)
		if name == "" || known[strings.ToLower(name)] || known[domain.Slugify(name)] {
			continue
		}
		if !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}

	created := 0
	for _, name := range missing {
		if err := s.catalog.CreateCategory(ctx, &domain.Category{Name: name}); err != nil {
			return created, fmt.Errorf("failed to create category %q: %w", name, err)
		}
		s.logger.InfoContext(ctx, "category created", slog.String("name", name))
		created++
	}
	return created, nil
}

// seedState tracks which workbooks were already imported
type seedState struct {
	ProcessedFiles []string  `json:"processed_files"`
	LastUpdate     time.Time `json:"last_update"`
}

// loadState reads the state file. A missing file is a fresh start; an unreadable
// one is reported and ignored, so every workbook is imported again.
func loadState(path string, logger *slog.Logger) seedState {
	var st seedState
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Failed to read seed state, starting fresh",
				slog.String("path", path),
				"err", err)
		}
		return st
	}
	if err := json.Unmarshal(data, &st); err != nil {
		logger.Warn("Corrupt seed state, every workbook will be imported again",
			slog.String("path", path),
			"err", err)
		return seedState{}
	}
	return st
}

func (st *seedState) done(file string) bool {
	return slices.Contains(st.ProcessedFiles, file)
}

func (st *seedState) save(path string, file string) error {
	st.ProcessedFiles = append(st.ProcessedFiles, file)
	st.LastUpdate = time.Now()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
