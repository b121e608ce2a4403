// Command seeder loads catalog workbooks, or a generated demo catalog, into the database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ammerola/storefront-be/internal/adapters/db"
	"github.com/ammerola/storefront-be/internal/adapters/spreadsheet"
	"github.com/ammerola/storefront-be/internal/core/domain"
	"github.com/ammerola/storefront-be/internal/core/services"
	"github.com/ammerola/storefront-be/internal/pkg/config"
	"github.com/ammerola/storefront-be/internal/pkg/logger"
)

func main() {
	var (
		catalogDir = flag.String("dir", "", "Directory containing .xlsx catalog workbooks")
		demo       = flag.Bool("demo", false, "Seed the generated demo catalog")
		demoSeed   = flag.Int64("demo-seed", 1, "Random seed for demo stock levels")
		stateFile  = flag.String("state", "./.seed_state.json", "State file for tracking imported workbooks")
		logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		dryRun     = flag.Bool("dry-run", false, "Preview changes without modifying database")
		force      = flag.Bool("force", false, "Reimport workbooks already listed in the state file")
	)
	flag.Parse()

	slogger := logger.SetupLogger(*logLevel, "json", "storefront-seeder", "dev", "").Logger

	if *catalogDir == "" && !*demo {
		fmt.Fprintln(os.Stderr, "nothing to seed: pass -dir or -demo")
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	var catalog *services.CatalogService
	if !*dryRun {
		cfg, err := config.Load(slogger)
		if err != nil {
			slogger.Error("Failed to load configuration", "err", err)
			os.Exit(1)
		}
		database, err := db.NewDatabase(ctx, &db.Config{
			Host:           cfg.Database.Host,
			Port:           cfg.Database.Port,
			User:           cfg.Database.User,
			Password:       cfg.Database.Password,
			Database:       cfg.Database.Name,
			SSLMode:        cfg.Database.SSLMode,
			MaxConnections: 4,
			MinConnections: 1,
			ConnectTimeout: cfg.Database.ConnectTimeout,
		}, slogger)
		if err != nil {
			slogger.Error("Failed to connect to database", "err", err)
			os.Exit(1)
		}
		defer database.Close()

		// The API's caches expire on their own TTL; the seeder does not touch Redis
		catalog = services.NewCatalogService(services.CatalogDeps{
			Products:   db.NewProductRepository(database, slogger),
			Categories: db.NewCategoryRepository(database, slogger),
		}, slogger)
	}

	seeder := NewSeeder(catalog, *dryRun, slogger)

	var (
		totalRows     int
		totalImported int
		failed        []string
	)
	report := func(name string, res *SeedResult, err error) {
		if err != nil {
			fmt.Printf("ERROR: %s - %v\n", name, err)
			failed = append(failed, name)
			return
		}
		totalRows += res.Rows
		totalImported += res.Imported
		fmt.Printf("SUCCESS: %s - %d/%d products, %d new categories\n", name, res.Imported, res.Rows, res.CategoriesCreated)
		for _, e := range res.RowErrors {
			fmt.Printf("  - %s\n", e)
		}
	}

	if *demo {
		res, err := seeder.Seed(ctx, demoCatalog(*demoSeed))
		report("demo catalog", res, err)
	}

	if *catalogDir != "" {
		files, err := filepath.Glob(filepath.Join(*catalogDir, "*.xlsx"))
		if err != nil {
			slogger.Error("Failed to list workbooks", "err", err)
			os.Exit(1)
		}

		state := loadState(*stateFile, slogger)
		for i, file := range files {
			name := filepath.Base(file)
			fmt.Printf("PROGRESS: Processing %d/%d: %s\n", i+1, len(files), name)

			if !*force && state.done(name) {
				slogger.Info("Skipping already imported workbook", slog.String("file", name))
				continue
			}

			products, err := readWorkbook(file)
			if err != nil && len(products) == 0 {
				report(name, nil, err)
				continue
			}
			if err != nil {
				fmt.Printf("WARNING: %s has unreadable rows: %v\n", name, err)
			}

			res, err := seeder.Seed(ctx, products)
			report(name, res, err)
			if err == nil && !*dryRun {
				if err := state.save(*stateFile, name); err != nil {
					slogger.Warn("Failed to save seed state", "err", err)
				}
			}
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SEEDING SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Products read:     %d\n", totalRows)
	fmt.Printf("Products imported: %d\n", totalImported)
	if len(failed) > 0 {
		fmt.Printf("Failed batches (%d):\n", len(failed))
		for _, f := range failed {
			fmt.Printf("  - %s\n", f)
		}
	}

	slogger.Info("Seed operation completed",
		slog.Int("rows", totalRows),
		slog.Int("imported", totalImported),
		slog.Int("failed_batches", len(failed)))

	if *dryRun {
		fmt.Println("\n[DRY RUN] No changes were made to the database")
	}
}

// readWorkbook parses a catalog workbook. Row errors come back alongside the good rows.
func readWorkbook(path string) ([]domain.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return spreadsheet.ReadCatalog(data)
}
