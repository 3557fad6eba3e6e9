package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-reconcile/internal/config"
	"github.com/Veraticus/spice-reconcile/internal/model"
	"github.com/Veraticus/spice-reconcile/internal/storage"
)

// databasePath returns the configured database path with ~ and variables
// expanded.
func databasePath() string {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		return filepath.Join(config.DataDir(), "spice.db")
	}
	return config.ExpandPath(dbPath)
}

// initStorage opens the database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	return openStorage(ctx, databasePath())
}

func openStorage(ctx context.Context, dbPath string) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// expandFileArgs resolves glob patterns to file paths. Patterns that match
// nothing are kept when they name an existing file.
func expandFileArgs(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err != nil {
				slog.Warn("No files found matching pattern", "pattern", pattern)
				continue
			}
			matches = []string{pattern}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}

	if len(files) == 0 {
		return nil, errors.New("no files found to import")
	}
	return files, nil
}

// addDateRangeFlags registers the feed date range flags on cmd.
func addDateRangeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("start-date", "s", "", "Start date (format: 2006-01-02)")
	cmd.Flags().StringP("end-date", "e", "", "End date (format: 2006-01-02)")
	cmd.Flags().Int("days", 30, "Number of days to fetch when no start date is given")
}

// parseDateRange reads the flags added by addDateRangeFlags. The end date
// defaults to today and the start date to days before the end.
func parseDateRange(cmd *cobra.Command, now time.Time) (time.Time, time.Time, error) {
	startStr, _ := cmd.Flags().GetString("start-date")
	endStr, _ := cmd.Flags().GetString("end-date")
	days, _ := cmd.Flags().GetInt("days")

	end := now
	if endStr != "" {
		parsed, err := time.Parse(model.DateLayout, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", endStr, err)
		}
		end = parsed
	}

	start := end.AddDate(0, 0, -days)
	if startStr != "" {
		parsed, err := time.Parse(model.DateLayout, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", startStr, err)
		}
		start = parsed
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start date %s is after end date %s",
			start.Format(model.DateLayout), end.Format(model.DateLayout))
	}
	return start, end, nil
}
