package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/spice-reconcile/internal/csvimport"
	"github.com/Veraticus/spice-reconcile/internal/model"
	"github.com/Veraticus/spice-reconcile/internal/ofx"
)

// fileParser parses one opened file into transactions.
type fileParser func(ctx context.Context, f *os.File) ([]model.Transaction, error)

// loadFiles parses every file and merges the results. A transaction already
// seen in an earlier file, by hash, is dropped so overlapping exports do not
// double count. Files that fail to parse are logged and skipped.
func loadFiles(ctx context.Context, files []string, parse fileParser) ([]model.Transaction, error) {
	var all []model.Transaction
	seen := make(map[string]bool)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		txs, err := parsePath(ctx, path, parse)
		if err != nil {
			slog.Error("Failed to import file", "file", path, "error", err)
			continue
		}

		fileHashes := make(map[string]bool, len(txs))
		added := 0
		for _, tx := range txs {
			hash := tx.GenerateHash()
			if seen[hash] {
				continue
			}
			fileHashes[hash] = true
			all = append(all, tx)
			added++
		}
		for hash := range fileHashes {
			seen[hash] = true
		}

		slog.Info("Processed file",
			"file", filepath.Base(path),
			"transactions_found", len(txs),
			"added", added,
			"overlapping", len(txs)-added)
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("no transactions found in %d file(s)", len(files))
	}
	return all, nil
}

func parsePath(ctx context.Context, path string, parse fileParser) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return parse(ctx, f)
}

// csvFileParser adapts csvimport for loadFiles. Skipped rows are logged.
func csvFileParser(opts csvimport.Options) fileParser {
	parser := csvimport.NewParser(opts)
	return func(ctx context.Context, f *os.File) ([]model.Transaction, error) {
		result, err := parser.ParseFile(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, skipped := range result.Skipped {
			slog.Warn("Skipped malformed row",
				"file", filepath.Base(f.Name()),
				"line", skipped.Line,
				"error", skipped.Err)
		}
		return result.Transactions, nil
	}
}

// ofxFileParser adapts the OFX parser for loadFiles.
func ofxFileParser() fileParser {
	parser := ofx.NewParser(slog.Default())
	return func(ctx context.Context, f *os.File) ([]model.Transaction, error) {
		return parser.ParseFile(ctx, f)
	}
}

// fileLabel names an import by its files.
func fileLabel(files []string) string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	label := strings.Join(names, ", ")
	if len(files) > 3 {
		label = fmt.Sprintf("%s, %s and %d more", names[0], names[1], len(files)-2)
	}
	return label
}
