package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-reconcile/internal/model"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import transactions from OFX or QFX (Quicken) files exported from your
bank, dropping any that are already in the ledger.

Examples:
  # Import single file
  spice import-ofx ~/Downloads/chase_jan_2024.qfx

  # Import all QFX files in a directory
  spice import-ofx ~/Downloads/*.qfx

  # Import from multiple directories
  spice import-ofx ~/Downloads/Chase/*.qfx ~/Downloads/Ally/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	addImportFlags(cmd)

	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	files, err := expandFileArgs(args)
	if err != nil {
		return err
	}

	parse := ofxFileParser()
	return runImportCommand(cmd, model.SourceOFX, func(ctx context.Context) (string, []model.Transaction, error) {
		txs, err := loadFiles(ctx, files, parse)
		return fileLabel(files), txs, err
	})
}
