package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mockmaster/internal/backup"
	"mockmaster/internal/logger"
)

// NewExportCmd writes the full store to a backup archive.
func NewExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export all records and images to a backup archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeStore(store)

			name := backup.ArchiveName(time.Now())
			if len(args) == 1 {
				name = args[0]
			}

			f, err := os.Create(name)
			if err != nil {
				return fmt.Errorf("failed to create archive file: %w", err)
			}
			defer f.Close()

			codec := backup.NewCodec(store, logger.Get())
			count, err := codec.Export(cmd.Context(), f)
			if err != nil {
				return err
			}

			fmt.Printf("Exported %d records to %s\n", count, name)
			return nil
		},
	}
}

// NewImportCmd restores records from a backup archive. Imported records get
// fresh ids; existing data is untouched.
func NewImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import records from a backup archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeStore(store)

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open archive file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("failed to stat archive file: %w", err)
			}

			codec := backup.NewCodec(store, logger.Get())
			count, err := codec.Import(cmd.Context(), f, info.Size())
			if err != nil {
				return err
			}

			fmt.Printf("Imported %d records from %s\n", count, args[0])
			return nil
		},
	}
}
