package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvolf/thermodash/internal/export"
	"github.com/mvolf/thermodash/internal/store"
)

var (
	exportSensor string
	exportFrom   string
	exportTo     string
	exportDB     string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export raw readings from the local database as CSV",
	Long: `Export reads the daemon's SQLite database directly, so it runs on the
daemon host. Bounds are dates (2025-11-01) or RFC3339 timestamps; the
end bound is exclusive.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if exportSensor == "" {
			return fmt.Errorf("--sensor is required")
		}
		start, err := parseBound(exportFrom)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		end, err := parseBound(exportTo)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
		if !end.After(start) {
			return fmt.Errorf("--to must be after --from")
		}

		dbPath := exportDB
		if dbPath == "" {
			dbPath = cfg.DatabasePath()
		}
		st, err := store.Open(dbPath)
		if err != nil {
			return err
		}
		defer st.Close()

		out := cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		n, err := export.Range(cmd.Context(), st, exportSensor, start, end, out)
		if err != nil {
			return err
		}
		if exportOut != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d readings to %s\n", n, exportOut)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportSensor, "sensor", "", "sensor ID to export")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "start bound, inclusive (date or RFC3339)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "end bound, exclusive (date or RFC3339)")
	exportCmd.Flags().StringVar(&exportDB, "db", "", "database path (default from config)")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default stdout)")
}

func parseBound(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("bound is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
