package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mvolf/thermodash/internal/client"
	"github.com/mvolf/thermodash/internal/config"
)

var sensorsCmd = &cobra.Command{
	Use:   "sensors",
	Short: "List sensors known to the daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		c := newAPIClient(cfg)
		sensors, _, err := c.Sensors(cmd.Context())
		if err != nil {
			return err
		}
		if len(sensors) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no sensors")
			return nil
		}

		for _, s := range sensors {
			latest, _, err := c.Latest(cmd.Context(), s.ID)
			if err != nil || latest.Empty() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", s.ID, s.Name)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-20s %s %s (%s)\n",
				s.ID, s.Name,
				metricText(latest.Temperature, "°C"),
				metricText(latest.Humidity, "%"),
				latest.Timestamp)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sensorsCmd)
}

func newAPIClient(cfg *config.Config) *client.Client {
	return client.New(cfg.TUI.ServerURL)
}

func metricText(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%s", *v, unit)
}
