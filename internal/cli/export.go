package cli

import (
	"fmt"
	"time"

	"tablebook/internal/export"
	"tablebook/internal/models"

	"github.com/spf13/cobra"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var date, outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a day's bookings and seat load to an XLSX file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), opts.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			// Past days are allowed here, so plain dates bypass the parser.
			day, err := time.ParseInLocation(models.DateLayout, date, a.parser.Location())
			if err != nil {
				if day, err = a.parser.ParseDate(date); err != nil {
					return fmt.Errorf("date %q: %w", date, err)
				}
			}

			bookings, err := a.store.BookingsOnDate(cmd.Context(), day)
			if err != nil {
				return fmt.Errorf("load bookings: %w", err)
			}
			load, err := a.engine.DayOverview(cmd.Context(), day)
			if err != nil {
				return err
			}

			sheet, err := export.DaySheet(day, bookings, load)
			if err != nil {
				return err
			}
			defer sheet.Close()

			if outPath == "" {
				outPath = fmt.Sprintf("bookings_%s.xlsx", day.Format(models.DateLayout))
			}
			if err := sheet.SaveToFile(outPath); err != nil {
				return fmt.Errorf("save %s: %w", outPath, err)
			}

			a.logger.Info().Str("path", outPath).Int("bookings", len(bookings)).Msg("day sheet exported")
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "today", "date to export, e.g. 2026-12-05 or tomorrow")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default bookings_<date>.xlsx)")
	return cmd
}
