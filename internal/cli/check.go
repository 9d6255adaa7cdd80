package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"tablebook/internal/availability"
	"tablebook/internal/models"
	"tablebook/internal/nlparse"
	"tablebook/internal/slots"

	"github.com/spf13/cobra"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var date, at string
	var party int

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check seats for a party at a time and list the nearest alternatives",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), opts.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			day, err := a.parser.ParseDate(date)
			if err != nil {
				return fmt.Errorf("date %q: %w", date, err)
			}
			t, ok := nlparse.ParseTime(at)
			if !ok {
				return fmt.Errorf("time %q: not understood", at)
			}

			seats, err := a.engine.AvailableSeats(cmd.Context(), day, t, a.engine.DiningDuration())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s at %s: %d seats free for a %s sitting\n",
				nlparse.FormatDateForSpeech(day), nlparse.FormatTimeForSpeech(t.String()), seats,
				slots.FormatDuration(a.engine.DiningDuration()))

			if seats >= party {
				fmt.Fprintf(out, "party of %d: available\n", party)
				return nil
			}

			candidates, err := a.engine.FindAvailableSlots(cmd.Context(), day, party, &t)
			if err != nil {
				return err
			}
			shortlist := availability.Rank(candidates, &t, a.cfg.Reservation.MaxAlternatives)
			if shortlist.NoAlternatives() {
				fmt.Fprintf(out, "party of %d: no availability near %s\n", party, t)
				return nil
			}
			fmt.Fprintf(out, "party of %d: fully booked, alternatives:\n", party)
			return writeCandidates(out, shortlist.Candidates)
		},
	}

	cmd.Flags().StringVar(&date, "date", "today", "date, e.g. 2026-12-05, tomorrow, friday")
	cmd.Flags().StringVar(&at, "time", "7pm", "time, e.g. 19:30, 7:30 pm, dinner")
	cmd.Flags().IntVar(&party, "party", 2, "party size")
	return cmd
}

func writeCandidates(out io.Writer, candidates []availability.Candidate) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSEATS\tDISTANCE")
	for _, c := range candidates {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", c.Slot.Time, c.AvailableSeats, slots.FormatDuration(c.Distance))
	}
	return tw.Flush()
}

func newSlotsCmd(opts *rootOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Show capacity and free seats for every slot on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), opts.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			day, err := a.parser.ParseDate(date)
			if err != nil {
				return fmt.Errorf("date %q: %w", date, err)
			}

			load, err := a.engine.DayOverview(cmd.Context(), day)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s sittings)\n", day.Format(models.DateLayout), slots.FormatDuration(a.engine.DiningDuration()))
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tPEAK\tMAX\tFREE")
			for _, l := range load {
				peak := ""
				if l.Peak {
					peak = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", l.Slot.Time, peak, l.MaxCapacity, l.AvailableSeats)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&date, "date", "today", "date, e.g. 2026-12-05, tomorrow, friday")
	return cmd
}
