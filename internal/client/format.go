package client

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/okian/matchcast/internal/domain/types"
)

// WriteReport renders a report as an aligned table followed by the accuracy.
func WriteReport(w io.Writer, report types.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tVENUE\tOPPONENT\tPREDICTED\tACTUAL")
	for _, r := range report.Results {
		date := "-"
		if r.Date != nil {
			date = *r.Date
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", date, r.Venue, r.Opponent, r.Prediction, r.ActualResult)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\naccuracy: %.2f%% over %d matches\n", report.Accuracy, len(report.Results))
	return err
}
