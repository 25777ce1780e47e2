package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/maat/internal/store"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show stored ranking sizes",
		Long: `Show the number of stored rows per entity type, typology and buffer.

Rows left in the staging buffer belong to a flush that did not finish; the
next flush of that typology clears them.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(rootOpts, false)
			if err != nil {
				return err
			}
			defer sess.close()

			stats, err := sess.store.Stats(commandContext(cmd))
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read stats", err)
			}

			out := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return out.Success(newStatsTable(stats))
		},
	}
}

type statsTable []statsRow

type statsRow struct {
	EntityType string `json:"entity_type"`
	Typology   string `json:"typology"`
	Buffer     string `json:"buffer"`
	Rows       int64  `json:"rows"`
}

func newStatsTable(stats []store.GroupStat) statsTable {
	table := make(statsTable, len(stats))
	for i, st := range stats {
		table[i] = statsRow{
			EntityType: st.EntityType,
			Typology:   st.Typology,
			Buffer:     st.Buffer.String(),
			Rows:       st.Rows,
		}
	}
	return table
}

func (t statsTable) renderText(w io.Writer) error {
	if len(t) == 0 {
		_, err := fmt.Fprintln(w, "No rankings stored.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY TYPE\tTYPOLOGY\tBUFFER\tROWS")
	for _, r := range t {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.EntityType, r.Typology, r.Buffer, r.Rows)
	}
	return tw.Flush()
}
