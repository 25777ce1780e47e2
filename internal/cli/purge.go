package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <selector>...",
		Short: "Delete stored rankings",
		Long: `Delete the stored rows, in both buffers, of the selected rankings.

Selectors use the flush syntax. The catalog is not consulted, so rankings of
entity types or typologies that were removed from it can be purged.

Example:
  maat purge blog.article:trending
  maat purge legacy.post`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			selectors := make([]Selector, 0, len(args))
			for _, arg := range args {
				sel, err := ParseSelector(arg)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid selector", err)
				}
				selectors = append(selectors, sel)
			}

			sess, err := openSession(rootOpts, false)
			if err != nil {
				return err
			}
			defer sess.close()

			ctx := commandContext(cmd)
			result := purgeResult{}
			for _, sel := range selectors {
				typologies := sel.Typologies
				if len(typologies) == 0 {
					typologies = []string{""}
				}
				for _, typ := range typologies {
					n, err := sess.store.DeleteRankings(ctx, sel.EntityType, typ)
					if err != nil {
						return WrapExitError(ExitFailure, "failed to purge rankings", err)
					}
					sess.logger.Info("rankings purged", "entity_type", sel.EntityType, "typology", typ, "rows", n)
					result = append(result, purged{EntityType: sel.EntityType, Typology: typ, Rows: n})
				}
			}

			out := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return out.Success(result)
		},
	}
}

type purgeResult []purged

type purged struct {
	EntityType string `json:"entity_type"`
	Typology   string `json:"typology,omitempty"`
	Rows       int64  `json:"rows"`
}

func (r purgeResult) renderText(w io.Writer) error {
	for _, p := range r {
		target := p.EntityType
		if p.Typology != "" {
			target += ":" + p.Typology
		}
		fmt.Fprintf(w, "Purged %d rows of %s\n", p.Rows, target)
	}
	return nil
}
