package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/maat/internal/ranking"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered entity types and their typologies",
		Long: `List the entity types declared in the catalog, in catalog order, with
the accessor each uses and the typologies it declares.

Example:
  maat list --catalog ./maat.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(rootOpts, true)
			if err != nil {
				return err
			}
			defer sess.close()

			out := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return out.Success(newHandlerList(sess.registry))
		},
	}
}

type handlerList []handlerInfo

type handlerInfo struct {
	EntityType string   `json:"entity_type"`
	Accessor   string   `json:"accessor"`
	Typologies []string `json:"typologies"`
}

func newHandlerList(reg *ranking.Registry) handlerList {
	list := handlerList{}
	for _, r := range reg.Registered() {
		accessor := r.Handler.AccessorName()
		if accessor == "" {
			accessor = ranking.DefaultAccessor
		}
		list = append(list, handlerInfo{
			EntityType: r.EntityType.Tag(),
			Accessor:   accessor,
			Typologies: r.Handler.Typologies(),
		})
	}
	return list
}

func (l handlerList) renderText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No registered handlers found.")
		return err
	}
	for _, h := range l {
		fmt.Fprintf(w, "%s (accessor: %s)\n", h.EntityType, h.Accessor)
		for _, typ := range h.Typologies {
			fmt.Fprintf(w, "  - %s\n", typ)
		}
	}
	return nil
}
