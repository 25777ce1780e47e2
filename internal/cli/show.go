package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/maat/internal/catalog"
	"github.com/roach88/maat/internal/ranking"
	"github.com/roach88/maat/internal/retrieval"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Desc   bool
	Offset int
	Limit  int
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <entity-type> <typology>",
		Short: "Print a ranking in rank order",
		Long: `Print the entities of one ranking in rank order, read from the active
buffer. A typology prefixed with "-" reads the ranking in descending order,
like --desc.

Example:
  maat show blog.article newest --limit 10
  maat show blog.article -- -newest`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().BoolVar(&opts.Desc, "desc", false, "descending order")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "positions to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "entities to print")

	return cmd
}

func runShow(cmd *cobra.Command, opts *ShowOptions, tag, ordering string) error {
	if opts.Offset < 0 || opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--offset and --limit must not be negative")
	}

	sess, err := openSession(opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer sess.close()

	reg, err := sess.registry.Lookup(tag)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown entity type", err)
	}
	q, err := retrieval.For(sess.registry, sess.store, reg.EntityType)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown entity type", err)
	}

	typology, dir := ranking.ParseOrdering(ordering)
	if opts.Desc {
		dir = ranking.Descending
	}

	entities, err := q.Page(commandContext(cmd), typology, dir, opts.Offset, opts.Limit)
	switch {
	case ranking.IsTypologyError(err):
		return WrapExitError(ExitCommandError, "unknown typology", err)
	case err != nil:
		return WrapExitError(ExitFailure, "failed to read ranking", err)
	}

	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	return out.Success(rankingPage{
		EntityType: reg.EntityType.Tag(),
		Typology:   typology,
		Direction:  dir.String(),
		Offset:     opts.Offset,
		Entities:   entities,
	})
}

type rankingPage struct {
	EntityType string `json:"entity_type"`
	Typology   string `json:"typology"`
	Direction  string `json:"direction"`
	Offset     int    `json:"offset"`
	Entities   []any  `json:"entities"`
}

func (p rankingPage) renderText(w io.Writer) error {
	fmt.Fprintf(w, "%s by %s (%s)\n", p.EntityType, p.Typology, p.Direction)
	if len(p.Entities) == 0 {
		_, err := fmt.Fprintln(w, "  (empty)")
		return err
	}
	for i, e := range p.Entities {
		fmt.Fprintf(w, "%4d  %s\n", p.Offset+i+1, formatEntity(e))
	}
	return nil
}

// formatEntity renders catalog rows as sorted key=value pairs.
func formatEntity(e any) string {
	row, ok := e.(catalog.Row)
	if !ok {
		return fmt.Sprint(e)
	}
	parts := make([]string, 0, len(row))
	for _, k := range slices.Sorted(maps.Keys(row)) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, row[k]))
	}
	return strings.Join(parts, " ")
}
