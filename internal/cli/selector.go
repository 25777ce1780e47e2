package cli

import (
	"fmt"
	"strings"

	"github.com/roach88/maat/internal/flush"
	"github.com/roach88/maat/internal/ranking"
)

// Selector picks an entity type and, optionally, some of its typologies:
// "blog.article" or "blog.article:newest,popular".
type Selector struct {
	EntityType string
	Typologies []string // nil means every declared typology
}

// ParseSelector parses "entityType[:typ1,typ2]".
func ParseSelector(s string) (Selector, error) {
	tag, list, hasList := strings.Cut(s, ":")
	tag = ranking.NormalizeName(tag)
	if tag == "" {
		return Selector{}, fmt.Errorf("invalid selector %q: missing entity type", s)
	}

	sel := Selector{EntityType: tag}
	if !hasList {
		return sel, nil
	}
	for _, name := range strings.Split(list, ",") {
		name = ranking.NormalizeName(name)
		if name == "" {
			return Selector{}, fmt.Errorf("invalid selector %q: empty typology name", s)
		}
		sel.Typologies = append(sel.Typologies, name)
	}
	return sel, nil
}

func (s Selector) String() string {
	if len(s.Typologies) == 0 {
		return s.EntityType
	}
	return s.EntityType + ":" + strings.Join(s.Typologies, ",")
}

// resolveTargets turns selectors into flush targets. No selectors selects
// every registered entity type. Selectors naming the same entity type are
// merged so no pair is scheduled twice.
func resolveTargets(reg *ranking.Registry, args []string) ([]flush.Target, error) {
	if len(args) == 0 {
		regs := reg.Registered()
		targets := make([]flush.Target, len(regs))
		for i, r := range regs {
			targets[i] = flush.Target{EntityType: r.EntityType}
		}
		return targets, nil
	}

	var targets []flush.Target
	index := make(map[string]int)
	for _, arg := range args {
		sel, err := ParseSelector(arg)
		if err != nil {
			return nil, err
		}
		r, err := reg.Lookup(sel.EntityType)
		if err != nil {
			return nil, err
		}

		i, seen := index[sel.EntityType]
		if !seen {
			index[sel.EntityType] = len(targets)
			targets = append(targets, flush.Target{EntityType: r.EntityType, Typologies: sel.Typologies})
			continue
		}
		prev := &targets[i]
		if prev.Typologies == nil || sel.Typologies == nil {
			prev.Typologies = nil
			continue
		}
		prev.Typologies = append(prev.Typologies, sel.Typologies...)
	}
	return targets, nil
}
