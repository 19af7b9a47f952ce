package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/einsums/docpost/internal/config"
)

// BuildRule turns one configured rule into a line transformer.
func BuildRule(rule config.RuleConfig) (Transformer, error) {
	switch strings.ToLower(rule.Type) {
	case "identity":
		return Identity{}, nil
	case "trimtrailingspace":
		return TrimTrailingSpace{}, nil
	case "normalizenewlines":
		return NormalizeNewlines{}, nil
	case "regexreplace":
		if rule.Pattern == "" {
			return nil, fmt.Errorf("regexreplace: pattern is required")
		}
		return NewRegexReplace(rule.Pattern, rule.Replace)
	default:
		return nil, fmt.Errorf("unknown rule type: %s", rule.Type)
	}
}

// AddConfigModes registers every mode declared in cfg. Rules are compiled
// up front so a bad pattern is reported before any file is read.
func (r *Registry) AddConfigModes(cfg *config.Config) error {
	if cfg == nil || len(cfg.Modes) == 0 {
		return nil
	}
	names := make([]string, 0, len(cfg.Modes))
	for name := range cfg.Modes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mode := cfg.Modes[name]
		if mode == nil {
			return fmt.Errorf("mode %s: no rules", name)
		}
		steps := make([]Transformer, 0, len(mode.Rules))
		for i, rule := range mode.Rules {
			step, err := BuildRule(rule)
			if err != nil {
				return fmt.Errorf("mode %s rule %d: %w", name, i, err)
			}
			steps = append(steps, step)
		}
		chain := NewChain(steps...)
		if err := r.Register(name, func() (Transformer, error) { return chain, nil }); err != nil {
			return err
		}
	}
	return nil
}
