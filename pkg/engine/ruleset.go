package engine

import (
	"fmt"
	"sort"
)

// RuleSet is an ordered collection of uniquely named rules.
type RuleSet struct {
	rules []*Rule
}

// NewRuleSet creates a rule set holding rules in the given order.
func NewRuleSet(rules ...*Rule) *RuleSet {
	rs := &RuleSet{}
	for _, rule := range rules {
		rs.Add(rule)
	}
	return rs
}

// Add appends rule. It does not check names; use AddAll for that.
func (rs *RuleSet) Add(rule *Rule) {
	rule.sealed = true
	rs.rules = append(rs.rules, rule)
}

// AddAll appends rules when none of them share a name with each other or
// with a rule already in the set. On error the set is left unchanged.
func (rs *RuleSet) AddAll(rules []*Rule) error {
	seen := make(map[string]*Rule, len(rs.rules)+len(rules))
	for _, rule := range rs.rules {
		seen[rule.Name()] = rule
	}

	for _, rule := range rules {
		if existing, ok := seen[rule.Name()]; ok {
			return &LoadError{
				FilePath: rule.File(),
				Message:  fmt.Sprintf("already have a rule called %s from %s, cannot load another", rule.Name(), existing.File()),
				Cause:    ErrDuplicateRuleName,
			}
		}
		seen[rule.Name()] = rule
	}

	for _, rule := range rules {
		rs.Add(rule)
	}
	return nil
}

// ByPriority returns the rules sorted by ascending priority. Rules with
// equal priority keep their load order.
func (rs *RuleSet) ByPriority() []*Rule {
	sorted := rs.Rules()
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return sorted
}

// Select returns the rules for which fn returns true, in load order.
func (rs *RuleSet) Select(fn func(*Rule) bool) []*Rule {
	var selected []*Rule
	for _, rule := range rs.rules {
		if fn(rule) {
			selected = append(selected, rule)
		}
	}
	return selected
}

// Get returns the rule called name.
func (rs *RuleSet) Get(name string) (*Rule, bool) {
	for _, rule := range rs.rules {
		if rule.Name() == name {
			return rule, true
		}
	}
	return nil, false
}

// Rules returns the rules in load order.
func (rs *RuleSet) Rules() []*Rule {
	out := make([]*Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Names returns the rule names in load order.
func (rs *RuleSet) Names() []string {
	names := make([]string, len(rs.rules))
	for i, rule := range rs.rules {
		names[i] = rule.Name()
	}
	return names
}

// Size returns the number of rules.
func (rs *RuleSet) Size() int { return len(rs.rules) }

// IsEmpty reports whether the set holds no rules.
func (rs *RuleSet) IsEmpty() bool { return len(rs.rules) == 0 }
