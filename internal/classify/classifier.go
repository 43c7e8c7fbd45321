// Package classify tags findings with a deterministic semantic category.
//
// Rules are an ordered keyword table embedded at build time: the first
// rule whose keywords all match the finding's text wins. Classification
// is a total function — anything the rules miss is TypeUnknown, never an
// error — because both dedup merge keys and the graph's relationship
// detectors key off the result.
package classify

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/perfsleuth/perfsleuth/internal/types"
)

//go:embed rules.yaml
var rulesYAML []byte

// Rule matches a semantic type when every all_of keyword and at least
// one any_of keyword (if any are listed) appear in the finding text.
type Rule struct {
	Type  types.SemanticType `yaml:"type"`
	AllOf []string           `yaml:"all_of"`
	AnyOf []string           `yaml:"any_of"`
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// Classifier applies the ordered rule set. Stateless after construction.
type Classifier struct {
	rules []Rule
}

var _ types.Classifier = (*Classifier)(nil)

// New loads the embedded rule table, rejecting rules with no keywords or
// an unknown semantic type so config defects surface at startup.
func New() (*Classifier, error) {
	return newFromYAML(rulesYAML)
}

func newFromYAML(data []byte) (*Classifier, error) {
	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing classifier rules: %w", err)
	}
	for i, r := range rf.Rules {
		if r.Type == "" || r.Type == types.TypeUnknown {
			return nil, fmt.Errorf("rule %d: type must be a concrete semantic type", i)
		}
		if len(r.AllOf)+len(r.AnyOf) == 0 {
			return nil, fmt.Errorf("rule %d (%s): no keywords", i, r.Type)
		}
	}
	return &Classifier{rules: rf.Rules}, nil
}

// Classify returns the first matching rule's type, or TypeUnknown.
// Matching is case-insensitive over the description plus the evidence
// reference.
func (c *Classifier) Classify(f *types.Finding) types.SemanticType {
	text := strings.ToLower(f.Description + " " + f.Evidence.Reference)
	for _, r := range c.rules {
		if r.matches(text) {
			return r.Type
		}
	}
	return types.TypeUnknown
}

func (r *Rule) matches(text string) bool {
	for _, kw := range r.AllOf {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	if len(r.AnyOf) == 0 {
		return true
	}
	for _, kw := range r.AnyOf {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
