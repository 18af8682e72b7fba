package recovery

// Classifier evaluates a single photo's own properties against the
// ordered rule lists. Rejection rules are tried first, in list order;
// the first match wins and short-circuits. Separation rules follow, so a
// photo can never carry both outcomes. No rule match means the photo is
// implicitly accepted and proceeds to hashing and grouping.
type Classifier struct {
	rejection  []IndividualRule
	separation []IndividualRule
}

// NewClassifier builds the classifier's rule lists once. The lists are
// immutable configuration from here on.
func NewClassifier(cfg *Config) *Classifier {
	cfg.defaults()
	return &Classifier{
		rejection:  rejectionRules(cfg),
		separation: separationRules(cfg),
	}
}

// Classify returns the decision for one photo, or nil when no rule
// matches. It never mutates the photo or its paths; identical input
// always yields the identical decision.
func (c *Classifier) Classify(p *Photo, paths []string) *IndividualDecision {
	for _, rule := range c.rejection {
		if rule.Match(p, paths) {
			return &IndividualDecision{
				PhotoID:  p.ID,
				Decision: DecisionReject,
				RuleName: rule.Name,
			}
		}
	}
	for _, rule := range c.separation {
		if rule.Match(p, paths) {
			return &IndividualDecision{
				PhotoID:  p.ID,
				Decision: DecisionSeparate,
				RuleName: rule.Name,
			}
		}
	}
	return nil
}
