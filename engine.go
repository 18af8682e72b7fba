package recovery

import (
	"errors"
	"fmt"
)

// ErrLastSurvivor reports that applying the group rules in sequence
// would have removed a cluster's final member. The engine halts
// rejections for that cluster instead of committing the violation.
var ErrLastSurvivor = errors.New("group rules would reject the last surviving member")

// Engine applies the ordered group rules to one cluster at a time. Each
// rule sees only the members not yet rejected by an earlier rule, and
// the engine guarantees that every cluster keeps at least one
// non-rejected member.
type Engine struct {
	cfg   *Config
	rules []GroupRule
}

func NewEngine(cfg *Config) *Engine {
	cfg.defaults()
	return &Engine{cfg: cfg, rules: groupRules()}
}

// Evaluate runs the rules against one cluster and returns its rejection
// records. Identical input always produces identical output; re-running
// over unchanged clusters is idempotent.
//
// A rule naming a photo outside the cluster is a programming error and
// fails immediately. An attempt to reject the last survivor halts all
// further rejections for the cluster and is logged with the offending
// group; it never silently empties a cluster.
func (e *Engine) Evaluate(groupID int64, members []Member) ([]GroupRejection, error) {
	if len(members) < 2 {
		return nil, nil
	}

	inGroup := make(map[string]bool, len(members))
	for _, m := range members {
		if inGroup[m.Photo.ID] {
			return nil, fmt.Errorf("group %d: duplicate member %s", groupID, m.Photo.ID)
		}
		inGroup[m.Photo.ID] = true
	}

	rejected := make(map[string]bool)
	var out []GroupRejection

	for _, rule := range e.rules {
		remaining := survivors(members, rejected)
		if len(remaining) < 2 {
			break
		}

		for _, r := range rule.Apply(remaining) {
			if !inGroup[r.RejectedID] {
				return nil, fmt.Errorf("group %d: rule %s rejected photo %s which is not a member",
					groupID, rule.Name, r.RejectedID)
			}
			if !inGroup[r.KeptID] || r.KeptID == r.RejectedID {
				return nil, fmt.Errorf("group %d: rule %s kept invalid photo %s for rejection of %s",
					groupID, rule.Name, r.KeptID, r.RejectedID)
			}
			if rejected[r.RejectedID] {
				continue // earlier rule wins
			}
			if len(members)-len(rejected) <= 1 {
				e.cfg.Logger.Warn("halting group rejections before last survivor",
					"group", groupID, "rule", rule.Name, "photo", r.RejectedID,
					"err", ErrLastSurvivor)
				return out, nil
			}
			rejected[r.RejectedID] = true
			out = append(out, GroupRejection{
				PhotoID:     r.RejectedID,
				GroupID:     groupID,
				RuleName:    rule.Name,
				KeptPhotoID: r.KeptID,
			})
		}
	}

	return out, nil
}

// survivors returns the members not yet rejected, preserving order.
func survivors(members []Member, rejected map[string]bool) []Member {
	out := make([]Member, 0, len(members))
	for _, m := range members {
		if !rejected[m.Photo.ID] {
			out = append(out, m)
		}
	}
	return out
}
