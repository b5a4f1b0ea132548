package service

// Policy decides how much of a category a caller may see. Categories fall
// into three partitions set by configuration: admin-only, percentage-
// controlled, and open (everything else).
type Policy struct {
	adminOnly  map[string]struct{}
	percentage map[string]struct{}

	// AnonymousPercentage is the fixed share an unauthenticated caller sees
	// of a percentage-controlled category.
	AnonymousPercentage int
}

// NewPolicy builds a Policy from category name lists.
func NewPolicy(adminOnly, percentageControlled []string) *Policy {
	p := &Policy{
		adminOnly:           make(map[string]struct{}, len(adminOnly)),
		percentage:          make(map[string]struct{}, len(percentageControlled)),
		AnonymousPercentage: 20,
	}
	for _, c := range adminOnly {
		p.adminOnly[c] = struct{}{}
	}
	for _, c := range percentageControlled {
		p.percentage[c] = struct{}{}
	}
	return p
}

// Decision is the outcome of a visibility check. Percentage is 100 for a
// full view; Forbidden means the caller gets nothing, not even metadata.
type Decision struct {
	Forbidden  bool
	Percentage int
}

// FullDecision grants the complete category.
func FullDecision() Decision { return Decision{Percentage: 100} }

// AdminOnly reports whether the category is gated to admins.
func (p *Policy) AdminOnly(category string) bool {
	_, ok := p.adminOnly[category]
	return ok
}

// Compute applies the rule table:
//
//	admin-only:            admins see all, everyone else is forbidden
//	percentage-controlled: anonymous sees AnonymousPercentage, key holders
//	                       see their key's share, admins see all
//	open:                  everyone sees all
func (p *Policy) Compute(category string, priv Privilege) Decision {
	if p.AdminOnly(category) {
		if priv.IsAdmin() {
			return FullDecision()
		}
		return Decision{Forbidden: true}
	}

	if _, ok := p.percentage[category]; ok {
		switch priv.Level {
		case LevelAdmin:
			return FullDecision()
		case LevelUser:
			return Decision{Percentage: priv.Percentage}
		default:
			return Decision{Percentage: p.AnonymousPercentage}
		}
	}

	return FullDecision()
}

// PrefixCount is the number of items disclosed from a total at a given
// percentage: ceil(total*pct/100). A nonzero percentage always reveals at
// least one item of a non-empty category.
func PrefixCount(total, pct int) int {
	if total <= 0 || pct <= 0 {
		return 0
	}
	if pct >= 100 {
		return total
	}
	return (total*pct + 99) / 100
}
