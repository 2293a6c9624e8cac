package policy

import "github.com/dreamhome/auth-gateway/internal/core/domain"

// grants is the role partial order: each role lists the requirements it
// satisfies. ADMIN satisfies USER; USER never satisfies ADMIN.
var grants = map[domain.Role][]domain.Role{
	domain.RoleAdmin: {domain.RoleAdmin, domain.RoleUser},
	domain.RoleUser:  {domain.RoleUser},
}

// Satisfies reports whether a principal holding have meets a need requirement.
func Satisfies(have, need domain.Role) bool {
	for _, r := range grants[have] {
		if r == need {
			return true
		}
	}
	return false
}
