package policy

import "github.com/dreamhome/auth-gateway/internal/core/domain"

// DefaultRules is the built-in table used when no rule file is configured.
// Order matters: /properties/admin/** must precede /properties/{id}.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "/auth/**", Access: domain.AccessPublic},
		{Pattern: "/health/**", Access: domain.AccessPublic},
		{Pattern: "/metrics", Methods: methodsGET, Access: domain.AccessPublic},
		{Pattern: "/swagger/**", Methods: methodsGET, Access: domain.AccessPublic},
		{Pattern: "/properties/public/**", Methods: methodsGET, Access: domain.AccessPublic},
		{Pattern: "/properties/search", Methods: methodsGET, Access: domain.AccessPublic},
		{Pattern: "/properties/featured", Methods: methodsGET, Access: domain.AccessPublic},
		{Pattern: "/properties/filter", Methods: methodsGET, Access: domain.AccessPublic},
		{Pattern: "/properties/admin/**", Access: domain.AccessAdmin},
		{Pattern: "/properties/{id}", Methods: methodsGET, Access: domain.AccessPublic},
		{Pattern: "/admin/**", Access: domain.AccessAdmin},
		{Pattern: "/user/**", Access: domain.AccessUser},
	}
}

// Default compiles DefaultRules with an authenticated fallback.
func Default() *Policy {
	p, err := New(DefaultRules(), domain.AccessAuthenticated)
	if err != nil {
		panic(err)
	}
	return p
}
