// Package policy holds the static route-to-role rule table and evaluates
// requests against it. A Policy is immutable after New and can be shared
// by every request goroutine without locking.
package policy

import (
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
)

// Rule maps a route pattern (and optionally a set of methods) to an access
// requirement. Patterns use "*" for one segment, "**" for any number of
// trailing segments and "{name}" for a named single segment.
type Rule struct {
	Pattern string
	Methods []string
	Access  domain.Access
}

type compiledRule struct {
	Rule
	glob    string
	methods map[string]struct{}
}

// Policy evaluates requests against an ordered rule table. The first
// matching rule wins; unmatched requests get the fallback requirement.
type Policy struct {
	rules    []compiledRule
	fallback domain.Access
}

var namedSegment = regexp.MustCompile(`\{[A-Za-z_][A-Za-z0-9_]*\}`)

// New compiles rules. An empty fallback means "authenticated".
func New(rules []Rule, fallback domain.Access) (*Policy, error) {
	if fallback == "" {
		fallback = domain.AccessAuthenticated
	}
	if !validAccess(fallback) {
		return nil, fmt.Errorf("policy: unknown fallback access %q", fallback)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("policy: rule %d: pattern %q must start with /", i, r.Pattern)
		}
		if !validAccess(r.Access) {
			return nil, fmt.Errorf("policy: rule %d: unknown access %q", i, r.Access)
		}
		glob := namedSegment.ReplaceAllString(r.Pattern, "*")
		if !doublestar.ValidatePattern(glob) {
			return nil, fmt.Errorf("policy: rule %d: invalid pattern %q", i, r.Pattern)
		}

		var methods map[string]struct{}
		if len(r.Methods) > 0 {
			methods = make(map[string]struct{}, len(r.Methods))
			for _, m := range r.Methods {
				methods[strings.ToUpper(strings.TrimSpace(m))] = struct{}{}
			}
		}
		compiled = append(compiled, compiledRule{Rule: r, glob: glob, methods: methods})
	}

	return &Policy{rules: compiled, fallback: fallback}, nil
}

// AccessFor returns the requirement for a request.
func (p *Policy) AccessFor(method, requestPath string) domain.Access {
	method = strings.ToUpper(method)
	requestPath = normalize(requestPath)

	for _, r := range p.rules {
		if r.methods != nil {
			if _, ok := r.methods[method]; !ok {
				continue
			}
		}
		if matchGlob(r.glob, requestPath) {
			return r.Access
		}
	}
	return p.fallback
}

// IsPublic reports whether the request bypasses authentication entirely.
func (p *Policy) IsPublic(method, requestPath string) bool {
	return p.AccessFor(method, requestPath) == domain.AccessPublic
}

// Authorize evaluates a request. principal is nil when the caller did not
// present a valid token.
func (p *Policy) Authorize(method, requestPath string, principal *domain.Principal) domain.Decision {
	return Evaluate(p.AccessFor(method, requestPath), principal)
}

// Len returns the number of compiled rules.
func (p *Policy) Len() int { return len(p.rules) }

// Evaluate applies a single requirement: public allows everyone, an absent
// principal is unauthenticated, and role requirements consult the role order.
func Evaluate(access domain.Access, principal *domain.Principal) domain.Decision {
	if access == domain.AccessPublic {
		return domain.Allow
	}
	if principal == nil {
		return domain.DenyUnauthenticated
	}
	if access == domain.AccessAuthenticated {
		return domain.Allow
	}
	if Satisfies(principal.Role, domain.Role(access)) {
		return domain.Allow
	}
	return domain.DenyForbidden
}

// Require is the per-operation guard: it allows the principal when its role
// satisfies any of roles.
func Require(principal *domain.Principal, roles ...domain.Role) error {
	if principal == nil {
		return domain.ErrUnauthenticated
	}
	if len(roles) == 0 {
		return nil
	}
	for _, need := range roles {
		if Satisfies(principal.Role, need) {
			return nil
		}
	}
	return domain.ErrForbidden
}

func validAccess(a domain.Access) bool {
	switch a {
	case domain.AccessPublic, domain.AccessAuthenticated, domain.AccessUser, domain.AccessAdmin:
		return true
	}
	return false
}

func matchGlob(glob, p string) bool {
	if ok, _ := doublestar.Match(glob, p); ok {
		return true
	}
	// "/admin/**" also covers "/admin" itself.
	if prefix, found := strings.CutSuffix(glob, "/**"); found && prefix != "" {
		ok, _ := doublestar.Match(prefix, p)
		return ok
	}
	return false
}

func normalize(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// methodsGET is shared by the read-only public rules.
var methodsGET = []string{http.MethodGet, http.MethodHead}
