package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dreamhome/auth-gateway/internal/core/domain"
)

// ruleFile is the on-disk shape of a rule table:
//
//	default: authenticated
//	rules:
//	  - pattern: /properties/{id}
//	    methods: [GET]
//	    access: public
//	  - pattern: /admin/**
//	    access: ADMIN
type ruleFile struct {
	Default string     `yaml:"default"`
	Rules   []fileRule `yaml:"rules"`
}

type fileRule struct {
	Pattern string   `yaml:"pattern"`
	Methods []string `yaml:"methods"`
	Access  string   `yaml:"access"`
}

// LoadFile reads and compiles a YAML rule table.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

// Parse compiles a YAML rule table.
func Parse(data []byte) (*Policy, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("parse policy file: no rules")
	}

	fallback := domain.AccessAuthenticated
	if f.Default != "" {
		a, err := parseAccess(f.Default)
		if err != nil {
			return nil, fmt.Errorf("parse policy file: default: %w", err)
		}
		fallback = a
	}

	rules := make([]Rule, 0, len(f.Rules))
	for i, fr := range f.Rules {
		a, err := parseAccess(fr.Access)
		if err != nil {
			return nil, fmt.Errorf("parse policy file: rule %d: %w", i, err)
		}
		rules = append(rules, Rule{Pattern: fr.Pattern, Methods: fr.Methods, Access: a})
	}
	return New(rules, fallback)
}

func parseAccess(s string) (domain.Access, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public", "permit_all":
		return domain.AccessPublic, nil
	case "authenticated":
		return domain.AccessAuthenticated, nil
	}
	if r, ok := domain.ParseRole(s); ok {
		return domain.Access(r), nil
	}
	return "", fmt.Errorf("unknown access %q", s)
}
