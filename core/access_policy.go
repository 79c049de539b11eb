package core

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Requirement is what a matched rule demands of the request.
type Requirement string

const (
	// Public requests pass with or without a principal.
	Public Requirement = "public"
	// Authenticated requests need a valid token principal.
	Authenticated Requirement = "authenticated"
)

// Decision is the outcome of evaluating a request against the policy.
type Decision int

const (
	// DecisionDenied means no rule matched. Unrouted paths are rejected
	// before dispatch; adding an endpoint requires adding a rule.
	DecisionDenied Decision = iota
	DecisionPublic
	DecisionAuthenticated
)

// AccessRule binds one method+path pattern to a requirement.
// Pattern segments: "*" matches exactly one segment, a trailing "**"
// matches zero or more. Method "" matches any method.
type AccessRule struct {
	Method      string      `yaml:"method"`
	Pattern     string      `yaml:"pattern"`
	Requirement Requirement `yaml:"requirement"`
}

// AccessPolicy is an ordered rule list evaluated first-match-wins.
// Rule order is part of the policy: a broad authenticated rule placed
// before a narrow public one shadows it.
type AccessPolicy struct {
	rules []AccessRule
}

func NewAccessPolicy(rules []AccessRule) *AccessPolicy {
	return &AccessPolicy{rules: rules}
}

// DefaultAccessPolicy returns the built-in rule table: reads on the
// catalog are public, lead/feedback submission is public, everything
// that mutates catalog data or reads lead data requires a token.
func DefaultAccessPolicy() *AccessPolicy {
	return NewAccessPolicy(defaultAccessRules())
}

func defaultAccessRules() []AccessRule {
	return []AccessRule{
		{Method: "GET", Pattern: "/healthz", Requirement: Public},

		// Auth endpoints run their own header handling so they can report
		// fine-grained failure reasons instead of the generic 401.
		{Method: "", Pattern: "/api/auth/**", Requirement: Public},

		// Public catalog reads.
		{Method: "GET", Pattern: "/api/events/**", Requirement: Public},
		{Method: "GET", Pattern: "/api/offerings/**", Requirement: Public},
		{Method: "GET", Pattern: "/api/categories", Requirement: Public},
		{Method: "GET", Pattern: "/api/settings/global-discount", Requirement: Public},

		// Visitors can leave feedback and submit leads without an account.
		{Method: "POST", Pattern: "/api/events/*/feedback", Requirement: Public},
		{Method: "POST", Pattern: "/api/requests", Requirement: Public},
		{Method: "POST", Pattern: "/api/event-requests", Requirement: Public},

		// Everything below is admin-only writes and lead/feedback management.
		{Method: "", Pattern: "/api/events/**", Requirement: Authenticated},
		{Method: "", Pattern: "/api/offerings/**", Requirement: Authenticated},
		{Method: "POST", Pattern: "/api/categories", Requirement: Authenticated},
		{Method: "POST", Pattern: "/api/settings/global-discount", Requirement: Authenticated},
		{Method: "GET", Pattern: "/api/feedbacks/recent", Requirement: Public},
		{Method: "", Pattern: "/api/feedbacks/**", Requirement: Authenticated},
		{Method: "", Pattern: "/api/requests/**", Requirement: Authenticated},
		{Method: "", Pattern: "/api/event-requests/**", Requirement: Authenticated},
		{Method: "", Pattern: "/api/admin/**", Requirement: Authenticated},
	}
}

// Decide evaluates method+path in rule order. No match means denied.
func (p *AccessPolicy) Decide(method, path string) Decision {
	for _, r := range p.rules {
		if r.Method != "" && r.Method != method {
			continue
		}
		if !matchPattern(r.Pattern, path) {
			continue
		}
		switch r.Requirement {
		case Public:
			return DecisionPublic
		case Authenticated:
			return DecisionAuthenticated
		}
	}
	return DecisionDenied
}

// matchPattern matches path against a segment pattern. "*" consumes one
// segment, a trailing "**" consumes the rest (including nothing, so
// "/api/events/**" also matches "/api/events").
func matchPattern(pattern, path string) bool {
	pSegs := splitPath(pattern)
	segs := splitPath(path)

	for i, ps := range pSegs {
		if ps == "**" {
			if i != len(pSegs)-1 {
				// Interior "**" is not supported; treat as literal miss.
				return false
			}
			return true
		}
		if i >= len(segs) {
			return false
		}
		if ps != "*" && ps != segs[i] {
			return false
		}
	}
	return len(segs) == len(pSegs)
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// LoadAccessPolicy reads a rule table from a YAML file:
//
//	rules:
//	  - method: GET
//	    pattern: /api/events/**
//	    requirement: public
//
// Deployments can tighten or open individual routes without a rebuild.
func LoadAccessPolicy(path string) (*AccessPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Rules []AccessRule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("policy file %s contains no rules", path)
	}
	for i, r := range doc.Rules {
		if r.Requirement != Public && r.Requirement != Authenticated {
			return nil, fmt.Errorf("rule %d: unknown requirement %q", i, r.Requirement)
		}
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %d: empty pattern", i)
		}
	}
	return NewAccessPolicy(doc.Rules), nil
}
