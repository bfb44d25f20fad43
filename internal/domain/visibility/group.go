// Package visibility implements the group grammar used for project
// visibility values and the server-wide visibility ceiling.
//
// A group is one of:
//
//	public                  everyone, authenticated or not
//	private                 owner only
//	@example.com            any identity under the domain
//	a@x.com,@y.org,...      a comma list mixing emails and domains
package visibility

import (
	"sort"
	"strings"
)

// Kind discriminates the group variants.
type Kind int

const (
	Private Kind = iota
	Public
	Set
)

// Group is a parsed visibility value. Groups are constructed from stored
// config on each check and persisted only in canonical string form.
type Group struct {
	kind    Kind
	domains []string
	emails  []string
}

// Parse converts a raw visibility string into a Group. Parsing is total:
// every non-empty input either parses or yields a *FormatError. Empty and
// unset values are treated as private (fail closed).
func Parse(raw string) (Group, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "", "private":
		return Group{kind: Private}, nil
	case "public":
		return Group{kind: Public}, nil
	}

	g := Group{kind: Set}
	for _, part := range strings.Split(raw, ",") {
		entry := strings.TrimSpace(part)
		if entry == "" {
			return Group{}, newFormatError("empty entry in visibility list")
		}
		if strings.HasPrefix(entry, "@") {
			domain := entry[1:]
			if !validDomain(domain) {
				return Group{}, newFormatError("malformed domain entry %q", entry)
			}
			g.domains = append(g.domains, domain)
			continue
		}
		if !validEmail(entry) {
			return Group{}, newFormatError("malformed email entry %q", entry)
		}
		g.emails = append(g.emails, entry)
	}
	sort.Strings(g.domains)
	sort.Strings(g.emails)
	return g, nil
}

// Kind returns the group variant.
func (g Group) Kind() Kind { return g.kind }

// String renders the canonical form, which round-trips through Parse.
func (g Group) String() string {
	switch g.kind {
	case Public:
		return "public"
	case Private:
		return "private"
	}
	parts := make([]string, 0, len(g.emails)+len(g.domains))
	parts = append(parts, g.emails...)
	for _, d := range g.domains {
		parts = append(parts, "@"+d)
	}
	return strings.Join(parts, ",")
}

// Matches reports whether the given identity email satisfies the group.
func (g Group) Matches(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	switch g.kind {
	case Public:
		return true
	case Private:
		return false
	}
	for _, e := range g.emails {
		if e == email {
			return true
		}
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, d := range g.domains {
		if d == domain {
			return true
		}
	}
	return false
}

// Contains reports whether every identity satisfying inner also satisfies
// outer. Public contains everything; nothing but Public contains Public;
// private is contained by everything; sets compare by subset.
func Contains(outer, inner Group) bool {
	if outer.kind == Public {
		return true
	}
	if inner.kind == Public {
		return false
	}
	if inner.kind == Private {
		return true
	}
	if outer.kind == Private {
		return false
	}
	for _, d := range inner.domains {
		if !containsString(outer.domains, d) {
			return false
		}
	}
	for _, e := range inner.emails {
		if containsString(outer.emails, e) {
			continue
		}
		at := strings.LastIndex(e, "@")
		if at < 0 || !containsString(outer.domains, e[at+1:]) {
			return false
		}
	}
	return true
}

// IsPublic is the strict two-sided check used for anonymous access and as
// the sole gate for edge-cache eligibility: both the project visibility and
// the server ceiling must be public.
func IsPublic(project, ceiling Group) bool {
	return project.kind == Public && ceiling.kind == Public
}

// SingleDomain returns the domain when the group restricts to exactly one
// domain and nothing else. Used for bare local-part owner resolution.
func (g Group) SingleDomain() (string, bool) {
	if g.kind == Set && len(g.domains) == 1 && len(g.emails) == 0 {
		return g.domains[0], true
	}
	return "", false
}

func validDomain(domain string) bool {
	if domain == "" || strings.Contains(domain, "@") {
		return false
	}
	if !strings.Contains(domain, ".") {
		return false
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	for _, r := range domain {
		if !(r == '.' || r == '-' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	local, domain := email[:at], email[at+1:]
	if strings.ContainsAny(local, " ,@") {
		return false
	}
	return validDomain(domain)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
