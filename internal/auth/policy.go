package auth

import (
	"strings"

	"github.com/archpal/coaching-platform/internal/model"
)

// DomainPolicy admits only email addresses of the allowed domains.
type DomainPolicy struct {
	domains []string
}

// NewDomainPolicy creates a policy. Domains are matched case-insensitively
// and may be given with or without a leading "@".
func NewDomainPolicy(domains []string) *DomainPolicy {
	p := &DomainPolicy{}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@"))
		if d != "" {
			p.domains = append(p.domains, d)
		}
	}
	return p
}

// Check returns a PolicyViolationError unless email belongs to an allowed
// domain. Subdomains are not admitted.
func (p *DomainPolicy) Check(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return &model.PolicyViolationError{
			Reason: "a valid email address is required",
			Fields: map[string]string{"email": "missing or malformed"},
		}
	}

	domain := email[at+1:]
	for _, allowed := range p.domains {
		if domain == allowed {
			return nil
		}
	}

	return &model.PolicyViolationError{
		Reason: "only @" + strings.Join(p.domains, ", @") + " email addresses are allowed",
		Fields: map[string]string{"email": "domain not allowed"},
	}
}
