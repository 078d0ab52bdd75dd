// Package validator sanitizes and bounds retrieval input.
package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"resumerag/internal/domain"
)

// Options bound the accepted input.
type Options struct {
	MinQueryLength int
	MaxQueryLength int
	MaxSlugs       int
	AllowedSlugs   []string
}

type Validator struct {
	opts    Options
	allowed map[string]struct{}
}

// Result is the sanitized input plus every violation found.
// A nil Slugs means all documents.
type Result struct {
	Query  string
	Slugs  []string
	Errors []string

	queryErrs int
}

func New(opts Options) *Validator {
	allowed := make(map[string]struct{}, len(opts.AllowedSlugs))
	for _, s := range opts.AllowedSlugs {
		allowed[s] = struct{}{}
	}
	return &Validator{
		opts:    opts,
		allowed: allowed,
	}
}

// Validate checks the query and sanitizes the requested identifiers.
// Invalid identifiers are reported one by one; if none survive, Slugs is
// nil and the caller falls back to all documents.
func (v *Validator) Validate(query string, slugs []string) Result {
	var errs []string

	trimmed := strings.TrimSpace(query)
	switch {
	case query == "":
		errs = append(errs, "Query is required")
	case utf8.RuneCountInString(trimmed) < v.opts.MinQueryLength:
		errs = append(errs, "Query cannot be empty")
	case utf8.RuneCountInString(query) > v.opts.MaxQueryLength:
		errs = append(errs, fmt.Sprintf("Query is too long (max %d characters)", v.opts.MaxQueryLength))
	}

	queryErrs := len(errs)

	var sanitized []string
	if len(slugs) > 0 {
		if len(slugs) > v.opts.MaxSlugs {
			errs = append(errs, fmt.Sprintf("Too many documents requested (max %d)", v.opts.MaxSlugs))
		} else {
			for _, raw := range slugs {
				s := SanitizeSlug(raw)
				if s == "" {
					errs = append(errs, fmt.Sprintf("Invalid document identifier format: %s", raw))
					continue
				}
				if _, ok := v.allowed[s]; !ok {
					errs = append(errs, fmt.Sprintf("Document '%s' is not allowed", s))
					continue
				}
				sanitized = append(sanitized, s)
			}
		}
	}

	return Result{
		Query:  trimmed,
		Slugs:  sanitized,
		Errors: errs,

		queryErrs: queryErrs,
	}
}

// QueryValid reports whether every recorded violation concerns document
// identifiers rather than the query text.
func (r Result) QueryValid() bool {
	return r.queryErrs == 0
}

// Err returns a ValidationError when any violation was recorded.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return domain.NewValidationError("Input validation failed", r.Errors)
}

// SanitizeSlug lower-cases, trims and keeps only [a-z0-9_-].
func SanitizeSlug(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	var sb strings.Builder
	sb.Grow(len(raw))
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
