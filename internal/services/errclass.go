package services

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"doc-parser/internal/models"

	"github.com/pkg/errors"
)

// ClassifyRule maps a raw error message to a user-facing category.
type ClassifyRule struct {
	Name        string
	Category    models.ErrorCategory
	Status      int
	Match       func(lowerMessage string) bool
	Message     func(raw string) string
	Suggestions []string
}

func containsAny(needles ...string) func(string) bool {
	return func(s string) bool {
		for _, n := range needles {
			if strings.Contains(s, n) {
				return true
			}
		}
		return false
	}
}

// statusUnauthorized matches 401 as a standalone token, not inside ids or
// file names.
var statusUnauthorized = regexp.MustCompile(`\b401\b`)

var authPhrases = containsAny("unauthorized", "invalid token")

func authFailure(s string) bool {
	return authPhrases(s) || statusUnauthorized.MatchString(s)
}

// DefaultRules is evaluated in order; the first match wins. The last rule
// matches everything.
var DefaultRules = []ClassifyRule{
	{
		Name:     "dns",
		Category: models.CategoryDNSFailure,
		Status:   http.StatusInternalServerError,
		Match: containsAny(
			"no such host",
			"nodename nor servname",
			"name or service not known",
			"getaddrinfo failed",
			"temporary failure in name resolution",
		),
		Message: func(string) string {
			return "Could not resolve the document parsing service host"
		},
		Suggestions: []string{
			"Check the server's internet connectivity",
			"Verify DNS resolution works for the parsing API host",
			"Make sure no firewall or proxy blocks outbound HTTPS traffic",
		},
	},
	{
		Name:     "auth",
		Category: models.CategoryAuthFailure,
		Status:   http.StatusUnauthorized,
		Match:    authFailure,
		Message: func(string) string {
			return "The document parsing service rejected the API key"
		},
		Suggestions: []string{
			"Verify LLAMA_CLOUD_API_KEY is set to a valid, active key",
			"Check whether the key was revoked or has expired",
			"Regenerate the key in the LlamaCloud dashboard and restart the service",
		},
	},
	{
		Name:     "generic",
		Category: models.CategoryGeneric,
		Status:   http.StatusInternalServerError,
		Match:    func(string) bool { return true },
		Message: func(raw string) string {
			return raw
		},
		Suggestions: []string{},
	},
}

// ErrorClassifier turns errors from the parse call into ErrorReports.
type ErrorClassifier struct {
	rules []ClassifyRule
}

func NewErrorClassifier(rules []ClassifyRule) *ErrorClassifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &ErrorClassifier{rules: rules}
}

// Classify is deterministic: the same message always yields the same
// category. The trace is always copied into the report.
func (ec *ErrorClassifier) Classify(message, trace string) models.ErrorReport {
	lower := strings.ToLower(message)
	for _, rule := range ec.rules {
		if !rule.Match(lower) {
			continue
		}
		suggestions := make([]string, len(rule.Suggestions))
		copy(suggestions, rule.Suggestions)
		return models.ErrorReport{
			Category:    rule.Category,
			Status:      rule.Status,
			Message:     rule.Message(message),
			Suggestions: suggestions,
			Trace:       trace,
		}
	}

	return models.ErrorReport{
		Category:    models.CategoryGeneric,
		Status:      http.StatusInternalServerError,
		Message:     message,
		Suggestions: []string{},
		Trace:       trace,
	}
}

// ClassifyError matches on the root cause's message, so context added by
// errors.Wrap (such as the upload name) never changes the category. The
// trace is the "%+v" rendering of the full error, stack included.
func (ec *ErrorClassifier) ClassifyError(err error) models.ErrorReport {
	return ec.Classify(errors.Cause(err).Error(), fmt.Sprintf("%+v", err))
}
