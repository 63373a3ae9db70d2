package http

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/fjod/go_backoffice/orders-service/internal/domain"
)

// Free text is rendered by the back-office UI, so markup is stripped before it is stored.
var textPolicy = bluemonday.StrictPolicy()

func sanitizeText(s string) string {
	if s == "" {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

func sanitizeTextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := sanitizeText(*s)
	return &clean
}

func sanitizeAddress(a domain.Address) domain.Address {
	return domain.Address{
		AddressLine: sanitizeText(a.AddressLine),
		District:    sanitizeText(a.District),
		City:        sanitizeText(a.City),
		PostalCode:  sanitizeText(a.PostalCode),
	}
}
