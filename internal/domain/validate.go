package domain

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	MsgInvalidName     = "Please provide a valid service name.\n"
	MsgInvalidURL      = "Please provide a valid URL."
	MsgInvalidServices = "Invalid list of services."
)

// urlPattern accepts http(s) URLs with a hostname or IPv4 host, an optional
// port and an optional path/query.
var urlPattern = regexp.MustCompile(`^https?://(www\.)?[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?)*(:\d{1,5})?([/?#][^\s]*)?$`)

// ValidateRegistration checks a registration request and returns the
// plain-text reasons it was rejected, or "" when it is acceptable.
func ValidateRegistration(name, url string) string {
	var msg strings.Builder

	if err := validation.Validate(strings.TrimSpace(name), validation.Required); err != nil {
		msg.WriteString(MsgInvalidName)
	}

	if err := ValidateURL(url); err != nil {
		msg.WriteString(MsgInvalidURL)
	}

	return msg.String()
}

// ValidateURL reports whether url is shaped like a probe target.
func ValidateURL(url string) error {
	return validation.Validate(url,
		validation.Required,
		validation.Length(1, 128),
		is.URL,
		validation.Match(urlPattern),
	)
}
