package authsession

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	fieldIdentifier = "identifier"
	fieldSecret     = "secret"
)

// validateCredentials returns the credentials as they will be sent to the
// provider: the identifier is trimmed, the secret is passed through untouched.
func validateCredentials(cfg ValidationConfig, creds Credentials) (Credentials, error) {
	identifier := strings.TrimSpace(creds.Identifier)

	switch {
	case identifier == "":
		return Credentials{}, &ValidationError{Field: fieldIdentifier, Err: ErrEmptyIdentifier}
	case utf8.RuneCountInString(identifier) > cfg.MaxIdentifierLength:
		return Credentials{}, &ValidationError{Field: fieldIdentifier, Err: ErrIdentifierTooLong}
	case cfg.RequireEmail && !isEmailAddress(identifier):
		return Credentials{}, &ValidationError{Field: fieldIdentifier, Err: ErrMalformedIdentifier}
	}

	switch {
	case strings.TrimSpace(creds.Secret) == "":
		return Credentials{}, &ValidationError{Field: fieldSecret, Err: ErrEmptySecret}
	case utf8.RuneCountInString(creds.Secret) > cfg.MaxSecretLength:
		return Credentials{}, &ValidationError{Field: fieldSecret, Err: ErrSecretTooLong}
	}

	return Credentials{Identifier: identifier, Secret: creds.Secret}, nil
}

// isEmailAddress accepts a bare addr-spec with a dotted domain. Display-name
// forms such as "Bob <bob@x.com>" are refused.
func isEmailAddress(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

func validationMessage(msgs MessagesConfig, err error) string {
	if ve, ok := err.(*ValidationError); ok && ve.Field == fieldSecret {
		return msgs.InvalidSecret
	}
	return msgs.InvalidIdentifier
}

// redactIdentifier keeps enough of an identifier to correlate log lines
// without recording the full address.
func redactIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ""
	}
	local, domain, found := strings.Cut(identifier, "@")
	first, _ := utf8.DecodeRuneInString(local)
	if first == utf8.RuneError {
		first = '*'
	}
	if !found {
		return string(first) + "***"
	}
	return string(first) + "***@" + domain
}
