package identitytoolkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	authsession "github.com/MrEthical07/authsession"
)

type errorMapping struct {
	code    string
	message string
}

var apiErrors = map[string]errorMapping{
	"EMAIL_NOT_FOUND": {
		code:    authsession.CodeUserNotFound,
		message: "There is no user record corresponding to this identifier. The user may have been deleted.",
	},
	"INVALID_PASSWORD": {
		code:    authsession.CodeInvalidCredentials,
		message: "The password is invalid or the user does not have a password.",
	},
	"INVALID_LOGIN_CREDENTIALS": {
		code:    authsession.CodeInvalidCredentials,
		message: "The supplied auth credential is incorrect, malformed or has expired.",
	},
	"INVALID_EMAIL": {
		code:    authsession.CodeInvalidCredentials,
		message: "The email address is badly formatted.",
	},
	"USER_DISABLED": {
		code:    authsession.CodeUserDisabled,
		message: "The user account has been disabled by an administrator.",
	},
	"TOO_MANY_ATTEMPTS_TRY_LATER": {
		code:    authsession.CodeTooManyAttempts,
		message: "We have blocked all requests from this device due to unusual activity. Try again later.",
	},
	"INVALID_IDP_RESPONSE": {
		code:    authsession.CodeInvalidToken,
		message: "The supplied auth credential is malformed or has expired.",
	},
	"INVALID_ID_TOKEN": {
		code:    authsession.CodeInvalidToken,
		message: "The supplied auth credential is malformed or has expired.",
	},
}

// decodeError turns a non-200 response into a *authsession.ProviderError.
// Messages look like "CODE" or "CODE : detail".
func decodeError(status int, body []byte) error {
	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error.Message == "" {
		return &authsession.ProviderError{
			Code: statusCode(status),
			Err:  fmt.Errorf("identitytoolkit: http %d", status),
		}
	}

	raw := payload.Error.Message
	apiCode, _, _ := strings.Cut(raw, " : ")
	apiCode = strings.TrimSpace(apiCode)

	if m, ok := apiErrors[apiCode]; ok {
		return &authsession.ProviderError{
			Code:    m.code,
			Message: m.message,
			Err:     fmt.Errorf("identitytoolkit: %s", raw),
		}
	}
	return &authsession.ProviderError{
		Code: statusCode(status),
		Err:  fmt.Errorf("identitytoolkit: %s", raw),
	}
}

func statusCode(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return authsession.CodeTooManyAttempts
	case status >= 500:
		return authsession.CodeUnavailable
	}
	return "provider_error"
}
