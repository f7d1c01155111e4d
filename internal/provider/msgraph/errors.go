package msgraph

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"leadmap.app/server/internal/provider"
)

// ErrDeltaExpired means Graph no longer honors the stored delta token;
// the sync must restart with a fresh full delta cycle.
var ErrDeltaExpired = errors.New("graph delta token expired")

func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" ||
			strings.Contains(string(retrieveErr.Body), "invalid_grant") {
			return fmt.Errorf("%w: %s", provider.ErrCredentialRevoked, retrieveErr.ErrorCode)
		}
	}
	return err
}

// IsTransient reports whether the call is worth retrying.
func IsTransient(err error) bool {
	if errors.Is(err, provider.ErrCredentialRevoked) || errors.Is(err, ErrDeltaExpired) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}
