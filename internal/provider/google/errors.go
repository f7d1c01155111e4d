package google

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"leadmap.app/server/internal/provider"
)

// ErrHistoryExpired means the stored history cursor is older than what
// Gmail retains (roughly a week). The only recovery is a backfill.
var ErrHistoryExpired = errors.New("gmail history cursor expired")

// classifyTokenError maps oauth2 refresh failures onto our error
// vocabulary. invalid_grant is terminal: the user revoked access or
// the refresh token rotted.
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

// classifyAPIError surfaces credential revocation hidden inside API
// calls; everything else passes through for retry handling.
func classifyAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %v", provider.ErrCredentialRevoked, err)
	}
	return classifyTokenError(err)
}

// IsTransient reports whether the call is worth retrying.
func IsTransient(err error) bool {
	if errors.Is(err, provider.ErrCredentialRevoked) || errors.Is(err, ErrHistoryExpired) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	// Network errors and the like: retry.
	return true
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
