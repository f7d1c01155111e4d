package dto

type ConnectMailboxRequest struct {
	// Code is the OAuth authorization code from the provider consent
	// redirect.
	Code string `json:"code" binding:"required"`
}

type AuthURLResponse struct {
	URL string `json:"url"`
}
