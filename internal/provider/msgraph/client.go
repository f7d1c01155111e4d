package msgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"leadmap.app/server/internal/provider"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// Outlook mailbox subscriptions max out just under three days, so the
// renewal cron must run well inside that window.
const subscriptionLifetime = 2 * 24 * time.Hour

// Client is a thin REST client over Microsoft Graph mail endpoints.
// Graph has no official Go SDK in our stack, so requests are built by
// hand against the v1.0 surface.
type Client struct {
	http    *http.Client
	baseURL string
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback provider.TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		update := provider.TokenUpdate{AccessToken: t.AccessToken}
		if t.RefreshToken != "" {
			rt := t.RefreshToken
			update.RefreshToken = &rt
		}
		if !t.Expiry.IsZero() {
			exp := t.Expiry
			update.Expiry = &exp
		}
		if err := s.callback(update); err != nil {
			slog.Warn("failed to persist refreshed token", "error", err)
		}
	}
	return t, nil
}

func NewClient(ctx context.Context, cfg *oauth2.Config, accessToken, refreshToken string, expiry *time.Time, onRefresh provider.TokenUpdateFunc) *Client {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}
	if expiry != nil {
		token.Expiry = *expiry
	} else if refreshToken != "" {
		token.Expiry = time.Now()
	}

	source := &notifyTokenSource{
		src:      cfg.TokenSource(ctx, token),
		current:  token,
		callback: onRefresh,
	}

	return &Client{
		http:    oauth2.NewClient(ctx, source),
		baseURL: graphBaseURL,
	}
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError carries the Graph status code so callers can classify.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding graph request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	if !strings.HasPrefix(url, "https://") {
		url = c.baseURL + url
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("building graph request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTokenError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var ge graphError
		_ = json.Unmarshal(data, &ge)
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Code:       ge.Error.Code,
			Message:    ge.Error.Message,
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %v", provider.ErrCredentialRevoked, apiErr)
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding graph response: %w", err)
		}
	}
	return nil
}

type Profile struct {
	Address string
	Name    string
}

func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var resp struct {
		DisplayName       string `json:"displayName"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := c.do(ctx, http.MethodGet, "/me", nil, &resp); err != nil {
		return nil, err
	}
	address := resp.Mail
	if address == "" {
		address = resp.UserPrincipalName
	}
	return &Profile{Address: address, Name: resp.DisplayName}, nil
}

// CreateSubscription registers a change-notification webhook for new
// inbox messages. clientState round-trips in every delivery and is
// verified to reject forged posts.
func (c *Client) CreateSubscription(ctx context.Context, notificationURL, clientState string) (provider.WatchResult, error) {
	req := map[string]any{
		"changeType":         "created,updated",
		"notificationUrl":    notificationURL,
		"resource":           "me/mailFolders('inbox')/messages",
		"expirationDateTime": time.Now().Add(subscriptionLifetime).UTC().Format(time.RFC3339),
		"clientState":        clientState,
	}

	var resp struct {
		ID                 string    `json:"id"`
		ExpirationDateTime time.Time `json:"expirationDateTime"`
	}
	if err := c.do(ctx, http.MethodPost, "/subscriptions", req, &resp); err != nil {
		return provider.WatchResult{}, fmt.Errorf("creating graph subscription: %w", err)
	}

	return provider.WatchResult{
		SubscriptionID: resp.ID,
		ExpiresAt:      resp.ExpirationDateTime,
	}, nil
}

func (c *Client) RenewSubscription(ctx context.Context, subscriptionID string) (time.Time, error) {
	req := map[string]any{
		"expirationDateTime": time.Now().Add(subscriptionLifetime).UTC().Format(time.RFC3339),
	}
	var resp struct {
		ExpirationDateTime time.Time `json:"expirationDateTime"`
	}
	if err := c.do(ctx, http.MethodPatch, "/subscriptions/"+subscriptionID, req, &resp); err != nil {
		return time.Time{}, fmt.Errorf("renewing graph subscription: %w", err)
	}
	return resp.ExpirationDateTime, nil
}

func (c *Client) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	err := c.do(ctx, http.MethodDelete, "/subscriptions/"+subscriptionID, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

type graphMessage struct {
	ID               string    `json:"id"`
	ConversationID   string    `json:"conversationId"`
	Subject          string    `json:"subject"`
	BodyPreview      string    `json:"bodyPreview"`
	IsRead           bool      `json:"isRead"`
	ReceivedDateTime time.Time `json:"receivedDateTime"`
	From             struct {
		EmailAddress struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
	ToRecipients []struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"toRecipients"`
	Body struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	Flag struct {
		FlagStatus string `json:"flagStatus"`
	} `json:"flag"`
}

// Delta walks the inbox delta feed. An empty deltaLink starts a fresh
// cycle; the returned link resumes from where this call left off.
func (c *Client) Delta(ctx context.Context, deltaLink string) ([]provider.EmailMessage, string, error) {
	url := deltaLink
	if url == "" {
		url = "/me/mailFolders/inbox/messages/delta"
	}

	var messages []provider.EmailMessage
	for {
		var resp struct {
			Value     []graphMessage `json:"value"`
			NextLink  string         `json:"@odata.nextLink"`
			DeltaLink string         `json:"@odata.deltaLink"`
		}
		if err := c.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusGone {
				// Delta token expired; caller restarts from scratch.
				return nil, "", ErrDeltaExpired
			}
			return nil, "", fmt.Errorf("fetching graph delta: %w", err)
		}

		for _, gm := range resp.Value {
			messages = append(messages, convertMessage(gm))
		}

		if resp.DeltaLink != "" {
			return messages, resp.DeltaLink, nil
		}
		if resp.NextLink == "" {
			return messages, "", fmt.Errorf("graph delta response missing continuation link")
		}
		url = resp.NextLink
	}
}

func (c *Client) GetMessage(ctx context.Context, id string) (*provider.EmailMessage, error) {
	var gm graphMessage
	if err := c.do(ctx, http.MethodGet, "/me/messages/"+id, nil, &gm); err != nil {
		return nil, fmt.Errorf("fetching graph message: %w", err)
	}
	msg := convertMessage(gm)
	return &msg, nil
}

// Send submits mail through the user's Outlook account. Graph's
// sendMail returns no message id.
func (c *Client) Send(ctx context.Context, to, subject, htmlBody string) error {
	req := map[string]any{
		"message": map[string]any{
			"subject": subject,
			"body": map[string]any{
				"contentType": "HTML",
				"content":     htmlBody,
			},
			"toRecipients": []map[string]any{
				{"emailAddress": map[string]any{"address": to}},
			},
		},
		"saveToSentItems": true,
	}
	if err := c.do(ctx, http.MethodPost, "/me/sendMail", req, nil); err != nil {
		return fmt.Errorf("sending graph message: %w", err)
	}
	return nil
}

func convertMessage(gm graphMessage) provider.EmailMessage {
	var to []string
	for _, r := range gm.ToRecipients {
		to = append(to, r.EmailAddress.Address)
	}

	msg := provider.EmailMessage{
		ProviderMessageID: gm.ID,
		ProviderThreadID:  gm.ConversationID,
		From:              gm.From.EmailAddress.Address,
		FromName:          gm.From.EmailAddress.Name,
		To:                to,
		Subject:           gm.Subject,
		Snippet:           gm.BodyPreview,
		Unread:            !gm.IsRead,
		Starred:           gm.Flag.FlagStatus == "flagged",
		InternalDate:      gm.ReceivedDateTime,
	}
	if strings.EqualFold(gm.Body.ContentType, "html") {
		msg.BodyHTML = gm.Body.Content
	} else {
		msg.BodyText = gm.Body.Content
	}
	return msg
}
