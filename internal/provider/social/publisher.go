// Package social publishes posts to the connected social networks.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"leadmap.app/server/internal/model"
)

// Publisher pushes one post to a provider and returns the provider's
// id for it.
type Publisher interface {
	Publish(ctx context.Context, req PublishRequest) (string, error)
}

type PublishRequest struct {
	Provider    model.SocialProvider
	Handle      string
	AccessToken string
	Body        string
	MediaURLs   []string
}

type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("social api error %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// HTTPPublisher implements Publisher against each network's REST API.
// Endpoints are overridable for tests.
type HTTPPublisher struct {
	http *http.Client

	XBaseURL        string
	LinkedInBaseURL string
	MetaBaseURL     string
}

func NewHTTPPublisher() *HTTPPublisher {
	return &HTTPPublisher{
		http:            &http.Client{Timeout: 30 * time.Second},
		XBaseURL:        "https://api.twitter.com",
		LinkedInBaseURL: "https://api.linkedin.com",
		MetaBaseURL:     "https://graph.facebook.com",
	}
}

func (p *HTTPPublisher) Publish(ctx context.Context, req PublishRequest) (string, error) {
	switch req.Provider {
	case model.SocialProviderX:
		return p.publishX(ctx, req)
	case model.SocialProviderLinkedIn:
		return p.publishLinkedIn(ctx, req)
	case model.SocialProviderFacebook, model.SocialProviderInstagram:
		return p.publishMeta(ctx, req)
	default:
		return "", fmt.Errorf("unsupported social provider %q", req.Provider)
	}
}

func (p *HTTPPublisher) publishX(ctx context.Context, req PublishRequest) (string, error) {
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	err := p.post(ctx, p.XBaseURL+"/2/tweets", req.AccessToken,
		map[string]any{"text": req.Body}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}

func (p *HTTPPublisher) publishLinkedIn(ctx context.Context, req PublishRequest) (string, error) {
	body := map[string]any{
		"author":         "urn:li:person:" + req.Handle,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]any{"text": req.Body},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := p.post(ctx, p.LinkedInBaseURL+"/v2/ugcPosts", req.AccessToken, body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (p *HTTPPublisher) publishMeta(ctx context.Context, req PublishRequest) (string, error) {
	body := map[string]any{"message": req.Body}
	if len(req.MediaURLs) > 0 {
		body["url"] = req.MediaURLs[0]
	}
	var resp struct {
		ID string `json:"id"`
	}
	err := p.post(ctx, p.MetaBaseURL+"/v19.0/"+req.Handle+"/feed", req.AccessToken, body, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (p *HTTPPublisher) post(ctx context.Context, url, token string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding publish request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling social api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding publish response: %w", err)
		}
	}
	return nil
}
