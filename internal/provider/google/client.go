package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"leadmap.app/server/internal/provider"
)

// Client wraps one user's Gmail mailbox. Every call may silently
// refresh the access token; the update callback persists the rotation.
type Client struct {
	svc *gmail.Service
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
			// The refreshed token still works for this request; the next
			// client will refresh again from the stale stored one.
			slog.Warn("failed to persist refreshed token", "error", err)
		}
	}
	return t, nil
}

func NewClient(ctx context.Context, cfg *oauth2.Config, accessToken, refreshToken string, expiry *time.Time, onRefresh provider.TokenUpdateFunc) (*Client, error) {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}
	if expiry != nil {
		token.Expiry = *expiry
	} else if refreshToken != "" {
		// Unknown expiry: force a refresh on first use.
		token.Expiry = time.Now()
	}

	source := &notifyTokenSource{
		src:      cfg.TokenSource(ctx, token),
		current:  token,
		callback: onRefresh,
	}

	httpClient := oauth2.NewClient(ctx, source)

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	return &Client{svc: svc}, nil
}

type Profile struct {
	Address   string
	HistoryID uint64
}

func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	resp, err := c.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetching gmail profile: %w", classifyAPIError(err))
	}
	return &Profile{
		Address:   resp.EmailAddress,
		HistoryID: resp.HistoryId,
	}, nil
}

// Watch registers push notifications for the INBOX onto a Pub/Sub
// topic. Gmail allows one watch per user, so any existing one is
// stopped first.
func (c *Client) Watch(ctx context.Context, topic string) (provider.WatchResult, error) {
	_ = c.svc.Users.Stop("me").Context(ctx).Do()

	resp, err := c.svc.Users.Watch("me", &gmail.WatchRequest{
		TopicName: topic,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return provider.WatchResult{}, fmt.Errorf("registering gmail watch: %w", classifyAPIError(err))
	}

	return provider.WatchResult{
		HistoryID: resp.HistoryId,
		// Expiration is epoch millis.
		ExpiresAt: time.UnixMilli(resp.Expiration),
	}, nil
}

func (c *Client) StopWatch(ctx context.Context) error {
	if err := c.svc.Users.Stop("me").Context(ctx).Do(); err != nil {
		return fmt.Errorf("stopping gmail watch: %w", classifyAPIError(err))
	}
	return nil
}

// ListHistory returns ids of messages added since startHistoryID and
// the newest history id seen. A provider.ErrHistoryExpired error means
// the cursor is too old and the caller must backfill instead.
func (c *Client) ListHistory(ctx context.Context, startHistoryID uint64) ([]string, uint64, error) {
	var (
		messageIDs []string
		seen       = map[string]struct{}{}
		latest     = startHistoryID
		pageToken  string
	)

	for {
		call := c.svc.Users.History.List("me").
			StartHistoryId(startHistoryID).
			HistoryTypes("messageAdded").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			if isNotFound(err) {
				return nil, 0, ErrHistoryExpired
			}
			return nil, 0, fmt.Errorf("listing gmail history: %w", classifyAPIError(err))
		}

		if resp.HistoryId > latest {
			latest = resp.HistoryId
		}

		for _, h := range resp.History {
			if h.Id > latest {
				latest = h.Id
			}
			for _, added := range h.MessagesAdded {
				if added.Message == nil {
					continue
				}
				if _, dup := seen[added.Message.Id]; dup {
					continue
				}
				seen[added.Message.Id] = struct{}{}
				messageIDs = append(messageIDs, added.Message.Id)
			}
		}

		if resp.NextPageToken == "" {
			return messageIDs, latest, nil
		}
		pageToken = resp.NextPageToken
	}
}

// ListRecentMessageIDs lists inbox message ids for the initial
// backfill, newest first.
func (c *Client) ListRecentMessageIDs(ctx context.Context, max int64) ([]string, error) {
	if max <= 0 || max > 500 {
		max = 100
	}
	resp, err := c.svc.Users.Messages.List("me").
		LabelIds("INBOX").
		MaxResults(max).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing gmail messages: %w", classifyAPIError(err))
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

func (c *Client) GetMessage(ctx context.Context, id string) (*provider.EmailMessage, error) {
	msg, err := c.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetching gmail message: %w", classifyAPIError(err))
	}
	return convertMessage(msg), nil
}

// Send submits an RFC 2822 message via the user's mailbox and returns
// the provider message id.
func (c *Client) Send(ctx context.Context, fromName, fromAddr, to, subject, htmlBody string) (string, error) {
	var raw strings.Builder
	if fromName != "" {
		encoded := base64.StdEncoding.EncodeToString([]byte(fromName))
		fmt.Fprintf(&raw, "From: =?utf-8?B?%s?= <%s>\r\n", encoded, fromAddr)
	} else {
		fmt.Fprintf(&raw, "From: %s\r\n", fromAddr)
	}
	fmt.Fprintf(&raw, "To: %s\r\n", to)
	encodedSubject := base64.StdEncoding.EncodeToString([]byte(subject))
	fmt.Fprintf(&raw, "Subject: =?utf-8?B?%s?=\r\n", encodedSubject)
	raw.WriteString("MIME-Version: 1.0\r\n")
	raw.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	raw.WriteString(htmlBody)

	resp, err := c.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw.String())),
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("sending gmail message: %w", classifyAPIError(err))
	}
	return resp.Id, nil
}

func convertMessage(msg *gmail.Message) *provider.EmailMessage {
	from := getHeader(msg.Payload, "From")
	fromName, fromAddr := splitAddress(from)

	var to []string
	if toHeader := getHeader(msg.Payload, "To"); toHeader != "" {
		for _, addr := range strings.Split(toHeader, ",") {
			_, a := splitAddress(strings.TrimSpace(addr))
			to = append(to, a)
		}
	}

	text, html := extractBodies(msg.Payload)

	return &provider.EmailMessage{
		ProviderMessageID: msg.Id,
		ProviderThreadID:  msg.ThreadId,
		From:              fromAddr,
		FromName:          fromName,
		To:                to,
		Subject:           getHeader(msg.Payload, "Subject"),
		Snippet:           msg.Snippet,
		BodyText:          text,
		BodyHTML:          html,
		Labels:            msg.LabelIds,
		Unread:            hasLabel(msg.LabelIds, "UNREAD"),
		Starred:           hasLabel(msg.LabelIds, "STARRED"),
		InternalDate:      time.UnixMilli(msg.InternalDate),
	}
}

func getHeader(payload *gmail.MessagePart, name string) string {
	if payload == nil {
		return ""
	}
	for _, h := range payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// splitAddress parses "Name <addr>" into its parts; a bare address
// comes back with an empty name.
func splitAddress(s string) (name, addr string) {
	if idx := strings.Index(s, "<"); idx >= 0 {
		name = strings.Trim(strings.TrimSpace(s[:idx]), `"`)
		addr = strings.Trim(s[idx:], "<> ")
		return name, addr
	}
	return "", strings.TrimSpace(s)
}

func extractBodies(payload *gmail.MessagePart) (text, html string) {
	if payload == nil {
		return "", ""
	}

	if payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			if payload.MimeType == "text/html" {
				return "", string(data)
			}
			return string(data), ""
		}
	}

	var walk func(parts []*gmail.MessagePart)
	walk = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Body != nil && part.Body.Data != "" {
				data, err := base64.URLEncoding.DecodeString(part.Body.Data)
				if err == nil {
					switch part.MimeType {
					case "text/html":
						if html == "" {
							html = string(data)
						}
					case "text/plain":
						if text == "" {
							text = string(data)
						}
					}
				}
			}
			if len(part.Parts) > 0 {
				walk(part.Parts)
			}
		}
	}
	walk(payload.Parts)

	return text, html
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
