// Package search maintains the Typesense collections behind the inbox
// and CRM search boxes.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/typesense/typesense-go/v4/typesense"
	"github.com/typesense/typesense-go/v4/typesense/api"
	"github.com/typesense/typesense-go/v4/typesense/api/pointer"
)

const (
	leadsCollection   = "leads"
	threadsCollection = "email_threads"
)

type Config struct {
	URL    string
	APIKey string
}

type Client struct {
	ts *typesense.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		ts: typesense.NewClient(
			typesense.WithServer(cfg.URL),
			typesense.WithAPIKey(cfg.APIKey),
		),
	}
}

// LeadDoc mirrors the searchable subset of a lead. workspace_id is a
// filter facet so queries never cross tenants.
type LeadDoc struct {
	ID          string `json:"id"`
	WorkspaceID int64  `json:"workspace_id"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	Zip         string `json:"zip"`
	OwnerName   string `json:"owner_name"`
	OwnerEmail  string `json:"owner_email"`
	Stage       string `json:"stage"`
}

type ThreadDoc struct {
	ID          string `json:"id"`
	WorkspaceID int64  `json:"workspace_id"`
	MailboxID   int64  `json:"mailbox_id"`
	Subject     string `json:"subject"`
	Snippet     string `json:"snippet"`
	FromAddress string `json:"from_address"`
}

// EnsureCollections creates the schemas if missing. Safe to call on
// every boot.
func (c *Client) EnsureCollections(ctx context.Context) error {
	schemas := []*api.CollectionSchema{
		{
			Name: leadsCollection,
			Fields: []api.Field{
				{Name: "workspace_id", Type: "int64", Facet: pointer.True()},
				{Name: "street", Type: "string"},
				{Name: "city", Type: "string"},
				{Name: "state", Type: "string"},
				{Name: "zip", Type: "string"},
				{Name: "owner_name", Type: "string", Optional: pointer.True()},
				{Name: "owner_email", Type: "string", Optional: pointer.True()},
				{Name: "stage", Type: "string", Facet: pointer.True()},
			},
		},
		{
			Name: threadsCollection,
			Fields: []api.Field{
				{Name: "workspace_id", Type: "int64", Facet: pointer.True()},
				{Name: "mailbox_id", Type: "int64", Facet: pointer.True()},
				{Name: "subject", Type: "string"},
				{Name: "snippet", Type: "string"},
				{Name: "from_address", Type: "string"},
			},
		},
	}

	for _, schema := range schemas {
		if _, err := c.ts.Collections().Create(ctx, schema); err != nil {
			// Already exists on any boot after the first.
			slog.DebugContext(ctx, "create collection result", "collection", schema.Name, "err", err)
		}
	}
	return nil
}

func (c *Client) UpsertLead(ctx context.Context, doc LeadDoc) error {
	if _, err := c.ts.Collection(leadsCollection).Documents().Upsert(ctx, doc, &api.DocumentIndexParameters{}); err != nil {
		return fmt.Errorf("upserting lead document: %w", err)
	}
	return nil
}

func (c *Client) UpsertThread(ctx context.Context, doc ThreadDoc) error {
	if _, err := c.ts.Collection(threadsCollection).Documents().Upsert(ctx, doc, &api.DocumentIndexParameters{}); err != nil {
		return fmt.Errorf("upserting thread document: %w", err)
	}
	return nil
}

func (c *Client) DeleteLead(ctx context.Context, leadID int64) error {
	if _, err := c.ts.Collection(leadsCollection).Document(strconv.FormatInt(leadID, 10)).Delete(ctx); err != nil {
		return fmt.Errorf("deleting lead document: %w", err)
	}
	return nil
}

func (c *Client) SearchLeads(ctx context.Context, workspaceID int64, query string, limit int) ([]LeadDoc, error) {
	result, err := c.ts.Collection(leadsCollection).Documents().Search(ctx, &api.SearchCollectionParams{
		Q:        pointer.String(query),
		QueryBy:  pointer.String("street,city,zip,owner_name,owner_email"),
		FilterBy: pointer.String(fmt.Sprintf("workspace_id:=%d", workspaceID)),
		PerPage:  pointer.Int(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("searching leads: %w", err)
	}
	return decodeHits[LeadDoc](result)
}

func (c *Client) SearchThreads(ctx context.Context, workspaceID int64, query string, limit int) ([]ThreadDoc, error) {
	result, err := c.ts.Collection(threadsCollection).Documents().Search(ctx, &api.SearchCollectionParams{
		Q:        pointer.String(query),
		QueryBy:  pointer.String("subject,snippet,from_address"),
		FilterBy: pointer.String(fmt.Sprintf("workspace_id:=%d", workspaceID)),
		PerPage:  pointer.Int(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("searching threads: %w", err)
	}
	return decodeHits[ThreadDoc](result)
}

func decodeHits[T any](result *api.SearchResult) ([]T, error) {
	if result.Hits == nil {
		return nil, nil
	}
	out := make([]T, 0, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		raw, err := json.Marshal(hit.Document)
		if err != nil {
			return nil, fmt.Errorf("re-encoding search hit: %w", err)
		}
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decoding search hit: %w", err)
		}
		out = append(out, doc)
	}
	return out, nil
}
