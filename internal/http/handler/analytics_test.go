package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"leadmap.app/server/internal/http/handler"
	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/service"
	"leadmap.app/server/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingAnalyticsStore struct {
	gotType   *model.AnalyticsEventType
	gotSince  *time.Time
	gotUntil  *time.Time
	gotLimit  int32
	gotOffset int32
}

func (r *recordingAnalyticsStore) Insert(ctx context.Context, ev *model.AnalyticsEvent) error {
	return nil
}

func (r *recordingAnalyticsStore) CountByTypeSince(ctx context.Context, workspaceID int64, since time.Time) ([]store.TypeCount, error) {
	return nil, nil
}

func (r *recordingAnalyticsStore) ListRecent(ctx context.Context, workspaceID int64, limit int32) ([]model.AnalyticsEvent, error) {
	return nil, nil
}

func (r *recordingAnalyticsStore) List(ctx context.Context, workspaceID int64, eventType *model.AnalyticsEventType, since, until *time.Time, limit, offset int32) ([]model.AnalyticsEvent, error) {
	r.gotType = eventType
	r.gotSince = since
	r.gotUntil = until
	r.gotLimit = limit
	r.gotOffset = offset
	return []model.AnalyticsEvent{{ID: 1, WorkspaceID: workspaceID}}, nil
}

func eventsRequest(t *testing.T, rec *recordingAnalyticsStore, query string) *httptest.ResponseRecorder {
	t.Helper()

	svc := service.NewAnalyticsService(&store.Stores{Analytics: rec}, nil)
	h := handler.NewAnalyticsHandler(svc)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("auth.member", &model.WorkspaceMember{WorkspaceID: 200, UserID: 1})
	})
	r.GET("/analytics/events", h.ListEvents)

	req := httptest.NewRequest(http.MethodGet, "/analytics/events"+query, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListEventsFilters(t *testing.T) {
	rec := &recordingAnalyticsStore{}
	w := eventsRequest(t, rec,
		"?type=email_received&since=2026-08-01T00:00:00Z&until=2026-08-31T00:00:00Z&limit=10&offset=20")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if rec.gotType == nil || *rec.gotType != model.AnalyticsEmailReceived {
		t.Errorf("eventType = %v, want %q", rec.gotType, model.AnalyticsEmailReceived)
	}
	if rec.gotSince == nil || !rec.gotSince.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("since = %v, want 2026-08-01", rec.gotSince)
	}
	if rec.gotUntil == nil || !rec.gotUntil.Equal(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("until = %v, want 2026-08-31", rec.gotUntil)
	}
	if rec.gotLimit != 10 || rec.gotOffset != 20 {
		t.Errorf("limit/offset = %d/%d, want 10/20", rec.gotLimit, rec.gotOffset)
	}
	if !strings.Contains(w.Body.String(), `"events"`) {
		t.Errorf("body = %s, want events envelope", w.Body.String())
	}
}

func TestListEventsNoFilters(t *testing.T) {
	rec := &recordingAnalyticsStore{}
	w := eventsRequest(t, rec, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if rec.gotType != nil || rec.gotSince != nil || rec.gotUntil != nil {
		t.Errorf("filters = %v/%v/%v, want all nil", rec.gotType, rec.gotSince, rec.gotUntil)
	}
	if rec.gotLimit != 50 {
		t.Errorf("default limit = %d, want 50", rec.gotLimit)
	}
}

func TestListEventsRejectsBadTimestamp(t *testing.T) {
	rec := &recordingAnalyticsStore{}
	w := eventsRequest(t, rec, "?since=yesterday")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
