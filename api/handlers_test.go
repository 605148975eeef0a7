package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/recon"
	"github.com/gin-gonic/gin"
)

func testContext(rawQuery string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/transactions?"+rawQuery, nil)
	return c
}

func TestPaginateDefaultsAndClamps(t *testing.T) {
	cases := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 1, 50},
		{"page=3&limit=25", 3, 25},
		{"page=0&limit=0", 1, 50},
		{"page=-5&limit=9999", 1, 50},
		{"page=abc&limit=xyz", 1, 50},
		{"limit=500", 1, 500},
	}
	for _, tc := range cases {
		page, limit := paginate(testContext(tc.query))
		if page != tc.wantPage || limit != tc.wantLimit {
			t.Errorf("paginate(%q) = (%d, %d), want (%d, %d)", tc.query, page, limit, tc.wantPage, tc.wantLimit)
		}
	}
}

func TestMakePagination(t *testing.T) {
	cases := []struct {
		total          int64
		limit          int
		wantTotalPages int64
	}{
		{0, 50, 0},
		{1, 50, 1},
		{50, 50, 1},
		{51, 50, 2},
		{100, 25, 4},
	}
	for _, tc := range cases {
		p := makePagination(1, tc.limit, tc.total)
		if p.TotalPages != tc.wantTotalPages {
			t.Errorf("makePagination(total=%d, limit=%d).TotalPages = %d, want %d", tc.total, tc.limit, p.TotalPages, tc.wantTotalPages)
		}
	}
}

func TestMatchRate(t *testing.T) {
	cases := []struct {
		total   int64
		matched int64
		want    float64
	}{
		{0, 0, 0},
		{4, 3, 75},
		{10, 10, 100},
		{3, 0, 0},
	}
	for _, tc := range cases {
		if got := matchRate(tc.total, tc.matched); got != tc.want {
			t.Errorf("matchRate(%d, %d) = %v, want %v", tc.total, tc.matched, got, tc.want)
		}
	}
}

func TestRegisterRoutesServesStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(recon.NewNotifier(nil), nil).RegisterRoutes(r)

	found := false
	for _, route := range r.Routes() {
		if route.Method == http.MethodGet && route.Path == "/api/stats" {
			found = true
		}
	}
	if !found {
		t.Fatal("GET /api/stats not registered")
	}
}

func TestStreamEventsDeliversLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	notifier := recon.NewNotifier(nil)
	h := NewHandler(notifier, nil)

	r := gin.New()
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect event stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	// Wait for the subscription to register before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for notifier.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	notifier.TransactionMatched("TX1", models.ReconStatusMatched, "All transactions matched successfully")

	buf := make([]byte, 4096)
	var body strings.Builder
	for !strings.Contains(body.String(), "transaction_matched") {
		n, rerr := resp.Body.Read(buf)
		body.Write(buf[:n])
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			t.Fatalf("read stream: %v (got %q)", rerr, body.String())
		}
	}

	got := body.String()
	if !strings.Contains(got, `"connected"`) {
		t.Fatalf("missing connected handshake in %q", got)
	}
	if !strings.Contains(got, "transaction_matched") || !strings.Contains(got, "TX1") {
		t.Fatalf("missing lifecycle event in %q", got)
	}
}
