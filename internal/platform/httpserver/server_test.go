package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	catalogaccessservice "inkwell/contexts/reading/catalog-access-service"
	catalogentities "inkwell/contexts/reading/catalog-access-service/domain/entities"
	settlementservice "inkwell/contexts/reading/settlement-service"
	settlementports "inkwell/contexts/reading/settlement-service/ports"
	settlementhttp "inkwell/contexts/reading/settlement-service/transport/http"
)

func newTestServer(t *testing.T) (*httptest.Server, settlementservice.Module) {
	t.Helper()

	catalog := catalogaccessservice.NewInMemoryModule(nil)
	catalog.Store.SeedNovel(catalogentities.Novel{
		NovelID: "novel-1",
		Slug:    "ash-garden",
		Title:   "Ash Garden",
		OwnerID: "owner-1",
		Status:  catalogentities.NovelStatusOngoing,
	})
	catalog.Store.SeedChapter(catalogentities.Chapter{
		NovelID:   "novel-1",
		Number:    1,
		Title:     "The Gate",
		CoinPrice: 0,
	})

	settlement := settlementservice.NewInMemoryModule(nil)
	scheduled := time.Now().Add(24 * time.Hour)
	settlement.Store.SeedNovel(settlementports.NovelInfo{NovelID: "novel-1", OwnerID: "owner-1"})
	settlement.Store.SeedChapter("novel-1", settlementports.ChapterInfo{Number: 1, CoinPrice: 30, PublishAt: &scheduled})
	settlement.Store.SeedAccount("reader-1", 100)
	settlement.Store.SeedAccount("reader-poor", 5)
	settlement.Store.SeedAccount("owner-1", 0)

	server := New(catalog, settlement, nil, "")
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, settlement
}

func doRequest(t *testing.T, method, url, userID string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestGetNovelRoute(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, ts.URL+"/novels/novel-1", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/novels/missing", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown novel, got %d", resp.StatusCode)
	}
}

func TestUnlockChapterRouteRequiresUser(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, ts.URL+"/novels/novel-1/chapters/1/unlock", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without X-User-Id, got %d", resp.StatusCode)
	}
}

func TestUnlockChapterRouteSettles(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, ts.URL+"/novels/novel-1/chapters/1/unlock", "reader-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload settlementhttp.UnlockChapterResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Receipt.PricePaid != 30 || payload.Receipt.BuyerBalance != 70 {
		t.Fatalf("unexpected receipt: %+v", payload.Receipt)
	}
}

func TestUnlockChapterRouteRejectsBadChapterNumber(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, ts.URL+"/novels/novel-1/chapters/one/unlock", "reader-1", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-integer chapter, got %d", resp.StatusCode)
	}
}

func TestUnlockChapterRouteInsufficientFunds(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, ts.URL+"/novels/novel-1/chapters/1/unlock", "reader-poor", nil)
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.StatusCode)
	}
}

func TestWalletRoute(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, ts.URL+"/wallet", "reader-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload settlementhttp.WalletResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.UserID != "reader-1" || payload.Balance != 100 {
		t.Fatalf("unexpected wallet payload: %+v", payload)
	}
}

func TestUnlockBatchRoute(t *testing.T) {
	ts, settlement := newTestServer(t)
	scheduled := time.Now().Add(24 * time.Hour)
	settlement.Store.SeedChapter("novel-1", settlementports.ChapterInfo{Number: 2, CoinPrice: 20, PublishAt: &scheduled})

	resp := doRequest(t, http.MethodPost, ts.URL+"/novels/novel-1/unlock-batch", "reader-1", settlementhttp.UnlockBatchRequest{
		Chapters: []settlementhttp.ChapterRefDTO{{Number: 1}, {Number: 2}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload settlementhttp.UnlockBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Receipts) != 2 || payload.TotalSpent != 50 {
		t.Fatalf("unexpected batch payload: %+v", payload)
	}
}
