package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	catalogaccessservice "inkwell/contexts/reading/catalog-access-service"
	catalogdomainerrors "inkwell/contexts/reading/catalog-access-service/domain/errors"
	cataloghttp "inkwell/contexts/reading/catalog-access-service/transport/http"
	settlementservice "inkwell/contexts/reading/settlement-service"
	settlementdomainerrors "inkwell/contexts/reading/settlement-service/domain/errors"
	settlementhttp "inkwell/contexts/reading/settlement-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "inkwell/internal/platform/httpserver/docs"
)

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	catalog    catalogaccessservice.Module
	settlement settlementservice.Module
}

func New(
	catalog catalogaccessservice.Module,
	settlement settlementservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		catalog:    catalog,
		settlement: settlement,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routed mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /novels/{novel_id}", s.handleGetNovel)
	s.mux.HandleFunc("GET /novels/{novel_id}/chapters", s.handleListChapters)

	s.mux.HandleFunc("POST /novels/{novel_id}/chapters/{chapter_no}/unlock", s.handleUnlockChapter)
	s.mux.HandleFunc("POST /novels/{novel_id}/unlock-batch", s.handleUnlockBatch)
	s.mux.HandleFunc("GET /novels/{novel_id}/unlocks", s.handleListUnlocks)
	s.mux.HandleFunc("GET /wallet", s.handleGetWallet)
}

func (s *Server) handleGetNovel(w http.ResponseWriter, r *http.Request) {
	novelID := r.PathValue("novel_id")
	viewerID := r.Header.Get("X-User-Id")

	resp, err := s.catalog.Handler.GetNovelHandler(r.Context(), novelID, viewerID)
	if err != nil {
		writeCatalogDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	novelID := r.PathValue("novel_id")
	viewerID := r.Header.Get("X-User-Id")

	resp, err := s.catalog.Handler.ListChaptersHandler(r.Context(), novelID, viewerID)
	if err != nil {
		writeCatalogDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnlockChapter(w http.ResponseWriter, r *http.Request) {
	buyerID := r.Header.Get("X-User-Id")
	if buyerID == "" {
		writeSettlementError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	chapterNumber, err := strconv.Atoi(r.PathValue("chapter_no"))
	if err != nil {
		writeSettlementError(w, http.StatusBadRequest, "invalid_chapter_number", "chapter_no must be an integer")
		return
	}

	// The body is optional: plain unlocks carry no part split.
	var req settlementhttp.UnlockChapterRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeSettlementError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
			return
		}
	}

	resp, err := s.settlement.Handler.UnlockChapterHandler(
		r.Context(),
		buyerID,
		r.PathValue("novel_id"),
		chapterNumber,
		req,
		r.Header.Get("Idempotency-Key"),
	)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnlockBatch(w http.ResponseWriter, r *http.Request) {
	buyerID := r.Header.Get("X-User-Id")
	if buyerID == "" {
		writeSettlementError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req settlementhttp.UnlockBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSettlementError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.settlement.Handler.UnlockBatchHandler(
		r.Context(),
		buyerID,
		r.PathValue("novel_id"),
		req,
		r.Header.Get("Idempotency-Key"),
	)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListUnlocks(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeSettlementError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.settlement.Handler.ListUnlocksHandler(r.Context(), userID, r.PathValue("novel_id"))
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeSettlementError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.settlement.Handler.GetWalletHandler(r.Context(), userID)
	if err != nil {
		writeSettlementDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeCatalogDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalogdomainerrors.ErrNovelNotFound):
		writeCatalogError(w, http.StatusNotFound, "novel_not_found", err.Error())
	case errors.Is(err, catalogdomainerrors.ErrChapterNotFound):
		writeCatalogError(w, http.StatusNotFound, "chapter_not_found", err.Error())
	case errors.Is(err, catalogdomainerrors.ErrInvalidRequest):
		writeCatalogError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeCatalogError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeSettlementDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settlementdomainerrors.ErrNovelNotFound):
		writeSettlementError(w, http.StatusNotFound, "novel_not_found", err.Error())
	case errors.Is(err, settlementdomainerrors.ErrChapterNotFound):
		writeSettlementError(w, http.StatusNotFound, "chapter_not_found", err.Error())
	case errors.Is(err, settlementdomainerrors.ErrOwnerNotFound):
		writeSettlementError(w, http.StatusNotFound, "owner_not_found", err.Error())
	case errors.Is(err, settlementdomainerrors.ErrInsufficientFunds):
		writeSettlementError(w, http.StatusPaymentRequired, "insufficient_funds", err.Error())
	case errors.Is(err, settlementdomainerrors.ErrChapterNotPurchasable):
		writeSettlementError(w, http.StatusConflict, "chapter_not_purchasable", err.Error())
	case errors.Is(err, settlementdomainerrors.ErrSelfPurchase):
		writeSettlementError(w, http.StatusConflict, "self_purchase", err.Error())
	case errors.Is(err, settlementdomainerrors.ErrIdempotencyKeyConflict):
		writeSettlementError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, settlementdomainerrors.ErrInvalidPurchase),
		errors.Is(err, settlementdomainerrors.ErrInvalidRequest):
		writeSettlementError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeSettlementError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeCatalogError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, cataloghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeSettlementError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, settlementhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
