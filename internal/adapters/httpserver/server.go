package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/pdvhub/internal/domain"
	"github.com/phenrril/pdvhub/internal/usecase"
)

type Server struct {
	mux       *http.ServeMux
	sync      *usecase.SyncUC
	products  *usecase.ProductUC
	metrics   *usecase.MetricsUC
	customers domain.CustomerRepo
	debts     domain.DebtRepo
	tenants   domain.TenantRepo
	validate  *validator.Validate
}

func New(sync *usecase.SyncUC, products *usecase.ProductUC, metrics *usecase.MetricsUC, customers domain.CustomerRepo, debts domain.DebtRepo, tenants domain.TenantRepo) http.Handler {
	s := &Server{
		mux:       http.NewServeMux(),
		sync:      sync,
		products:  products,
		metrics:   metrics,
		customers: customers,
		debts:     debts,
		tenants:   tenants,
		validate:  validator.New(),
	}
	s.routes()
	return Chain(s.mux,
		RequestID,
		Recovery,
		Logging,
	)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/sync/ping", s.handlePing)
	s.mux.HandleFunc("/api/sync/push", s.handlePush)
	s.mux.HandleFunc("/api/sync/pull", s.handlePull)

	s.mux.HandleFunc("/api/products", s.handleProducts)
	s.mux.HandleFunc("/api/products/upsert", s.handleProductUpsert)
	s.mux.HandleFunc("/api/products/", s.handleProductByID)

	s.mux.HandleFunc("/api/customers", s.handleCustomers)

	s.mux.HandleFunc("/api/debts/open", s.handleDebtsOpen)
	s.mux.HandleFunc("/api/debts/", s.handleDebtPayment)

	s.mux.HandleFunc("/api/metrics/sales-day", s.handleSalesDay)
}

// tenantID resolves the calling tenant from the X-Tenant-Id header,
// falling back to the first active tenant for single-store installs
// that never send the header.
func (s *Server) tenantID(r *http.Request) (uuid.UUID, error) {
	if raw := r.Header.Get("X-Tenant-Id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, domain.InvalidPayloadf("malformed X-Tenant-Id %q", raw)
		}
		return id, nil
	}
	t, err := s.tenants.FirstActive(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return uuid.Nil, domain.ErrTenantUnresolved
		}
		return uuid.Nil, err
	}
	return t.ID, nil
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"server_time": time.Now().UTC(),
	})
}

type pushRequest struct {
	Events []domain.ChangeEvent `json:"events"`
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tid, err := s.tenantID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.InvalidPayloadf("invalid json: %v", err))
		return
	}
	results := s.sync.Push(r.Context(), tid, req.Events)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tid, err := s.tenantID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, domain.InvalidPayloadf("malformed limit %q", raw))
			return
		}
	}
	feed, err := s.sync.Pull(r.Context(), tid, r.URL.Query().Get("since"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tid, err := s.tenantID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	f := domain.ProductFilter{Query: q.Get("q")}
	if raw := q.Get("page"); raw != "" {
		f.Page, _ = strconv.Atoi(raw)
	}
	if raw := q.Get("page_size"); raw != "" {
		f.PageSize, _ = strconv.Atoi(raw)
	}
	if raw := q.Get("active"); raw != "" {
		b := raw == "true" || raw == "1"
		f.Active = &b
	}
	items, total, err := s.products.List(r.Context(), tid, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (s *Server) handleProductUpsert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tid, err := s.tenantID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var in domain.ProductUpsert
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, domain.InvalidPayloadf("invalid json: %v", err))
		return
	}
	if err := s.validate.Struct(in); err != nil {
		writeError(w, domain.InvalidPayloadf("%v", err))
		return
	}
	p, err := s.products.Upsert(r.Context(), tid, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleProductByID serves GET /api/products/{idOrCode}; a non-uuid path
// segment is looked up as the tenant-scoped product code.
func (s *Server) handleProductByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	idOrCode := strings.TrimPrefix(r.URL.Path, "/api/products/")
	if idOrCode == "" || strings.Contains(idOrCode, "/") {
		http.NotFound(w, r)
		return
	}
	tid, err := s.tenantID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.products.Resolve(r.Context(), tid, idOrCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	tid, err := s.tenantID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := s.customers.List(r.Context(), tid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list})
	case http.MethodPost:
		var ch domain.CustomerChange
		if err := json.NewDecoder(r.Body).Decode(&ch); err != nil {
			writeError(w, domain.InvalidPayloadf("invalid json: %v", err))
			return
		}
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		id, err := uuid.Parse(ch.ID)
		if err != nil {
			writeError(w, domain.InvalidPayloadf("malformed customer id %q", ch.ID))
			return
		}
		if err := s.customers.Apply(r.Context(), tid, id, ch); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": id})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDebtsOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tid, err := s.tenantID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var customerID *uuid.UUID
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		cid, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, domain.InvalidPayloadf("malformed customer_id %q", raw))
			return
		}
		customerID = &cid
	}
	list, err := s.debts.ListOpen(r.Context(), tid, customerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

// handleDebtPayment serves POST /api/debts/{id}/payments.
func (s *Server) handleDebtPayment(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/debts/")
	idStr, tail, ok := strings.Cut(rest, "/")
	if !ok || tail != "payments" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tid, err := s.tenantID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	debtID, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, domain.InvalidPayloadf("malformed debt id %q", idStr))
		return
	}
	var p domain.DebtPaymentChange
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, domain.InvalidPayloadf("invalid json: %v", err))
		return
	}
	d, err := s.debts.RegisterPayment(r.Context(), tid, debtID, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleSalesDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tid, err := s.tenantID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	day := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err = time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, domain.InvalidPayloadf("malformed date %q, want YYYY-MM-DD", raw))
			return
		}
	}
	total, err := s.metrics.SalesDay(r.Context(), tid, day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  day.Format("2006-01-02"),
		"total": total,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var se *domain.SyncError
	switch {
	case errors.As(err, &se) && (se.Kind == domain.SyncErrInvalidPayload || se.Kind == domain.SyncErrInvalidReference):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": string(se.Kind), "detail": se.Detail})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not_found"})
	case errors.Is(err, domain.ErrTenantUnresolved):
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "tenant_unresolved"})
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal"})
	}
}
