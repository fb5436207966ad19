package loads_api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/models"
	"github.com/pukhraj-kanwal/Dispatch-hub/internal/services/loads"
)

// Registry: операции реестра, которые отдаёт HTTP API.
type Registry interface {
	FetchLoads(ctx context.Context) error
	ConfirmLoad(ctx context.Context, loadID, pin string) (*models.Load, error)
	RejectLoad(ctx context.Context, loadID string) error
	ConfirmAllUnconfirmed(ctx context.Context, pin string) ([]*models.Load, error)
	FetchLoadDetail(ctx context.Context, loadID string) (*models.Load, error)
	ConfirmPickup(ctx context.Context, loadID string) (*models.Load, error)
	CompleteDelivery(ctx context.Context, loadID, notes string, photoRefs []string) (*models.Load, error)
	SubmitReassignmentRequest(ctx context.Context, loadID, reason, details string) error
	ClearLoadDetails()
	ClearListError()
	ClearDetailError()
	ClearReassignmentError()
	State() loads.State
}

// EventLister отдаёт журнал переходов (есть только у postgres-бэкенда).
type EventLister interface {
	ListLoadEvents(ctx context.Context, loadID string, limit, offset int) ([]*models.LoadEvent, error)
}

type LoadsAPI struct {
	reg    Registry
	events EventLister
}

func New(reg Registry) *LoadsAPI {
	return &LoadsAPI{reg: reg}
}

func (a *LoadsAPI) WithEvents(ev EventLister) *LoadsAPI {
	a.events = ev
	return a
}

// Routes монтирует API на переданный роутер.
func (a *LoadsAPI) Routes(r chi.Router) {
	r.Get("/state", a.getState)
	r.Get("/reassignment-reasons", a.getReassignmentReasons)
	r.Delete("/errors", a.clearErrors)

	r.Route("/loads", func(r chi.Router) {
		r.Get("/", a.listLoads)
		r.Post("/sync", a.syncLoads)
		r.Post("/confirm-all", a.confirmAll)
		r.Delete("/detail", a.clearDetail)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getDetail)
			r.Get("/events", a.listEvents)
			r.Post("/confirm", a.confirm)
			r.Post("/reject", a.reject)
			r.Post("/pickup", a.pickup)
			r.Post("/delivery", a.delivery)
			r.Post("/reassignment", a.reassignment)
		})
	})
}

// Handler: готовый http.Handler с middleware логирования и восстановления после паники.
func (a *LoadsAPI) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)
	a.Routes(r)
	return r
}

type listResponse struct {
	Confirmed   []*models.Load `json:"confirmed"`
	Unconfirmed []*models.Load `json:"unconfirmed"`
}

type pinRequest struct {
	Pin string `json:"pin"`
}

type deliveryRequest struct {
	Notes     string   `json:"notes"`
	PhotoRefs []string `json:"photoRefs"`
}

type reassignmentRequest struct {
	Reason  string `json:"reason"`
	Details string `json:"details"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func (a *LoadsAPI) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.reg.State())
}

func (a *LoadsAPI) listLoads(w http.ResponseWriter, r *http.Request) {
	st := a.reg.State()
	writeJSON(w, http.StatusOK, listResponse{Confirmed: st.Confirmed, Unconfirmed: st.Unconfirmed})
}

func (a *LoadsAPI) syncLoads(w http.ResponseWriter, r *http.Request) {
	if err := a.reg.FetchLoads(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	a.listLoads(w, r)
}

func (a *LoadsAPI) getDetail(w http.ResponseWriter, r *http.Request) {
	l, err := a.reg.FetchLoadDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *LoadsAPI) clearDetail(w http.ResponseWriter, r *http.Request) {
	a.reg.ClearLoadDetails()
	w.WriteHeader(http.StatusNoContent)
}

func (a *LoadsAPI) clearErrors(w http.ResponseWriter, r *http.Request) {
	a.reg.ClearListError()
	a.reg.ClearDetailError()
	a.reg.ClearReassignmentError()
	w.WriteHeader(http.StatusNoContent)
}

func (a *LoadsAPI) confirm(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if !decode(w, r, &req) {
		return
	}
	l, err := a.reg.ConfirmLoad(r.Context(), chi.URLParam(r, "id"), req.Pin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *LoadsAPI) confirmAll(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := a.reg.ConfirmAllUnconfirmed(r.Context(), req.Pin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"confirmed": out})
}

func (a *LoadsAPI) reject(w http.ResponseWriter, r *http.Request) {
	if err := a.reg.RejectLoad(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *LoadsAPI) pickup(w http.ResponseWriter, r *http.Request) {
	l, err := a.reg.ConfirmPickup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *LoadsAPI) delivery(w http.ResponseWriter, r *http.Request) {
	var req deliveryRequest
	if !decode(w, r, &req) {
		return
	}
	l, err := a.reg.CompleteDelivery(r.Context(), chi.URLParam(r, "id"), req.Notes, req.PhotoRefs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *LoadsAPI) reassignment(w http.ResponseWriter, r *http.Request) {
	var req reassignmentRequest
	if !decode(w, r, &req) {
		return
	}
	if err := a.reg.SubmitReassignmentRequest(r.Context(), chi.URLParam(r, "id"), req.Reason, req.Details); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *LoadsAPI) listEvents(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "event log is not available for this backend"})
		return
	}
	evs, err := a.events.ListLoadEvents(r.Context(), chi.URLParam(r, "id"), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, err)
		return
	}
	if evs == nil {
		evs = []*models.LoadEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

func (a *LoadsAPI) getReassignmentReasons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"reasons": []string{
		models.ReassignReasonEquipmentFailure,
		models.ReassignReasonIncorrectInfo,
		models.ReassignReasonDriverSick,
		models.ReassignReasonDriverOther,
		models.ReassignReasonLogistical,
		models.ReassignReasonOther,
	}})
}

// StatusCode сопоставляет ошибки реестра HTTP-статусам.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, loads.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, loads.ErrInvalidPin):
		return http.StatusForbidden
	case errors.Is(err, loads.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, loads.ErrNothingToConfirm):
		return http.StatusConflict
	case errors.Is(err, loads.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, loads.ErrRemoteFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := StatusCode(err)
	if code == http.StatusInternalServerError {
		slog.Error("unhandled api error", "error", err.Error())
	}
	writeJSON(w, code, errorResponse{Error: err.Error(), Retryable: loads.IsRetryable(err)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// RequestLogger пишет каждую обработанную заявку в slog.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
