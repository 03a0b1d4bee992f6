// internal/circulation/handler.go
package circulation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ISBN     string    `json:"isbn"`
		Username string    `json:"username"`
		DueAt    time.Time `json:"due_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loan, err := h.service.Checkout(r.Context(), req.ISBN, req.Username, req.DueAt)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(loan)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ISBN      string  `json:"isbn"`
		Username  string  `json:"username"`
		Condition string  `json:"condition"`
		Fine      float64 `json:"fine"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.Return(r.Context(), req.ISBN, req.Username, req.Condition, req.Fine); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) HandleRenew(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ISBN     string    `json:"isbn"`
		Username string    `json:"username"`
		NewDueAt time.Time `json:"new_due_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.Renew(r.Context(), req.ISBN, req.Username, req.NewDueAt); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) HandleJoinWaitlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ISBN     string `json:"isbn"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.JoinWaitlist(r.Context(), req.ISBN, req.Username); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotAvailable), errors.Is(err, ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, ErrLoanNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrOverdue):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrBorrowerInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
