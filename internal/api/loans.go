package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/microfinance-cli/internal/metrics"
	"github.com/sells-group/microfinance-cli/internal/model"
	"github.com/sells-group/microfinance-cli/internal/notify"
	"github.com/sells-group/microfinance-cli/internal/risk"
)

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	var app map[string]any
	if err := decodeJSON(r, &app); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	a, err := risk.ScoreApplication(app)
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.RiskAssessmentsTotal.WithLabelValues(string(a.RiskCategory)).Inc()
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var app map[string]any
	if err := decodeJSON(r, &app); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	name, _ := app["client_name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		writeError(w, r, &risk.ValidationError{Fields: []string{"client_name"}, Reason: "missing required fields"})
		return
	}

	terms, err := risk.ParseApplication(app)
	if err != nil {
		writeError(w, r, err)
		return
	}
	loan := &model.Loan{
		ClientName:   name,
		Amount:       terms.Amount,
		InterestRate: terms.InterestRate,
		TermMonths:   terms.TermMonths,
		Status:       model.LoanPending,
	}
	loan.PhoneNumber, _ = app["phone_number"].(string)
	loan.Purpose, _ = app["purpose"].(string)

	// Terms that cannot be scored are still stored, without a risk analysis.
	a, err := risk.Score(terms.Amount, terms.TermMonths, terms.InterestRate)
	if err != nil {
		zap.L().Warn("loan application not scored", zap.String("client", name), zap.Error(err))
	}
	if a != nil {
		metrics.RiskAssessmentsTotal.WithLabelValues(string(a.RiskCategory)).Inc()
		b, err := json.Marshal(a)
		if err != nil {
			writeError(w, r, err)
			return
		}
		loan.RiskAnalysis = b
	}

	if err := s.store.CreateLoan(r.Context(), loan); err != nil {
		writeError(w, r, err)
		return
	}
	zap.L().Info("loan application received",
		zap.String("loan_id", loan.ID),
		zap.Float64("amount", loan.Amount),
		zap.Bool("scored", a != nil),
	)
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	filter, ok := listFilter(w, r)
	if !ok {
		return
	}
	loans, err := s.store.ListLoans(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := s.store.GetLoan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) handleUpdateLoan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req struct {
		Status model.LoanStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		badRequest(w, "invalid status")
		return
	}

	var approvedAt *time.Time
	if req.Status == model.LoanApproved {
		t := s.now().UTC()
		approvedAt = &t
	}
	if err := s.store.UpdateLoanStatus(ctx, id, req.Status, approvedAt); err != nil {
		writeError(w, r, err)
		return
	}

	loan, err := s.store.GetLoan(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	zap.L().Info("loan status updated", zap.String("loan_id", id), zap.String("status", string(req.Status)))

	if req.Status == model.LoanApproved {
		s.notifyAsync(ctx, loan.PhoneNumber,
			notify.LoanApproval(loan.ClientName, loan.Amount, loan.ID),
			model.MessageNotification)
	}
	writeJSON(w, http.StatusOK, loan)
}

type sendMessageRequest struct {
	To      string            `json:"to"`
	Message string            `json:"message"`
	Type    model.MessageType `json:"message_type"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	req.To = strings.TrimSpace(req.To)
	if req.To == "" || strings.TrimSpace(req.Message) == "" {
		badRequest(w, "to and message are required")
		return
	}
	switch req.Type {
	case "":
		req.Type = model.MessageNotification
	case model.MessageNotification, model.MessageReminder, model.MessageAlert:
	default:
		badRequest(w, "invalid message_type")
		return
	}
	if s.notifier == nil || !s.notifier.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "sms provider not configured"})
		return
	}

	msg, err := s.notifier.Send(r.Context(), req.To, req.Message, req.Type)
	if err != nil {
		if msg == nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusBadGateway, msg)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
