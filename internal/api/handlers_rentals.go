package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"rentalhub/internal/models"
	"rentalhub/internal/service"
)

func (s *HTTPServer) handleCreateRental(w http.ResponseWriter, r *http.Request) {
	var body createRentalRequest
	if err := decodeAndValidate(r, s.validate, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := models.ParseDate(strings.TrimSpace(body.StartDate))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date; expected YYYY-MM-DD")
		return
	}
	end, err := models.ParseDate(strings.TrimSpace(body.EndDate))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date; expected YYYY-MM-DD")
		return
	}

	rental, err := s.svc.Rentals.Create(r.Context(), actorFromContext(r.Context()), service.CreateRentalRequest{
		EquipmentID: body.EquipmentID,
		Start:       start,
		End:         end,
		Note:        body.Note,
	})
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, rental)
}

func (s *HTTPServer) handleListRentals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	role := models.RentalRole(strings.ToLower(strings.TrimSpace(q.Get("role"))))

	var status *models.RentalStatus
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		st, err := models.ParseRentalStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = &st
	}

	rentals, err := s.svc.Rentals.List(r.Context(), actorFromContext(r.Context()), role, status)
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rentals": rentals})
}

func (s *HTTPServer) handleGetRental(w http.ResponseWriter, r *http.Request) {
	s.rentalAction(w, r, func(ctx context.Context, actorID, id int64) (*models.Rental, error) {
		return s.svc.Rentals.Get(ctx, actorID, id)
	})
}

func (s *HTTPServer) handleAccept(w http.ResponseWriter, r *http.Request) {
	s.rentalAction(w, r, s.svc.Rentals.Accept)
}

func (s *HTTPServer) handleReject(w http.ResponseWriter, r *http.Request) {
	note, ok := s.readNote(w, r)
	if !ok {
		return
	}
	s.rentalAction(w, r, func(ctx context.Context, actorID, id int64) (*models.Rental, error) {
		return s.svc.Rentals.Reject(ctx, actorID, id, note)
	})
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	note, ok := s.readNote(w, r)
	if !ok {
		return
	}
	s.rentalAction(w, r, func(ctx context.Context, actorID, id int64) (*models.Rental, error) {
		return s.svc.Rentals.Cancel(ctx, actorID, id, note)
	})
}

func (s *HTTPServer) handleConfirmReturn(w http.ResponseWriter, r *http.Request) {
	s.rentalAction(w, r, s.svc.Rentals.ConfirmReturn)
}

func (s *HTTPServer) handleConclude(w http.ResponseWriter, r *http.Request) {
	s.rentalAction(w, r, s.svc.Rentals.Conclude)
}

func (s *HTTPServer) handleReviewEligibility(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	el, err := s.svc.Reviews.CanReview(r.Context(), actorFromContext(r.Context()), id, r.URL.Query().Get("kind"))
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, el)
}

func (s *HTTPServer) handleExportRentals(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	actorID := actorFromContext(r.Context())
	if _, err := s.svc.Export.WriteRentals(r.Context(), actorID, &buf); err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="rentals-%d.xlsx"`, actorID))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type rentalOp func(ctx context.Context, actorID, rentalID int64) (*models.Rental, error)

func (s *HTTPServer) rentalAction(w http.ResponseWriter, r *http.Request, op rentalOp) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rental, err := op(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rental)
}

// readNote accepts an empty body as "no note".
func (s *HTTPServer) readNote(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.ContentLength == 0 {
		return "", true
	}
	var body noteRequest
	if err := decodeAndValidate(r, s.validate, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return body.Note, true
}

func (s *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var body webhookRequest
	// providers add fields over time, so unknown ones are tolerated here
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	dataID := body.Data.ID
	if dataID == "" {
		dataID = body.ExternalPaymentID
	}

	res, err := s.svc.Payments.HandleWebhook(r.Context(), service.WebhookNotification{
		Type:   body.Type,
		Action: body.Action,
		DataID: dataID,
		Status: body.Status,
	})
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	txn, err := s.svc.Payments.Initiate(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transaction": txn,
		"simulated":   s.svc.Payments.Simulated(),
	})
}

func (s *HTTPServer) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	txn, err := s.svc.Payments.Get(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (s *HTTPServer) handleListPayments(w http.ResponseWriter, r *http.Request) {
	txns, err := s.svc.Payments.List(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}
