package api

import (
	"net/http"

	"rentalhub/internal/service"
)

func (s *HTTPServer) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var body createReviewRequest
	if err := decodeAndValidate(r, s.validate, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	review, err := s.svc.Reviews.Create(r.Context(), actorFromContext(r.Context()), service.CreateReviewRequest{
		RentalID: body.RentalID,
		Kind:     body.Kind,
		Rating:   body.Rating,
		Comment:  body.Comment,
	})
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (s *HTTPServer) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Reviews.Delete(r.Context(), actorFromContext(r.Context()), id); err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleEquipmentReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.svc.Reviews.EquipmentReviews(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleUserReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.svc.Reviews.UserReviews(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	messages, err := s.svc.Messages.List(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *HTTPServer) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body sendMessageRequest
	if err := decodeAndValidate(r, s.validate, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := s.svc.Messages.Send(r.Context(), actorFromContext(r.Context()), id, body.Content)
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *HTTPServer) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.svc.Messages.UnreadCount(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}
