package api

import (
	"net/http"
	"strconv"
	"strings"

	"rentalhub/internal/models"
	"rentalhub/internal/service"

	"github.com/shopspring/decimal"
)

func (s *HTTPServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body createUserRequest
	if err := decodeAndValidate(r, s.validate, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.svc.Users.Create(r.Context(), service.CreateUserRequest{
		Name:           body.Name,
		Email:          body.Email,
		Phone:          body.Phone,
		TelegramChatID: body.TelegramChatID,
	})
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *HTTPServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := s.svc.Users.Profile(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *HTTPServer) handleListEquipment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.EquipmentFilter{
		Category: strings.TrimSpace(q.Get("category")),
		City:     strings.TrimSpace(q.Get("city")),
		Region:   strings.ToUpper(strings.TrimSpace(q.Get("region"))),
		Query:    strings.TrimSpace(q.Get("q")),
	}

	var err error
	if filter.MinPrice, err = optionalDecimal(q.Get("min_price")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid min_price")
		return
	}
	if filter.MaxPrice, err = optionalDecimal(q.Get("max_price")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid max_price")
		return
	}
	if filter.Page, err = optionalInt(q.Get("page")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	if filter.PageSize, err = optionalInt(q.Get("page_size")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid page_size")
		return
	}

	page, err := s.svc.Equipment.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *HTTPServer) handleCreateEquipment(w http.ResponseWriter, r *http.Request) {
	var body equipmentRequest
	if err := decodeAndValidate(r, s.validate, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	eq, err := s.svc.Equipment.Create(r.Context(), actorFromContext(r.Context()), body.input())
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, eq)
}

func (s *HTTPServer) handleMyEquipment(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Equipment.ListMine(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleGetEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	eq, err := s.svc.Equipment.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, eq)
}

func (s *HTTPServer) handleUpdateEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body equipmentRequest
	if err := decodeAndValidate(r, s.validate, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	eq, err := s.svc.Equipment.Update(r.Context(), actorFromContext(r.Context()), id, body.input())
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, eq)
}

func (s *HTTPServer) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body availabilityRequest
	if err := decodeAndValidate(r, s.validate, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	eq, err := s.svc.Equipment.SetAvailability(r.Context(), actorFromContext(r.Context()), id, *body.Available)
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, eq)
}

func (s *HTTPServer) handleDeleteEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Equipment.Delete(r.Context(), actorFromContext(r.Context()), id); err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCheckAvailability is the read-only overlap probe for a date range.
func (s *HTTPServer) handleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := models.ParseDate(strings.TrimSpace(r.URL.Query().Get("start")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start; expected YYYY-MM-DD")
		return
	}
	end, err := models.ParseDate(strings.TrimSpace(r.URL.Query().Get("end")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end; expected YYYY-MM-DD")
		return
	}

	if _, err := s.svc.Equipment.Get(r.Context(), id); err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	conflict, err := s.svc.Rentals.Availability().HasConflict(r.Context(), id, models.NewDateRange(start, end))
	if err != nil {
		writeServiceError(w, r, &s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"equipment_id": id,
		"start_date":   start.Format(models.DateLayout),
		"end_date":     end.Format(models.DateLayout),
		"available":    !conflict,
	})
}

func (b equipmentRequest) input() service.EquipmentInput {
	return service.EquipmentInput{
		Title:       b.Title,
		Description: b.Description,
		Category:    b.Category,
		PricePerDay: b.PricePerDay,
		City:        b.City,
		Region:      b.Region,
		Address:     b.Address,
		Image:       b.Image,
	}
}

func optionalDecimal(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
