package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/klokku/appointments/internal/rest"
	"github.com/klokku/appointments/pkg/appointment"
	log "github.com/sirupsen/logrus"
)

type AppointmentDTO struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

type RescheduleDTO struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type StepDTO struct {
	System string     `json:"system"`
	Status StepStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

type OutcomeDTO struct {
	Appointment AppointmentDTO `json:"appointment"`
	Steps       []StepDTO      `json:"steps"`
	Message     string         `json:"message"`
	Partial     bool           `json:"partial"`
}

type AvailabilityDTO struct {
	Date            string `json:"date"`
	Time            string `json:"time"`
	Available       bool   `json:"available"`
	Reason          string `json:"reason,omitempty"`
	ConflictingTime string `json:"conflictingTime,omitempty"`
	Suggested       string `json:"suggested,omitempty"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service}
}

// Book godoc
// @Summary Book an appointment
// @Tags Appointment
// @Accept json
// @Produce json
// @Param appointment body AppointmentDTO true "Appointment"
// @Success 201 {object} OutcomeDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 409 {object} rest.ErrorResponse "Duplicate booking or slot taken"
// @Router /api/appointment [post]
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	log.Debug("Booking appointment")
	var dto AppointmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}

	outcome, err := h.service.Book(r.Context(), BookRequest{
		FullName: dto.FullName,
		Email:    dto.Email,
		Phone:    dto.Phone,
		Date:     dto.Date,
		Time:     dto.Time,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, outcomeToDTO(outcome))
}

// List godoc
// @Summary List all active appointments
// @Tags Appointment
// @Produce json
// @Success 200 {array} AppointmentDTO
// @Router /api/appointment [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]AppointmentDTO, 0, len(records))
	for _, record := range records {
		dtos = append(dtos, recordToDTO(record))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// Get godoc
// @Summary Get the appointment of a contact
// @Tags Appointment
// @Produce json
// @Param email path string true "Contact email"
// @Success 200 {object} AppointmentDTO
// @Failure 404 {object} rest.ErrorResponse "Not found"
// @Router /api/appointment/{email} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Lookup(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, recordToDTO(record))
}

// Reschedule godoc
// @Summary Move an appointment to another slot
// @Tags Appointment
// @Accept json
// @Produce json
// @Param email path string true "Contact email"
// @Param slot body RescheduleDTO true "New slot"
// @Success 200 {object} OutcomeDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 404 {object} rest.ErrorResponse "Not found"
// @Failure 409 {object} rest.ErrorResponse "Slot taken"
// @Router /api/appointment/{email} [put]
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var dto RescheduleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", err.Error())
		return
	}
	outcome, err := h.service.Reschedule(r.Context(), RescheduleRequest{
		Email: mux.Vars(r)["email"],
		Date:  dto.Date,
		Time:  dto.Time,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, outcomeToDTO(outcome))
}

// Cancel godoc
// @Summary Cancel an appointment
// @Tags Appointment
// @Produce json
// @Param email path string true "Contact email"
// @Success 200 {object} OutcomeDTO
// @Failure 404 {object} rest.ErrorResponse "Not found"
// @Router /api/appointment/{email} [delete]
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.service.Cancel(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, outcomeToDTO(outcome))
}

// Availability godoc
// @Summary Check whether a slot is free
// @Tags Availability
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param time query string true "Time"
// @Success 200 {object} AvailabilityDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /api/availability [get]
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	report, err := h.service.CheckAvailability(r.Context(), query.Get("date"), query.Get("time"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, AvailabilityDTO{
		Date:            report.Date,
		Time:            report.Time,
		Available:       report.Available,
		Reason:          report.Reason,
		ConflictingTime: report.ConflictingTime,
		Suggested:       report.Suggested,
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrInvalidTime):
		rest.WriteError(w, http.StatusBadRequest, "Invalid time", err.Error())
	case errors.Is(err, appointment.ErrInvalidDate):
		rest.WriteError(w, http.StatusBadRequest, "Invalid date", err.Error())
	case errors.Is(err, appointment.ErrInvalidContact):
		rest.WriteError(w, http.StatusBadRequest, "Invalid contact details", err.Error())
	case errors.Is(err, appointment.ErrDuplicateIdentity):
		rest.WriteError(w, http.StatusConflict, "Appointment already exists", err.Error())
	case errors.Is(err, appointment.ErrSlotConflict):
		rest.WriteError(w, http.StatusConflict, "Slot is not available", err.Error())
	case errors.Is(err, appointment.ErrNotFound):
		rest.WriteError(w, http.StatusNotFound, "Appointment not found", err.Error())
	default:
		log.Errorf("appointment request failed: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Internal error", err.Error())
	}
}

func recordToDTO(r appointment.Record) AppointmentDTO {
	return AppointmentDTO{
		FullName: r.FullName,
		Email:    r.Email,
		Phone:    r.Phone,
		Date:     r.Date,
		Time:     r.Time,
	}
}

func outcomeToDTO(o Outcome) OutcomeDTO {
	steps := make([]StepDTO, 0, len(o.Steps))
	for _, s := range o.Steps {
		dto := StepDTO{System: s.System, Status: s.Status}
		if s.Err != nil {
			dto.Error = s.Err.Error()
		}
		steps = append(steps, dto)
	}
	return OutcomeDTO{
		Appointment: recordToDTO(o.Record),
		Steps:       steps,
		Message:     o.Message,
		Partial:     o.Partial(),
	}
}
