package endpoint

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/psicoagenda/backend/model"
	"github.com/psicoagenda/backend/util"
)

// Sentinel errors for the booking flow.
var (
	ErrProfileNotFound = errors.New("no profile for authenticated user")
	ErrSlotTaken       = errors.New("el horario ya está ocupado")
	// ErrNotFoundOrForbidden deliberately conflates "does not exist" with
	// "belongs to another patient" so existence never leaks to non-owners.
	ErrNotFoundOrForbidden = errors.New("cita no encontrada")
)

const defaultDurationMinutes = 60

// resolvePatientID maps an authenticated user to their patient profile.
// gorm.ErrRecordNotFound is a valid state (e.g. an Admin), not a server
// error; callers must respond with an authorization failure.
func resolvePatientID(db *gorm.DB, userID uint) (uint, error) {
	var patient model.Patient
	err := db.Where("user_id = ?", userID).First(&patient).Error
	if err == gorm.ErrRecordNotFound {
		return 0, ErrProfileNotFound
	}
	if err != nil {
		return 0, err
	}
	return patient.ID, nil
}

// resolvePsychologistID maps an authenticated user to their psychologist profile.
func resolvePsychologistID(db *gorm.DB, userID uint) (uint, error) {
	var psych model.Psychologist
	err := db.Where("user_id = ?", userID).First(&psych).Error
	if err == gorm.ErrRecordNotFound {
		return 0, ErrProfileNotFound
	}
	if err != nil {
		return 0, err
	}
	return psych.ID, nil
}

// hasSlotConflict reports whether another non-cancelled appointment for the
// psychologist already occupies the exact start timestamp, excluding the
// appointment being edited. This is an exact-match check on the start
// instant, not an interval overlap: appointments of different durations that
// overlap but start at different times are not detected. Booking granularity
// assumes fixed slot boundaries.
//
// Run inside a transaction: the probe takes a row lock so a concurrent
// booking for the same slot blocks until this one commits.
func hasSlotConflict(tx *gorm.DB, psychologistID uint, start time.Time, excludeID uint) (bool, error) {
	var conflicting []model.Appointment
	query := tx.Where("psychologist_id = ? AND start_time = ? AND status <> ?", psychologistID, start, model.AppointmentCancelled)
	if tx.Dialector.Name() == "mysql" {
		// SQLite (tests) has no FOR UPDATE; its transactions serialize writers anyway.
		// On MySQL the probe blocks a concurrent insert for the same slot only
		// under REPEATABLE READ (the default), where the locking read takes a
		// gap lock on the probed index range. READ COMMITTED would let both
		// writers pass the check.
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Limit(1).Find(&conflicting).Error; err != nil {
		return false, err
	}
	return len(conflicting) > 0, nil
}

// parseSlotTime combines the wire "YYYY-MM-DD" date and "HH:MM" time fields
// into one timestamp.
func parseSlotTime(fecha, hora string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", fecha+" "+hora, time.Local)
}

func respondProfileFailure(c *gin.Context, err error) {
	if errors.Is(err, ErrProfileNotFound) {
		util.CallUserForbidden(c, util.APIErrorParams{
			Msg: "No existe un perfil de paciente para esta cuenta",
			Err: err,
		})
		return
	}
	util.CallServerError(c, util.APIErrorParams{Msg: "Database error", Err: fmt.Errorf("profile lookup failed")})
}

type BookAppointmentRequest struct {
	Fecha         string `json:"fecha" example:"2025-06-01"`
	Hora          string `json:"hora" example:"10:00"`
	PsychologistID uint  `json:"id_psicologo" example:"5"`
	Motivo        string `json:"motivo,omitempty" example:"Primera consulta"`
	Duracion      int    `json:"duracion,omitempty" example:"60"`
}

// BookAppointment godoc
// @Summary      Book an appointment
// @Description  Create a pending appointment for the authenticated patient
// @Tags         Appointment
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body BookAppointmentRequest true "Booking details"
// @Success      201 {object} util.APIResponse "Appointment created"
// @Failure      400 {object} util.APIResponse "Incomplete data"
// @Failure      403 {object} util.APIResponse "No patient profile"
// @Failure      409 {object} util.APIResponse "Slot taken"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /appointment [post]
func BookAppointment(c *gin.Context) {
	var req BookAppointmentRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	if req.Fecha == "" || req.Hora == "" || req.PsychologistID == 0 {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Datos incompletos: fecha, hora y psicólogo son obligatorios",
			Err: fmt.Errorf("incomplete data"),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	userID, ok := getUserIDOrRespond(c)
	if !ok {
		return
	}

	patientID, err := resolvePatientID(db, userID)
	if err != nil {
		respondProfileFailure(c, err)
		return
	}

	start, err := parseSlotTime(req.Fecha, req.Hora)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Fecha u hora no válidas", Err: err})
		return
	}

	duration := req.Duracion
	if duration <= 0 {
		duration = defaultDurationMinutes
	}

	appointment := model.Appointment{
		PatientID:       patientID,
		PsychologistID:  req.PsychologistID,
		StartTime:       &start,
		Reason:          req.Motivo,
		DurationMinutes: duration,
		Status:          model.AppointmentPending,
	}

	// Conflict check and insert commit atomically so two concurrent bookings
	// for the same slot cannot both pass the check.
	err = db.Transaction(func(tx *gorm.DB) error {
		conflict, err := hasSlotConflict(tx, req.PsychologistID, start, 0)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotTaken
		}
		return tx.Create(&appointment).Error
	})
	if errors.Is(err, ErrSlotTaken) {
		util.CallConflictError(c, util.APIErrorParams{Msg: "El horario seleccionado ya está ocupado", Err: ErrSlotTaken})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to book appointment", Err: fmt.Errorf("booking failed")})
		return
	}

	util.CallSuccessCreated(c, util.APISuccessParams{
		Msg:  "Cita reservada",
		Data: map[string]interface{}{"id_cita": appointment.ID},
	})
}

type EditAppointmentRequest struct {
	PsychologistID uint   `json:"id_psicologo,omitempty" example:"5"`
	Fecha          string `json:"fecha,omitempty" example:"2025-06-02"`
	Hora           string `json:"hora,omitempty" example:"11:00"`
}

// parseAppointmentID parses the :id path parameter.
func parseAppointmentID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("appointment id must be a positive integer")
	}
	return uint(id), nil
}

// slotInputError marks a user-correctable problem with the requested slot, as
// opposed to a database failure.
type slotInputError struct{ msg string }

func (e slotInputError) Error() string { return e.msg }

// effectiveSlot computes the rescheduled psychologist and start time, falling
// back to the appointment's current values for any field left empty. Partial
// update semantics: an empty request is a valid no-op.
func effectiveSlot(appointment *model.Appointment, req EditAppointmentRequest) (uint, time.Time, error) {
	psychologistID := appointment.PsychologistID
	if req.PsychologistID != 0 {
		psychologistID = req.PsychologistID
	}

	fecha := req.Fecha
	hora := req.Hora
	if fecha == "" || hora == "" {
		if appointment.StartTime == nil {
			// No stored slot to fall back on.
			return 0, time.Time{}, slotInputError{msg: "fecha y hora son obligatorias"}
		}
		if fecha == "" {
			fecha = appointment.StartTime.Format("2006-01-02")
		}
		if hora == "" {
			hora = appointment.StartTime.Format("15:04")
		}
	}

	start, err := parseSlotTime(fecha, hora)
	if err != nil {
		return 0, time.Time{}, slotInputError{msg: "fecha u hora no válidas"}
	}
	return psychologistID, start, nil
}

// EditAppointment godoc
// @Summary      Reschedule an appointment
// @Description  Change psychologist, date and/or time; omitted fields keep their current values
// @Tags         Appointment
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Param        request body EditAppointmentRequest true "Fields to change"
// @Success      200 {object} util.APIResponse "Appointment updated"
// @Failure      400 {object} util.APIResponse "Invalid payload"
// @Failure      403 {object} util.APIResponse "No patient profile"
// @Failure      404 {object} util.APIResponse "Not found or not owned by caller"
// @Failure      409 {object} util.APIResponse "Slot taken"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /appointment/{id} [patch]
func EditAppointment(c *gin.Context) {
	appointmentID, err := parseAppointmentID(c)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: err.Error(), Err: err})
		return
	}

	var req EditAppointmentRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	userID, ok := getUserIDOrRespond(c)
	if !ok {
		return
	}

	patientID, err := resolvePatientID(db, userID)
	if err != nil {
		respondProfileFailure(c, err)
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var appointment model.Appointment
		// Ownership is part of the lookup so a foreign id and a missing id
		// are indistinguishable to the caller. Cancelled appointments also
		// read as missing, matching cancel's conditional update: their slot
		// is gone and rescheduling one would resurrect it with a cancelled
		// status invisible to the conflict checker.
		if err := tx.Where("id = ? AND patient_id = ? AND status <> ?", appointmentID, patientID, model.AppointmentCancelled).First(&appointment).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFoundOrForbidden
			}
			return err
		}

		psychologistID, start, err := effectiveSlot(&appointment, req)
		if err != nil {
			return err
		}

		conflict, err := hasSlotConflict(tx, psychologistID, start, appointment.ID)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotTaken
		}

		appointment.PsychologistID = psychologistID
		appointment.StartTime = &start
		return tx.Save(&appointment).Error
	})

	var inputErr slotInputError
	switch {
	case errors.Is(err, ErrNotFoundOrForbidden):
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Cita no encontrada", Err: ErrNotFoundOrForbidden})
	case errors.Is(err, ErrSlotTaken):
		util.CallConflictError(c, util.APIErrorParams{Msg: "El horario seleccionado ya está ocupado", Err: ErrSlotTaken})
	case errors.As(err, &inputErr):
		util.CallUserError(c, util.APIErrorParams{Msg: inputErr.msg, Err: inputErr})
	case err != nil:
		// Driver errors stay out of the response body.
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update appointment", Err: fmt.Errorf("appointment update failed")})
	default:
		util.CallSuccessOK(c, util.APISuccessParams{Msg: "Cita actualizada"})
	}
}

// CancelAppointment godoc
// @Summary      Cancel an appointment
// @Description  Soft-cancel: the row is kept for history, its start time cleared so the slot frees up
// @Tags         Appointment
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Success      200 {object} util.APIResponse "Appointment cancelled"
// @Failure      403 {object} util.APIResponse "No patient profile"
// @Failure      404 {object} util.APIResponse "Not found or not owned by caller"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /appointment/{id} [delete]
func CancelAppointment(c *gin.Context) {
	appointmentID, err := parseAppointmentID(c)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: err.Error(), Err: err})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	userID, ok := getUserIDOrRespond(c)
	if !ok {
		return
	}

	patientID, err := resolvePatientID(db, userID)
	if err != nil {
		respondProfileFailure(c, err)
		return
	}

	// Conditional update; cancelling an already-cancelled or foreign
	// appointment affects zero rows, which reads as not found.
	result := db.Model(&model.Appointment{}).
		Where("id = ? AND patient_id = ? AND status <> ?", appointmentID, patientID, model.AppointmentCancelled).
		Updates(map[string]interface{}{"start_time": nil, "status": model.AppointmentCancelled})
	if result.Error != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to cancel appointment", Err: fmt.Errorf("cancel failed")})
		return
	}
	if result.RowsAffected == 0 {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Cita no encontrada", Err: ErrNotFoundOrForbidden})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Cita cancelada"})
}
