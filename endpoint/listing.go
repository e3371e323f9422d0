package endpoint

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/psicoagenda/backend/model"
	"github.com/psicoagenda/backend/util"
)

// CalendarEvent is the shape calendar widgets consume directly, which is why
// the calendar feed returns a bare array instead of the usual envelope.
type CalendarEvent struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
}

const calendarTimeLayout = "2006-01-02T15:04:05"

func parseUintQueryParam(c *gin.Context, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return uint(v), nil
}

// CalendarFeed godoc
// @Summary      Calendar feed for a psychologist
// @Description  One event per non-cancelled appointment, end computed from start plus duration. Returns a bare array.
// @Tags         Listing
// @Produce      json
// @Security     SessionToken
// @Param        idDoctor query int true "Psychologist ID"
// @Success      200 {array} CalendarEvent
// @Failure      400 {object} util.APIResponse "Missing or invalid idDoctor"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /appointment/calendar [get]
func CalendarFeed(c *gin.Context) {
	psychologistID, err := parseUintQueryParam(c, "idDoctor")
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: err.Error(), Err: err})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var rows []struct {
		ID              uint
		StartTime       time.Time
		DurationMinutes int
		Reason          string
		FirstName       string
		LastName        string
	}
	err = db.Table("appointments").
		Select("appointments.id, appointments.start_time, appointments.duration_minutes, appointments.reason, patients.first_name, patients.last_name").
		Joins("JOIN patients ON patients.id = appointments.patient_id").
		Where("appointments.psychologist_id = ? AND appointments.status <> ? AND appointments.start_time IS NOT NULL AND appointments.deleted_at IS NULL",
			psychologistID, model.AppointmentCancelled).
		Order("appointments.start_time ASC").
		Scan(&rows).Error
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to load calendar", Err: fmt.Errorf("calendar query failed")})
		return
	}

	// Zero appointments is an empty array, never null or an error.
	events := make([]CalendarEvent, 0, len(rows))
	for _, r := range rows {
		title := r.FirstName + " " + r.LastName
		if r.Reason != "" {
			title = fmt.Sprintf("%s - %s", title, r.Reason)
		}
		events = append(events, CalendarEvent{
			ID:    r.ID,
			Title: title,
			Start: r.StartTime.Format(calendarTimeLayout),
			End:   r.StartTime.Add(time.Duration(r.DurationMinutes) * time.Minute).Format(calendarTimeLayout),
		})
	}

	c.JSON(http.StatusOK, events)
}

// NextAppointment godoc
// @Summary      Next upcoming appointment for a patient
// @Tags         Listing
// @Produce      json
// @Security     SessionToken
// @Param        idPaciente query int true "Patient ID"
// @Success      200 {object} util.APIResponse "Next appointment, or a message when none is scheduled"
// @Failure      400 {object} util.APIResponse "Missing or invalid idPaciente"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /appointment/next [get]
func NextAppointment(c *gin.Context) {
	patientID, err := parseUintQueryParam(c, "idPaciente")
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: err.Error(), Err: err})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var next struct {
		model.Appointment
		PsychologistFirstName string `json:"psychologist_first_name"`
		PsychologistLastName  string `json:"psychologist_last_name"`
	}
	err = db.Table("appointments").
		Select("appointments.*, psychologists.first_name AS psychologist_first_name, psychologists.last_name AS psychologist_last_name").
		Joins("JOIN psychologists ON psychologists.id = appointments.psychologist_id").
		Where("appointments.patient_id = ? AND appointments.start_time > ? AND appointments.deleted_at IS NULL", patientID, time.Now()).
		Order("appointments.start_time ASC").
		First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// No row is the common case for new patients, not a failure.
		util.CallSuccessOK(c, util.APISuccessParams{
			Msg:  "Sin citas próximas",
			Data: map[string]interface{}{"message": "No hay citas próximas"},
		})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to load next appointment", Err: fmt.Errorf("next appointment query failed")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Próxima cita", Data: next})
}

// ListPsychologists godoc
// @Summary      Psychologist directory
// @Description  List psychologists, optionally filtered by specialty
// @Tags         Listing
// @Produce      json
// @Security     SessionToken
// @Param        especialidad query int false "Specialty ID"
// @Success      200 {object} util.APIResponse "Directory retrieved"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /psychologist [get]
func ListPsychologists(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	query := db.Model(&model.Psychologist{})
	if raw := c.Query("especialidad"); raw != "" {
		specialtyID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			util.CallUserError(c, util.APIErrorParams{Msg: "especialidad must be an integer", Err: err})
			return
		}
		query = query.Where("specialty_id = ?", uint(specialtyID))
	}

	var psychologists []model.Psychologist
	if err := query.Order("last_name ASC, first_name ASC").Find(&psychologists).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve psychologists", Err: fmt.Errorf("directory query failed")})
		return
	}

	directory := make([]map[string]interface{}, 0, len(psychologists))
	for _, p := range psychologists {
		directory = append(directory, map[string]interface{}{"id": p.ID, "nombre": p.FullName()})
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Psychologists retrieved",
		Data: map[string]interface{}{"psicologos": directory},
	})
}

// RosterEntry annotates each patient a psychologist has seen with their most
// recent appointment and clinical note dates.
type RosterEntry struct {
	PatientID       uint       `json:"patient_id"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Age             int        `json:"age"`
	PhoneNumber     string     `json:"phone_number"`
	LastAppointment *time.Time `json:"last_appointment"`
	LastNote        *time.Time `json:"last_note"`
}

// PatientsRoster godoc
// @Summary      Patient roster for the authenticated psychologist
// @Description  Distinct patients who have ever had an appointment with the caller, with last appointment and last clinical-note dates
// @Tags         Listing
// @Produce      json
// @Security     SessionToken
// @Success      200 {object} util.APIResponse "Roster retrieved"
// @Failure      403 {object} util.APIResponse "No psychologist profile"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /patient/roster [get]
func PatientsRoster(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	userID, ok := getUserIDOrRespond(c)
	if !ok {
		return
	}

	psychologistID, err := resolvePsychologistID(db, userID)
	if err != nil {
		if err == ErrProfileNotFound {
			util.CallUserForbidden(c, util.APIErrorParams{
				Msg: "No existe un perfil de psicólogo para esta cuenta",
				Err: err,
			})
			return
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Database error", Err: fmt.Errorf("profile lookup failed")})
		return
	}

	var roster []RosterEntry
	err = db.Raw(`
		SELECT p.id AS patient_id,
		       p.first_name,
		       p.last_name,
		       p.age,
		       p.phone_number,
		       (SELECT MAX(a2.start_time) FROM appointments a2
		        WHERE a2.patient_id = p.id AND a2.psychologist_id = ? AND a2.status <> ?) AS last_appointment,
		       (SELECT MAX(n.created_at) FROM clinical_notes n
		        WHERE n.patient_id = p.id AND n.psychologist_id = ?) AS last_note
		FROM patients p
		WHERE EXISTS (
			SELECT 1 FROM appointments a
			WHERE a.patient_id = p.id AND a.psychologist_id = ?
		)
		ORDER BY p.last_name ASC, p.first_name ASC`,
		psychologistID, model.AppointmentCancelled, psychologistID, psychologistID).
		Scan(&roster).Error
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve roster", Err: fmt.Errorf("roster query failed")})
		return
	}
	if roster == nil {
		roster = []RosterEntry{}
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Roster retrieved",
		Data: map[string]interface{}{"data": roster},
	})
}
