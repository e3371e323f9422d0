package endpoint

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/psicoagenda/backend/model"
	"github.com/psicoagenda/backend/util"
)

type CreateClinicalNoteRequest struct {
	Note string `json:"note" binding:"required" example:"Seguimiento semanal: evolución favorable."`
}

func parsePatientIDParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("patient id must be a positive integer")
	}
	return uint(id), nil
}

// getPsychologistOrRespond resolves the caller's psychologist profile,
// responding with an authorization failure when the account has none.
func getPsychologistOrRespond(c *gin.Context, db *gorm.DB) (uint, bool) {
	userID, ok := getUserIDOrRespond(c)
	if !ok {
		return 0, false
	}
	psychologistID, err := resolvePsychologistID(db, userID)
	if err != nil {
		if err == ErrProfileNotFound {
			util.CallUserForbidden(c, util.APIErrorParams{
				Msg: "No existe un perfil de psicólogo para esta cuenta",
				Err: err,
			})
			return 0, false
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Database error", Err: fmt.Errorf("profile lookup failed")})
		return 0, false
	}
	return psychologistID, true
}

// CreateClinicalNote godoc
// @Summary      Record a clinical note for a patient
// @Tags         ClinicalNote
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Patient ID"
// @Param        request body CreateClinicalNoteRequest true "Note content"
// @Success      201 {object} util.APIResponse "Note created"
// @Failure      400 {object} util.APIResponse "Invalid payload"
// @Failure      403 {object} util.APIResponse "No psychologist profile"
// @Failure      404 {object} util.APIResponse "Patient not found"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /patient/{id}/notes [post]
func CreateClinicalNote(c *gin.Context) {
	patientID, err := parsePatientIDParam(c)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: err.Error(), Err: err})
		return
	}

	var req CreateClinicalNoteRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	psychologistID, ok := getPsychologistOrRespond(c, db)
	if !ok {
		return
	}

	var patient model.Patient
	if err := db.First(&patient, patientID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Paciente no encontrado", Err: err})
			return
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Database error", Err: fmt.Errorf("patient lookup failed")})
		return
	}

	note := model.ClinicalNote{
		PatientID:      patientID,
		PsychologistID: psychologistID,
		Note:           req.Note,
	}
	if err := db.Create(&note).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create note", Err: fmt.Errorf("note creation failed")})
		return
	}

	util.CallSuccessCreated(c, util.APISuccessParams{Msg: "Nota registrada", Data: note})
}

// ListClinicalNotes godoc
// @Summary      List clinical notes for a patient
// @Tags         ClinicalNote
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Patient ID"
// @Success      200 {object} util.APIResponse "Notes retrieved, newest first"
// @Failure      403 {object} util.APIResponse "No psychologist profile"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /patient/{id}/notes [get]
func ListClinicalNotes(c *gin.Context) {
	patientID, err := parsePatientIDParam(c)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: err.Error(), Err: err})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}
	psychologistID, ok := getPsychologistOrRespond(c, db)
	if !ok {
		return
	}

	var notes []model.ClinicalNote
	err = db.Where("patient_id = ? AND psychologist_id = ?", patientID, psychologistID).
		Order("created_at DESC").
		Find(&notes).Error
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve notes", Err: fmt.Errorf("notes query failed")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Notes retrieved",
		Data: map[string]interface{}{"notes": notes, "total": len(notes)},
	})
}
