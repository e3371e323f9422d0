package endpoint

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/psicoagenda/backend/model"
)

func TestCreateClinicalNote_Success(t *testing.T) {
	r, db := setupEndpointTest(t)
	psychUser, psych := createTestPsychologistUser(t, db, "notas@example.com")
	_, patient := createTestPatientUser(t, db, "anotado@example.com")

	w, response, err := doRequestWithHandler(r, requestSpec{
		method: http.MethodPost, registerPath: "/patient/:id/notes",
		requestPath: fmt.Sprintf("/patient/%d/notes", patient.ID),
		handler:     CreateClinicalNote,
		body:        map[string]interface{}{"note": "Evolución favorable."},
		identity:    &testIdentity{userID: psychUser.ID, roleID: psychUser.RoleID},
	})
	assert.NoError(t, err)
	assertStatus(t, w, http.StatusCreated)
	assert.True(t, response["success"].(bool))

	var stored model.ClinicalNote
	assert.NoError(t, db.Where("patient_id = ?", patient.ID).First(&stored).Error)
	assert.Equal(t, psych.ID, stored.PsychologistID)
	assert.Equal(t, "Evolución favorable.", stored.Note)
}

func TestCreateClinicalNote_UnknownPatient(t *testing.T) {
	r, db := setupEndpointTest(t)
	psychUser, _ := createTestPsychologistUser(t, db, "perdido@example.com")

	w, _, err := doRequestWithHandler(r, requestSpec{
		method: http.MethodPost, registerPath: "/patient/:id/notes",
		requestPath: "/patient/99999/notes",
		handler:     CreateClinicalNote,
		body:        map[string]interface{}{"note": "Sin destinatario."},
		identity:    &testIdentity{userID: psychUser.ID, roleID: psychUser.RoleID},
	})
	assert.NoError(t, err)
	assertStatus(t, w, http.StatusNotFound)
}

func TestCreateClinicalNote_RequiresPsychologistProfile(t *testing.T) {
	r, db := setupEndpointTest(t)
	user, patient := createTestPatientUser(t, db, "no-psico@example.com")

	w, _, err := doRequestWithHandler(r, requestSpec{
		method: http.MethodPost, registerPath: "/patient/:id/notes",
		requestPath: fmt.Sprintf("/patient/%d/notes", patient.ID),
		handler:     CreateClinicalNote,
		body:        map[string]interface{}{"note": "No debería guardarse."},
		identity:    patientIdentity(user),
	})
	assert.NoError(t, err)
	assertStatus(t, w, http.StatusForbidden)
}

func TestListClinicalNotes_OnlyOwnNotes(t *testing.T) {
	r, db := setupEndpointTest(t)
	psychUserA, psychA := createTestPsychologistUser(t, db, "lector-a@example.com")
	_, psychB := createTestPsychologistUser(t, db, "lector-b@example.com")
	_, patient := createTestPatientUser(t, db, "historial@example.com")

	notes := []model.ClinicalNote{
		{PatientID: patient.ID, PsychologistID: psychA.ID, Note: "Primera sesión."},
		{PatientID: patient.ID, PsychologistID: psychA.ID, Note: "Segunda sesión."},
		{PatientID: patient.ID, PsychologistID: psychB.ID, Note: "Nota de otro profesional."},
	}
	for i := range notes {
		assert.NoError(t, db.Create(&notes[i]).Error)
	}

	w, response, err := doRequestWithHandler(r, requestSpec{
		method: http.MethodGet, registerPath: "/patient/:id/notes",
		requestPath: fmt.Sprintf("/patient/%d/notes", patient.ID),
		handler:     ListClinicalNotes,
		identity:    &testIdentity{userID: psychUserA.ID, roleID: psychUserA.RoleID},
	})
	assert.NoError(t, err)
	assertSuccessResponse(t, w, response)

	data := response["data"].(map[string]interface{})
	// Notes written by other psychologists stay out of the listing.
	assert.Equal(t, float64(2), data["total"])
	assert.Len(t, data["notes"].([]interface{}), 2)
}
