package model

import "gorm.io/gorm"

// ClinicalNote is a free-text note a psychologist records about a patient.
// The patient roster surfaces each patient's most recent note date.
type ClinicalNote struct {
	gorm.Model
	PatientID      uint   `json:"patient_id" gorm:"column:patient_id;not null;index"`
	PsychologistID uint   `json:"psychologist_id" gorm:"column:psychologist_id;not null;index"`
	Note           string `json:"note" gorm:"column:note;type:text;not null"`
}
