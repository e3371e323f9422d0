package model

import (
	"time"

	"gorm.io/gorm"
)

// Appointment statuses. Cancelled rows are kept for history (soft-cancel):
// the row survives with a null start time so it no longer occupies its slot.
const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
)

// Appointment joins a patient and a psychologist at an exact start timestamp.
// Invariant: per psychologist, at most one non-cancelled appointment may
// share the same start_time.
type Appointment struct {
	gorm.Model
	PatientID       uint       `json:"patient_id" gorm:"column:patient_id;not null;index"`
	PsychologistID  uint       `json:"psychologist_id" gorm:"column:psychologist_id;not null;index:idx_psych_start"`
	StartTime       *time.Time `json:"start_time" gorm:"column:start_time;index:idx_psych_start"`
	Reason          string     `json:"reason" gorm:"column:reason;type:text"`
	DurationMinutes int        `json:"duration_minutes" gorm:"column:duration_minutes;default:60"`
	Status          string     `json:"status" gorm:"column:status;type:varchar(20);default:pending;index"`
}

// EndTime derives the appointment end from its start and duration. Returns
// the zero time for cancelled appointments whose start has been cleared.
func (a Appointment) EndTime() time.Time {
	if a.StartTime == nil {
		return time.Time{}
	}
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}
