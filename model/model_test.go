package model

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:model_test_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	if err := db.AutoMigrate(&Role{}, &Specialty{}, &User{}, &Patient{}, &Psychologist{}, &Appointment{}, &ClinicalNote{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func TestSeedRoles_Idempotent(t *testing.T) {
	db := newTestDB(t)

	assert.NoError(t, SeedRoles(db))
	assert.NoError(t, SeedRoles(db))

	var count int64
	assert.NoError(t, db.Model(&Role{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	for _, name := range []string{RolePatient, RolePsychologist, RoleAdmin} {
		id, err := RoleIDByName(db, name)
		assert.NoError(t, err)
		assert.NotZero(t, id)
	}
}

func TestRoleIDByName_UnknownRole(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, SeedRoles(db))

	_, err := RoleIDByName(db, "Receptionist")
	assert.Error(t, err)
}

func TestSeedSpecialties_Idempotent(t *testing.T) {
	db := newTestDB(t)

	assert.NoError(t, SeedSpecialties(db))
	assert.NoError(t, SeedSpecialties(db))

	var count int64
	assert.NoError(t, db.Model(&Specialty{}).Count(&count).Error)
	assert.Equal(t, int64(5), count)
}

func TestAppointmentEndTime(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.Local)

	appointment := Appointment{StartTime: &start, DurationMinutes: 90}
	assert.Equal(t, start.Add(90*time.Minute), appointment.EndTime())

	cancelled := Appointment{Status: AppointmentCancelled}
	assert.True(t, cancelled.EndTime().IsZero())
}

func TestPatientFullName(t *testing.T) {
	p := Patient{FirstName: "Ana", LastName: "García"}
	assert.Equal(t, "Ana García", p.FullName())
}

func TestUserEmailUnique(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, SeedRoles(db))

	roleID, err := RoleIDByName(db, RolePatient)
	assert.NoError(t, err)

	first := User{Email: "unica@example.com", Password: "x", PasswordSalt: "s", RoleID: roleID}
	assert.NoError(t, db.Create(&first).Error)

	duplicate := User{Email: "unica@example.com", Password: "y", PasswordSalt: "s", RoleID: roleID}
	assert.Error(t, db.Create(&duplicate).Error)
}

func TestAppointmentSoftCancelKeepsRow(t *testing.T) {
	db := newTestDB(t)

	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.Local)
	appointment := Appointment{PatientID: 1, PsychologistID: 1, StartTime: &start, DurationMinutes: 60, Status: AppointmentPending}
	assert.NoError(t, db.Create(&appointment).Error)

	assert.NoError(t, db.Model(&appointment).
		Updates(map[string]interface{}{"start_time": nil, "status": AppointmentCancelled}).Error)

	var reloaded Appointment
	assert.NoError(t, db.First(&reloaded, appointment.ID).Error)
	assert.Equal(t, AppointmentCancelled, reloaded.Status)
	assert.Nil(t, reloaded.StartTime)
}
