package main

import (
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"gorm.io/gorm"

	"github.com/psicoagenda/backend/config"
	"github.com/psicoagenda/backend/model"
	"github.com/psicoagenda/backend/util"
)

// Demo-data seeder for local development: a handful of psychologists, a pool
// of registered patients, and a week of pending appointments.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	db, err := config.ConnectDB()
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{}, &model.Role{}, &model.Session{},
		&model.Patient{}, &model.Psychologist{}, &model.Specialty{},
		&model.Appointment{}, &model.ClinicalNote{}, &model.SecurityLog{},
	); err != nil {
		log.Fatalf("migrate schema: %v", err)
	}
	if err := model.SeedRoles(db); err != nil {
		log.Fatalf("seed roles: %v", err)
	}
	if err := model.SeedSpecialties(db); err != nil {
		log.Fatalf("seed specialties: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	psychologists, err := seedPsychologists(db, 8)
	if err != nil {
		log.Fatalf("seed psychologists: %v", err)
	}
	patients, err := seedPatients(db, 40)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAppointments(db, psychologists, patients); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedUser(tx *gorm.DB, email, roleName string) (*model.User, error) {
	roleID, err := model.RoleIDByName(tx, roleName)
	if err != nil {
		return nil, err
	}
	salt, err := util.GenerateSalt()
	if err != nil {
		return nil, err
	}
	// Shared demo password so seeded accounts are usable from the UI.
	hashed, err := util.HashPasswordArgon2("demo-password", salt)
	if err != nil {
		return nil, err
	}
	user := model.User{
		Email:        email,
		Password:     hashed,
		PasswordSalt: salt,
		RoleID:       roleID,
	}
	if err := tx.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func seedPsychologists(db *gorm.DB, count int) ([]model.Psychologist, error) {
	log.Printf("seeding %d psychologists", count)

	var specialties []model.Specialty
	if err := db.Find(&specialties).Error; err != nil {
		return nil, err
	}

	var created []model.Psychologist
	err := db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < count; i++ {
			email := fmt.Sprintf("psicologo%d@demo.local", i+1)
			user, err := seedUser(tx, email, model.RolePsychologist)
			if err != nil {
				return err
			}
			psych := model.Psychologist{
				UserID:      &user.ID,
				FirstName:   gofakeit.FirstName(),
				LastName:    gofakeit.LastName(),
				SpecialtyID: specialties[gofakeit.Number(0, len(specialties)-1)].ID,
			}
			if err := tx.Create(&psych).Error; err != nil {
				return err
			}
			created = append(created, psych)
		}
		return nil
	})
	return created, err
}

func seedPatients(db *gorm.DB, count int) ([]model.Patient, error) {
	log.Printf("seeding %d patients", count)

	var created []model.Patient
	err := db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < count; i++ {
			email := fmt.Sprintf("paciente%d@demo.local", i+1)
			user, err := seedUser(tx, email, model.RolePatient)
			if err != nil {
				return err
			}
			patient := model.Patient{
				UserID:      &user.ID,
				FirstName:   gofakeit.FirstName(),
				LastName:    gofakeit.LastName(),
				Age:         gofakeit.Number(18, 80),
				PhoneNumber: gofakeit.Phone(),
			}
			if err := tx.Create(&patient).Error; err != nil {
				return err
			}
			created = append(created, patient)
		}
		return nil
	})
	return created, err
}

func seedAppointments(db *gorm.DB, psychologists []model.Psychologist, patients []model.Patient) error {
	log.Printf("seeding appointments for %d psychologists", len(psychologists))

	reasons := []string{
		"Primera consulta",
		"Seguimiento",
		"Terapia de pareja",
		"Revisión de tratamiento",
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, psych := range psychologists {
			// One slot per working hour over the next five days; each slot
			// booked at most once so the uniqueness invariant holds.
			for day := 1; day <= 5; day++ {
				for hour := 9; hour <= 17; hour++ {
					if gofakeit.Bool() {
						continue
					}
					start := time.Now().AddDate(0, 0, day).Truncate(time.Hour)
					start = time.Date(start.Year(), start.Month(), start.Day(), hour, 0, 0, 0, time.Local)
					patient := patients[gofakeit.Number(0, len(patients)-1)]
					appointment := model.Appointment{
						PatientID:       patient.ID,
						PsychologistID:  psych.ID,
						StartTime:       &start,
						Reason:          reasons[gofakeit.Number(0, len(reasons)-1)],
						DurationMinutes: 60,
						Status:          model.AppointmentPending,
					}
					if err := tx.Create(&appointment).Error; err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}
