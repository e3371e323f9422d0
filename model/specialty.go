package model

import (
	"fmt"

	"gorm.io/gorm"
)

// Specialty is static reference data used to filter the psychologist directory.
type Specialty struct {
	gorm.Model
	Name string `json:"name" gorm:"type:varchar(100);not null;uniqueIndex"`
}

// SeedSpecialties inserts the clinic's specialty catalog if missing.
func SeedSpecialties(db *gorm.DB) error {
	specialties := []Specialty{
		{Name: "Terapia cognitivo-conductual"},
		{Name: "Psicología infantil"},
		{Name: "Terapia de pareja"},
		{Name: "Psicología clínica"},
		{Name: "Neuropsicología"},
	}

	for _, s := range specialties {
		var existing Specialty
		err := db.Where("name = ?", s.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		if err := db.Create(&s).Error; err != nil {
			return fmt.Errorf("failed to seed specialty %s: %w", s.Name, err)
		}
	}
	return nil
}
