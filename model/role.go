package model

import (
	"fmt"

	"gorm.io/gorm"
)

// Role names used across the API. An Admin has neither a patient nor a
// psychologist profile.
const (
	RolePatient      = "Patient"
	RolePsychologist = "Psychologist"
	RoleAdmin        = "Admin"
)

type Role struct {
	gorm.Model
	ID   uint32 `gorm:"primary_key;auto_increment" json:"id"`
	Name string `gorm:"type:varchar(100);not null" json:"name"`
}

// SeedRoles inserts the fixed application roles if they are missing.
func SeedRoles(db *gorm.DB) error {
	roles := []Role{
		{Name: RolePatient},
		{Name: RolePsychologist},
		{Name: RoleAdmin},
	}

	for _, role := range roles {
		var existing Role
		err := db.Where("name = ?", role.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		if err := db.Create(&role).Error; err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
		}
	}
	return nil
}

// RoleIDByName looks up a seeded role id. Returns an error when the role has
// not been seeded, which indicates a broken deployment rather than user input.
func RoleIDByName(db *gorm.DB, name string) (uint32, error) {
	var role Role
	if err := db.Where("name = ?", name).First(&role).Error; err != nil {
		return 0, fmt.Errorf("role %s not seeded: %w", name, err)
	}
	return role.ID, nil
}
