package model

import "gorm.io/gorm"

// Psychologist is the domain profile behind a user with the Psychologist role.
type Psychologist struct {
	gorm.Model
	UserID      *uint  `json:"user_id" gorm:"column:user_id;uniqueIndex"`
	FirstName   string `json:"first_name" gorm:"column:first_name;not null"`
	LastName    string `json:"last_name" gorm:"column:last_name;not null"`
	SpecialtyID uint   `json:"specialty_id" gorm:"column:specialty_id;index"`
}

func (p Psychologist) FullName() string {
	return p.FirstName + " " + p.LastName
}
