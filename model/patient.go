package model

import "gorm.io/gorm"

// Patient is the domain profile behind a user with the Patient role. UserID
// is nullable: legacy walk-in patients exist without a login account.
type Patient struct {
	gorm.Model
	UserID      *uint  `json:"user_id" gorm:"column:user_id;uniqueIndex"`
	FirstName   string `json:"first_name" gorm:"column:first_name;not null"`
	LastName    string `json:"last_name" gorm:"column:last_name;not null"`
	Age         int    `json:"age" gorm:"column:age"`
	PhoneNumber string `json:"phone_number" gorm:"column:phone_number"`
}

// FullName returns the display name used by calendar feeds and rosters.
func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}
