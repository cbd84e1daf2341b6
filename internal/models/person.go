package models

import "time"

// Person is a contact managed by the association.
type Person struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name     string     `gorm:"size:255;not null" json:"name"`
	Address  string     `gorm:"size:500" json:"address,omitempty"`
	Email    string     `gorm:"size:255" json:"email,omitempty"`
	Birthday *time.Time `json:"birthday,omitempty"`
	Comment  string     `gorm:"type:text" json:"comment,omitempty"`
}

// TableName pins the table to "persons"; the default inflection would pick
// "people".
func (Person) TableName() string { return "persons" }
