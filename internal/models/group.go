package models

import "time"

// Group is a named collection of persons (board, choir, working group).
type Group struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Description string `gorm:"size:255;not null" json:"description"`
}

// Membership links a Person to a Group. The (person, group) pair is unique;
// removing a membership touches only this row.
type Membership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PersonID uint    `gorm:"uniqueIndex:idx_membership_pair;not null" json:"person_id"`
	Person   *Person `gorm:"foreignKey:PersonID" json:"person,omitempty"`
	GroupID  uint    `gorm:"uniqueIndex:idx_membership_pair;not null" json:"group_id"`
	Group    *Group  `gorm:"foreignKey:GroupID" json:"group,omitempty"`

	Comment string `gorm:"size:500" json:"comment,omitempty"`
}
