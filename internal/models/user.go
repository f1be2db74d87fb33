package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User is the marketplace profile row. The messaging core only reads the ID;
// profile fields belong to the surrounding CRUD app.
type User struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	DisplayName string         `gorm:"type:text" json:"display_name"`
	Skills      pq.StringArray `gorm:"type:text[]" json:"skills"`
	Rating      float64        `json:"rating"`
}

// BeforeCreate generates a UUID for the user if the ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
