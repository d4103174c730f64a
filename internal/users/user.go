package users

import (
	"errors"
	"strings"
	"time"
)

var ErrEmailTaken = errors.New("email already registered")

type User struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FirstName string    `db:"first_name" json:"firstName"`
	LastName  string    `db:"last_name" json:"lastName"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type CreateUserRequest struct {
	Email     string `json:"email" binding:"required,email,max=255"`
	FirstName string `json:"firstName" binding:"required,min=2,max=50"`
	LastName  string `json:"lastName" binding:"required,min=2,max=50"`
	Active    *bool  `json:"active,omitempty"`
}

type UpdateUserRequest struct {
	FirstName string `json:"firstName" binding:"required,min=2,max=50"`
	LastName  string `json:"lastName" binding:"required,min=2,max=50"`
	Active    *bool  `json:"active,omitempty"`
}

type ExistsResponse struct {
	Exists bool  `json:"exists"`
	UserID int64 `json:"userId"`
}

// maskEmail keeps the first two characters of the local part: "jo***@example.com".
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	switch {
	case email == "":
		return "N/A"
	case at <= 0:
		return "***"
	}
	return email[:min(2, at)] + "***@" + email[at+1:]
}
