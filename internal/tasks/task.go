package tasks

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// statusDeleted is only ever carried by task.deleted events.
const statusDeleted = "DELETED"

var ErrUnknownStatus = errors.New("unknown task status")

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	case "":
		return StatusPending, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

type Task struct {
	ID          int64     `db:"id" bson:"_id" json:"id"`
	Title       string    `db:"title" bson:"title" json:"title"`
	Description string    `db:"description" bson:"description,omitempty" json:"description,omitempty"`
	Status      Status    `db:"status" bson:"status" json:"status"`
	UserID      int64     `db:"user_id" bson:"user_id" json:"userId"`
	CreatedAt   time.Time `db:"created_at" bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" bson:"updated_at" json:"updatedAt"`
}

type CreateTaskRequest struct {
	UserID      int64  `json:"userId" binding:"required,min=1"`
	Title       string `json:"title" binding:"required,min=3,max=200"`
	Description string `json:"description,omitempty" binding:"max=1000"`
	Status      string `json:"status,omitempty" binding:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED CANCELLED"`
}

type UpdateTaskRequest struct {
	Title       string `json:"title" binding:"required,min=3,max=200"`
	Description string `json:"description,omitempty" binding:"max=1000"`
	Status      string `json:"status,omitempty" binding:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED CANCELLED"`
}
