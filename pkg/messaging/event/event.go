// Package event defines the JSON envelopes exchanged on user-events and task-events.
package event

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

type Category string

const (
	Created Category = "CREATED"
	Updated Category = "UPDATED"
	Deleted Category = "DELETED"
)

var ErrUnknownCategory = errors.New("unknown event category")

// ParseCategory accepts both the envelope form ("DELETED") and the
// event-type form ("user.deleted"), case-insensitively.
func ParseCategory(s string) (Category, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	switch c := Category(s); c {
	case Created, Updated, Deleted:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// TypeName returns the outbox event type, e.g. "user.deleted".
func TypeName(entity string, c Category) string {
	return entity + "." + strings.ToLower(string(c))
}

const (
	EntityUser = "user"
	EntityTask = "task"
)

type UserEvent struct {
	EventType Category `json:"eventType"`
	UserID    int64    `json:"userId"`
	Email     string   `json:"email,omitempty"`
	Timestamp Time     `json:"timestamp"`
}

func NewUserEvent(c Category, userID int64, email string, now time.Time) UserEvent {
	return UserEvent{EventType: c, UserID: userID, Email: email, Timestamp: Time{now}}
}

type TaskEvent struct {
	EventType   Category `json:"eventType"`
	TaskID      int64    `json:"taskId"`
	UserID      int64    `json:"userId"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
	Timestamp   Time     `json:"timestamp"`
}

func NewTaskEvent(c Category, taskID, userID int64, title, description, status string, now time.Time) TaskEvent {
	return TaskEvent{
		EventType:   c,
		TaskID:      taskID,
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      status,
		Timestamp:   Time{now},
	}
}

// DecodeUserEvent parses a user envelope. A missing timestamp is set to now.
func DecodeUserEvent(data []byte, now func() time.Time) (UserEvent, error) {
	var e UserEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return UserEvent{}, fmt.Errorf("decode user event: %w", err)
	}
	if e.UserID == 0 {
		return UserEvent{}, errors.New("decode user event: userId is required")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = Time{now()}
	}
	return e, nil
}

func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
