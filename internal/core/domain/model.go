package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Model carries the identity and timestamps shared by every persisted entity.
// ID is the internal sequence key; UUID is the identifier exposed over the API.
type Model struct {
	ID        int64     `json:"-"`
	UUID      uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewModel stamps a fresh external id and timestamps.
func NewModel(now time.Time) Model {
	return Model{
		UUID:      uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

var (
	// ErrDuplicate is returned by stores when a uniqueness constraint rejects a row.
	ErrDuplicate = errors.New("duplicate record")
	// ErrInsufficientCash is returned when a conditional cash debit matched no row.
	ErrInsufficientCash = errors.New("insufficient cash")
	// ErrStatusConflict is returned when a conditional status update found the row in another state.
	ErrStatusConflict = errors.New("status changed concurrently")
)
