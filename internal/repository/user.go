package repository

import (
	"context"

	"ridepool/internal/domain"
)

// UserRepository defines read access to user accounts.
type UserRepository interface {
	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
