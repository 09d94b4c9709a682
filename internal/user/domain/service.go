package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("user_not_found")
	ErrInvalidExternalID = errors.New("invalid_external_id")
	ErrInvalidEmail      = errors.New("invalid_email")
)

type CreateUserRequest struct {
	ExternalID string
	Email      string
}

type Service interface {
	// Resolve maps an external identity-provider subject to the internal
	// user record. NotFound is a hard precondition failure for callers.
	Resolve(ctx context.Context, externalID string) (User, error)
	Create(ctx context.Context, req CreateUserRequest) (User, error)
	GetByID(ctx context.Context, id snowflake.ID) (User, error)
}

// LocalProgressImporter replays checklist progress captured before the
// user account existed. Implemented by the pending-purchase side so the
// user package stays free of enrollment imports.
type LocalProgressImporter interface {
	SyncLocalProgress(ctx context.Context, tx *gorm.DB, userID snowflake.ID, email string) error
}
