package repository

import (
	"context"
	"time"

	"github.com/hatchlab/hatchdesk/models"
)

// SessionRepository stores refresh-token sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByRefreshToken(ctx context.Context, token string) (*models.Session, error)
	DeleteByID(ctx context.Context, id int64) error
	DeleteByUserID(ctx context.Context, userID int64) error
	// DeleteExpired removes sessions that expired before now and returns how
	// many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
