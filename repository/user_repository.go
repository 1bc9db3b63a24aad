// Package repository is the data access layer. Each store is an interface
// with a SQLite implementation; services depend on the interfaces only.
package repository

import (
	"context"

	"github.com/hatchlab/hatchdesk/models"
)

// UserRepository stores accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetByIDs returns the users that exist among ids, keyed by id.
	GetByIDs(ctx context.Context, ids []int64) (map[int64]models.User, error)
	// Search lists users whose name or email contains query, ordered by id.
	// An empty query matches everyone. The int is the total match count.
	Search(ctx context.Context, query string, limit, offset int) ([]models.User, int, error)
	Count(ctx context.Context) (int, error)
}
