package services

import (
	"context"

	"github.com/hatchlab/hatchdesk/models"
	"github.com/hatchlab/hatchdesk/repository"
)

// UserService reads accounts for the directory and the current user.
type UserService interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, query string, page, perPage int) ([]models.User, models.Pagination, error)
}

type userService struct {
	userRepo repository.UserRepository
}

// NewUserService creates a UserService.
func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) List(ctx context.Context, query string, page, perPage int) ([]models.User, models.Pagination, error) {
	p := models.ListParams{Page: page, PerPage: perPage}.Normalize()

	users, total, err := s.userRepo.Search(ctx, query, p.PerPage, models.Offset(p.Page, p.PerPage))
	if err != nil {
		return nil, models.Pagination{}, err
	}
	for i := range users {
		users[i].PasswordHash = ""
	}

	return users, models.NewPagination(p.Page, p.PerPage, total), nil
}
