package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	apperrors "taskflow/internal/errors"
	"taskflow/internal/model"
	"taskflow/internal/repository"
)

var validate = validator.New()

// checkColor accepts #RRGGBB only; validator's hexcolor alone also allows #RGB and #RRGGBBAA.
func checkColor(color string) error {
	if err := validate.Var(color, "hexcolor,len=7"); err != nil {
		return fmt.Errorf("%w: color must be #RRGGBB", apperrors.ErrValidation)
	}
	return nil
}

// CategoryInput creates or updates a category. On update, empty fields are left alone.
type CategoryInput struct {
	Name        string
	Description *string
	Color       string
}

// CategoryService manages task categories.
type CategoryService interface {
	List(ctx context.Context) ([]model.Category, error)
	Get(ctx context.Context, id uint) (*model.Category, error)
	Create(ctx context.Context, requester *model.User, input CategoryInput) (*model.Category, error)
	Update(ctx context.Context, requester *model.User, id uint, input CategoryInput) (*model.Category, error)
	Delete(ctx context.Context, requester *model.User, id uint) error
}

type categoryService struct {
	repo repository.CategoryRepository
}

// NewCategoryService creates a new category service.
func NewCategoryService(repo repository.CategoryRepository) CategoryService {
	return &categoryService{repo: repo}
}

func (s *categoryService) List(ctx context.Context) ([]model.Category, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (s *categoryService) Get(ctx context.Context, id uint) (*model.Category, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	return category, nil
}

func (s *categoryService) Create(ctx context.Context, requester *model.User, input CategoryInput) (*model.Category, error) {
	if !permissionsOf(requester).CanManageCategories {
		return nil, apperrors.ErrPermissionDenied
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.ErrNameRequired
	}
	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}

	color := input.Color
	if color == "" {
		color = model.DefaultCategoryColor
	}
	if err := checkColor(color); err != nil {
		return nil, err
	}

	category := &model.Category{Name: name, Color: color}
	if input.Description != nil {
		category.Description = strings.TrimSpace(*input.Description)
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

func (s *categoryService) Update(ctx context.Context, requester *model.User, id uint, input CategoryInput) (*model.Category, error) {
	if !permissionsOf(requester).CanManageCategories {
		return nil, apperrors.ErrPermissionDenied
	}

	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(input.Name); name != "" && name != category.Name {
		if err := s.ensureNameFree(ctx, name, category.ID); err != nil {
			return nil, err
		}
		category.Name = name
	}
	if input.Color != "" {
		if err := checkColor(input.Color); err != nil {
			return nil, err
		}
		category.Color = input.Color
	}
	if input.Description != nil {
		category.Description = strings.TrimSpace(*input.Description)
	}

	if err := s.repo.Update(ctx, category); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	return category, nil
}

// Delete removes a category; its tasks become uncategorized.
func (s *categoryService) Delete(ctx context.Context, requester *model.User, id uint) error {
	if !permissionsOf(requester).CanManageCategories {
		return apperrors.ErrPermissionDenied
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrCategoryNotFound
		}
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

func (s *categoryService) ensureNameFree(ctx context.Context, name string, selfID uint) error {
	existing, err := s.repo.FindByName(ctx, name)
	switch {
	case err == nil && existing.ID != selfID:
		return apperrors.ErrCategoryExists
	case err == nil, errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return fmt.Errorf("check category name: %w", err)
	}
}
