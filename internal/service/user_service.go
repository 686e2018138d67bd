package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskflow/internal/auth"
	"taskflow/internal/cache"
	apperrors "taskflow/internal/errors"
	"taskflow/internal/model"
	"taskflow/internal/repository"
)

const userCacheTTL = 5 * time.Minute

// ListUsersInput filters the admin user listing.
type ListUsersInput struct {
	Role     string
	IsActive *bool
	Search   string
	PageParams
}

// UpdateProfileInput changes the requester's own profile. Nil fields are left alone.
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
	Password  *string
}

// UserService exposes user and role administration.
type UserService interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
	ListUsers(ctx context.Context, requester *model.User, input ListUsersInput) (*Page[model.User], error)
	UpdateProfile(ctx context.Context, requester *model.User, input UpdateProfileInput) (*model.User, error)
	UpdateRole(ctx context.Context, requester *model.User, id uint, role model.Role) (*model.User, error)
	SetActive(ctx context.Context, requester *model.User, id uint, active bool) (*model.User, error)
}

type userService struct {
	repo  repository.UserRepository
	cache *cache.Client
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client) UserService {
	return &userService{repo: repo, cache: cache}
}

func (s *userService) cacheKey(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

func (s *userService) invalidate(ctx context.Context, id uint) {
	_ = s.cache.Delete(ctx, s.cacheKey(id))
}

// GetUser returns a user, served from cache when possible.
func (s *userService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var cached model.User
	if s.cache.GetJSON(ctx, s.cacheKey(id), &cached) {
		return &cached, nil
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, s.cacheKey(id), user, userCacheTTL)
	return user, nil
}

func (s *userService) load(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, requester *model.User, input ListUsersInput) (*Page[model.User], error) {
	if !permissionsOf(requester).CanManageUsers {
		return nil, apperrors.ErrPermissionDenied
	}

	filter := repository.UserFilter{IsActive: input.IsActive, Search: strings.TrimSpace(input.Search)}
	if input.Role != "" {
		role := model.Role(input.Role)
		if !role.Valid() {
			return nil, apperrors.ErrInvalidRole
		}
		filter.Role = &role
	}
	page, limit, offset := input.normalize()
	filter.Offset, filter.Limit = offset, limit

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return newPage(users, total, page, limit), nil
}

func (s *userService) UpdateProfile(ctx context.Context, requester *model.User, input UpdateProfileInput) (*model.User, error) {
	user, err := s.load(ctx, requester.ID)
	if err != nil {
		return nil, err
	}

	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hashed)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.invalidate(ctx, user.ID)
	return user, nil
}

// UpdateRole changes a user's role. Granting or revoking super_admin needs
// CanManageRoles; demoting the last active admin is refused.
func (s *userService) UpdateRole(ctx context.Context, requester *model.User, id uint, role model.Role) (*model.User, error) {
	perms := permissionsOf(requester)
	if !perms.CanManageUsers {
		return nil, apperrors.ErrPermissionDenied
	}
	if !role.Valid() {
		return nil, apperrors.ErrInvalidRole
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}
	if (role == model.RoleSuperAdmin || user.Role == model.RoleSuperAdmin) && !perms.CanManageRoles {
		return nil, apperrors.ErrPermissionDenied
	}

	if user.IsActive && auth.IsAdmin(user.Role) && !auth.IsAdmin(role) {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return nil, err
		}
	}

	user.Role = role
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	s.invalidate(ctx, user.ID)
	return user, nil
}

// SetActive enables or disables a user. Disabling the last active admin is refused.
func (s *userService) SetActive(ctx context.Context, requester *model.User, id uint, active bool) (*model.User, error) {
	perms := permissionsOf(requester)
	if !perms.CanManageUsers {
		return nil, apperrors.ErrPermissionDenied
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsActive == active {
		return user, nil
	}
	if user.Role == model.RoleSuperAdmin && !perms.CanManageRoles {
		return nil, apperrors.ErrPermissionDenied
	}

	if !active && auth.IsAdmin(user.Role) {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return nil, err
		}
	}

	user.IsActive = active
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	s.invalidate(ctx, user.ID)
	return user, nil
}

// ensureAnotherAdmin is a plain read; a concurrent demotion can still race it.
func (s *userService) ensureAnotherAdmin(ctx context.Context) error {
	count, err := s.repo.CountActiveAdmins(ctx)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count <= 1 {
		return apperrors.ErrLastAdmin
	}
	return nil
}
