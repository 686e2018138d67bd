package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "taskflow/internal/errors"
	"taskflow/internal/model"
)

func TestUserService_LastAdminProtection(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, nil)
	super := seedUser(t, f.db, "root@example.com", model.RoleSuperAdmin, true)

	_, err := svc.UpdateRole(ctx, super, super.ID, model.RoleCommon)
	assert.ErrorIs(t, err, apperrors.ErrLastAdmin)
	assert.True(t, apperrors.IsForbidden(err))

	_, err = svc.SetActive(ctx, super, super.ID, false)
	assert.ErrorIs(t, err, apperrors.ErrLastAdmin)

	second := seedUser(t, f.db, "second@example.com", model.RoleAdmin, true)

	demoted, err := svc.UpdateRole(ctx, super, second.ID, model.RolePremium)
	require.NoError(t, err)
	assert.Equal(t, model.RolePremium, demoted.Role)

	promoted, err := svc.UpdateRole(ctx, super, second.ID, model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, promoted.Role)

	// With a second active admin the super admin may step down.
	stepped, err := svc.UpdateRole(ctx, super, super.ID, model.RoleCommon)
	require.NoError(t, err)
	assert.Equal(t, model.RoleCommon, stepped.Role)

	count, err := f.users.CountActiveAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUserService_RoleChangePermissions(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, nil)
	super := seedUser(t, f.db, "root@example.com", model.RoleSuperAdmin, true)
	admin := seedUser(t, f.db, "admin@example.com", model.RoleAdmin, true)
	common := seedUser(t, f.db, "common@example.com", model.RoleCommon, true)

	_, err := svc.UpdateRole(ctx, common, admin.ID, model.RoleCommon)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = svc.UpdateRole(ctx, admin, common.ID, model.RoleSuperAdmin)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = svc.SetActive(ctx, admin, super.ID, false)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = svc.UpdateRole(ctx, admin, common.ID, model.Role("owner"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidRole)

	_, err = svc.UpdateRole(ctx, admin, 9999, model.RolePremium)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	premium, err := svc.UpdateRole(ctx, admin, common.ID, model.RolePremium)
	require.NoError(t, err)
	assert.Equal(t, model.RolePremium, premium.Role)

	elevated, err := svc.UpdateRole(ctx, super, common.ID, model.RoleSuperAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperAdmin, elevated.Role)
}

func TestUserService_SetActive(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, nil)
	admin := seedUser(t, f.db, "admin@example.com", model.RoleAdmin, true)
	user := seedUser(t, f.db, "user@example.com", model.RoleCommon, true)

	disabled, err := svc.SetActive(ctx, admin, user.ID, false)
	require.NoError(t, err)
	assert.False(t, disabled.IsActive)

	stored, err := f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	enabled, err := svc.SetActive(ctx, admin, user.ID, true)
	require.NoError(t, err)
	assert.True(t, enabled.IsActive)
}

func TestUserService_ListUsers(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, nil)
	admin := seedUser(t, f.db, "admin@example.com", model.RoleAdmin, true)
	seedUser(t, f.db, "a@example.com", model.RoleCommon, true)
	seedUser(t, f.db, "b@example.com", model.RoleCommon, false)

	_, err := svc.ListUsers(ctx, &model.User{Role: model.RolePremium, IsActive: true}, ListUsersInput{})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	page, err := svc.ListUsers(ctx, admin, ListUsersInput{Role: "common"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = svc.ListUsers(ctx, admin, ListUsersInput{Role: "common", IsActive: ptr(true)})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "a@example.com", page.Items[0].Email)

	_, err = svc.ListUsers(ctx, admin, ListUsersInput{Role: "boss"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRole)
}

func TestUserService_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.users, nil)
	user := seedUser(t, f.db, "me@example.com", model.RoleCommon, true)

	updated, err := svc.UpdateProfile(ctx, user, UpdateProfileInput{
		FirstName: ptr(" Grace "),
		LastName:  ptr("Hopper"),
		Password:  ptr("new-password"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", updated.FirstName)
	assert.Equal(t, "Grace Hopper", updated.DisplayName())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("new-password")))

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hopper", got.LastName)

	_, err = svc.GetUser(ctx, 4242)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}
