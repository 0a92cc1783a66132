package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/internal/testutil"
)

func boolPtr(b bool) *bool { return &b }

func TestUserService_ListByRole(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateUser(t, env.db, model.RoleEngineer)
	testutil.CreateUser(t, env.db, model.RoleEngineer)
	testutil.CreateUser(t, env.db, model.RoleManager)

	users, total, err := env.svc.User.List(context.Background(), &dto.UserListRequest{Role: model.RoleEngineer})
	require.NoError(t, err)

	assert.Equal(t, int64(2), total)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Equal(t, model.RoleEngineer, u.Role)
	}
}

func TestUserService_UpdateRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, env.db, model.RoleAdmin)
	user := testutil.CreateUser(t, env.db, model.RoleObserver)

	resp, err := env.svc.User.UpdateRole(ctx, user.ID, &dto.UpdateRoleRequest{Role: model.RoleEngineer}, env.actor(admin))
	require.NoError(t, err)
	assert.Equal(t, model.RoleEngineer, resp.Role)

	_, err = env.svc.User.UpdateRole(ctx, admin.ID, &dto.UpdateRoleRequest{Role: model.RoleObserver}, env.actor(admin))
	assert.ErrorIs(t, err, ErrSelfRoleChange)

	_, err = env.svc.User.UpdateRole(ctx, user.ID, &dto.UpdateRoleRequest{Role: "root"}, env.actor(admin))
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = env.svc.User.UpdateRole(ctx, "00000000-0000-0000-0000-000000000000",
		&dto.UpdateRoleRequest{Role: model.RoleEngineer}, env.actor(admin))
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_UpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, env.db, model.RoleAdmin)
	user := testutil.CreateUser(t, env.db, model.RoleEngineer)

	resp, err := env.svc.User.UpdateStatus(ctx, user.ID, &dto.UpdateStatusRequest{IsActive: boolPtr(false)}, env.actor(admin))
	require.NoError(t, err)
	assert.False(t, resp.IsActive)

	// 停用后不能再作为缺陷负责人
	assert.ErrorIs(t, activeAssignee(ctx, env.repo, user.ID), ErrAssigneeInvalid)

	resp, err = env.svc.User.UpdateStatus(ctx, user.ID, &dto.UpdateStatusRequest{IsActive: boolPtr(true)}, env.actor(admin))
	require.NoError(t, err)
	assert.True(t, resp.IsActive)
	assert.NoError(t, activeAssignee(ctx, env.repo, user.ID))

	_, err = env.svc.User.UpdateStatus(ctx, admin.ID, &dto.UpdateStatusRequest{IsActive: boolPtr(false)}, env.actor(admin))
	assert.ErrorIs(t, err, ErrSelfDeactivate)
}

func TestActiveAssignee_RoleRestriction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	observer := testutil.CreateUser(t, env.db, model.RoleObserver)
	manager := testutil.CreateUser(t, env.db, model.RoleManager)

	assert.ErrorIs(t, activeAssignee(ctx, env.repo, observer.ID), ErrAssigneeInvalid)
	assert.NoError(t, activeAssignee(ctx, env.repo, manager.ID))
	assert.ErrorIs(t, activeAssignee(ctx, env.repo, "00000000-0000-0000-0000-000000000000"), ErrAssigneeInvalid)
}
