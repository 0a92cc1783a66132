package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/pkg/jwt"
)

func registerReq(email string) *dto.RegisterRequest {
	return &dto.RegisterRequest{
		Email:     email,
		Password:  "Secret123",
		FirstName: "Петр",
		LastName:  "Петров",
		Position:  "Инженер ПТО",
	}
}

// ═══════════════════════════════════════════════════════════
// Register
// ═══════════════════════════════════════════════════════════

func TestRegister_DefaultsToObserver(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.svc.Auth.Register(context.Background(), registerReq("  Petrov@Example.RU "))
	require.NoError(t, err)

	assert.Equal(t, model.RoleObserver, resp.Role)
	assert.Equal(t, "petrov@example.ru", resp.Email)
	assert.True(t, resp.IsActive)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Auth.Register(ctx, registerReq("dup@example.ru"))
	require.NoError(t, err)

	_, err = env.svc.Auth.Register(ctx, registerReq("DUP@example.ru"))
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestCreateUser_InvalidRole(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Auth.CreateUser(context.Background(), registerReq("x@example.ru"), "superuser")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

// ═══════════════════════════════════════════════════════════
// Login / Authenticate / Logout
// ═══════════════════════════════════════════════════════════

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Auth.CreateUser(ctx, registerReq("eng@example.ru"), model.RoleEngineer)
	require.NoError(t, err)

	resp, err := env.svc.Auth.Login(ctx, &dto.LoginRequest{Email: "eng@example.ru", Password: "Secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, 3600, resp.ExpiresIn)

	claims, err := env.svc.Auth.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, model.RoleEngineer, claims.Role)
	assert.Equal(t, "Петр", claims.FirstName)
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.svc.Auth.Register(ctx, registerReq("login@example.ru"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"wrong password", "login@example.ru", "Wrong1234", ErrInvalidCredentials},
		{"unknown email", "nobody@example.ru", "Secret123", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Auth.Login(ctx, &dto.LoginRequest{Email: tt.email, Password: tt.password})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// 停用后即使密码正确也不能登录
	require.NoError(t, env.repo.User.Updates(ctx, user.ID, map[string]interface{}{"is_active": false}))
	_, err = env.svc.Auth.Login(ctx, &dto.LoginRequest{Email: "login@example.ru", Password: "Secret123"})
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Auth.Register(ctx, registerReq("out@example.ru"))
	require.NoError(t, err)
	login, err := env.svc.Auth.Login(ctx, &dto.LoginRequest{Email: "out@example.ru", Password: "Secret123"})
	require.NoError(t, err)

	claims, err := env.svc.Auth.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	require.NoError(t, env.svc.Auth.Logout(ctx, claims))

	assert.Contains(t, env.blacklist.revoked, claims.ID)
	_, err = env.svc.Auth.Authenticate(ctx, login.Token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalid)
}

func TestAuthenticate_BlacklistUnavailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Auth.Register(ctx, registerReq("redis@example.ru"))
	require.NoError(t, err)
	login, err := env.svc.Auth.Login(ctx, &dto.LoginRequest{Email: "redis@example.ru", Password: "Secret123"})
	require.NoError(t, err)

	// Redis 故障时降级放行，登出也不报错
	env.blacklist.err = errors.New("connection refused")
	claims, err := env.svc.Auth.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.NoError(t, env.svc.Auth.Logout(ctx, claims))
}

func TestAuthenticate_Garbage(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Auth.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, jwt.ErrTokenInvalid)
}

func TestAuthenticate_ReadsCurrentAccountState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Auth.CreateUser(ctx, registerReq("state@example.ru"), model.RoleManager)
	require.NoError(t, err)
	login, err := env.svc.Auth.Login(ctx, &dto.LoginRequest{Email: "state@example.ru", Password: "Secret123"})
	require.NoError(t, err)

	// 降级后旧 Token 按新角色鉴权
	require.NoError(t, env.repo.User.Updates(ctx, login.User.ID, map[string]interface{}{"role": model.RoleObserver}))
	claims, err := env.svc.Auth.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleObserver, claims.Role)

	require.NoError(t, env.repo.User.Updates(ctx, login.User.ID, map[string]interface{}{"is_active": false}))
	_, err = env.svc.Auth.Authenticate(ctx, login.Token)
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	token, err := env.jwtMgr.Generate(jwt.Subject{UserID: "00000000-0000-0000-0000-000000000001", Role: model.RoleAdmin})
	require.NoError(t, err)

	_, err = env.svc.Auth.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalid)
}

// ═══════════════════════════════════════════════════════════
// ChangePassword / UpdateProfile / Me
// ═══════════════════════════════════════════════════════════

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.svc.Auth.Register(ctx, registerReq("pwd@example.ru"))
	require.NoError(t, err)

	err = env.svc.Auth.ChangePassword(ctx, user.ID, &dto.ChangePasswordRequest{OldPassword: "Nope1234", NewPassword: "Newpass123"})
	assert.ErrorIs(t, err, ErrWrongPassword)

	err = env.svc.Auth.ChangePassword(ctx, user.ID, &dto.ChangePasswordRequest{OldPassword: "Secret123", NewPassword: "Newpass123"})
	require.NoError(t, err)

	_, err = env.svc.Auth.Login(ctx, &dto.LoginRequest{Email: "pwd@example.ru", Password: "Secret123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.svc.Auth.Login(ctx, &dto.LoginRequest{Email: "pwd@example.ru", Password: "Newpass123"})
	assert.NoError(t, err)
}

func TestUpdateProfile_OnlyProvidedFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.svc.Auth.Register(ctx, registerReq("profile@example.ru"))
	require.NoError(t, err)

	phone := "+7 900 123-45-67"
	resp, err := env.svc.Auth.UpdateProfile(ctx, user.ID, &dto.UpdateProfileRequest{Phone: &phone})
	require.NoError(t, err)

	assert.Equal(t, phone, resp.Phone)
	assert.Equal(t, "Петр", resp.FirstName)
	assert.Equal(t, "Инженер ПТО", resp.Position)
}

func TestMe_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Auth.Me(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
