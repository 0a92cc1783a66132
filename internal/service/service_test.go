package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Tuns2000/Campusfix-sub000/config"
	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/internal/repository"
	"github.com/Tuns2000/Campusfix-sub000/internal/testutil"
	"github.com/Tuns2000/Campusfix-sub000/pkg/jwt"
	"github.com/Tuns2000/Campusfix-sub000/pkg/storage"
)

// ── 测试环境 ──

type testEnv struct {
	db        *gorm.DB
	repo      *repository.Repository
	store     *storage.Local
	jwtMgr    *jwt.Manager
	blacklist *fakeBlacklist
	svc       *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret: "service-test-secret-0123456789",
			TokenTTL:  time.Hour,
			Issuer:    "campusfix",
		},
		Upload: config.UploadConfig{
			MaxFileSize:  1 << 20,
			MaxFiles:     5,
			AllowedTypes: config.DefaultAllowedTypes,
		},
	}

	env := &testEnv{
		db:        db,
		repo:      repository.NewRepository(db),
		store:     store,
		jwtMgr:    jwt.NewManager(&cfg.Auth),
		blacklist: newFakeBlacklist(),
	}
	env.svc = NewService(cfg, env.repo, store, env.jwtMgr, env.blacklist, zap.NewNop())
	return env
}

func (e *testEnv) actor(u *model.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

// ── Token 黑名单替身 ──

type fakeBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{revoked: make(map[string]time.Duration)}
}

func (f *fakeBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.revoked[jti] = ttl
	return nil
}

func (f *fakeBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.revoked[jti]
	return ok, nil
}
