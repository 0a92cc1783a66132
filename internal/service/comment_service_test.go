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

func TestCommentService_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	engineer := testutil.CreateUser(t, env.db, model.RoleEngineer)
	other := testutil.CreateUser(t, env.db, model.RoleManager)
	project := testutil.CreateProject(t, env.db, "ЖК Заречный")
	defect := testutil.CreateDefect(t, env.db, project.ID, engineer.ID)

	created, err := env.svc.Comment.Create(ctx, defect.ID, &dto.CommentRequest{Text: "  Требуется демонтаж  "}, env.actor(engineer))
	require.NoError(t, err)
	assert.Equal(t, "Требуется демонтаж", created.Text)
	require.NotNil(t, created.Author)
	assert.Equal(t, engineer.ID, created.Author.ID)

	// 非作者不能修改
	_, err = env.svc.Comment.Update(ctx, created.ID, &dto.CommentRequest{Text: "x"}, env.actor(other))
	assert.ErrorIs(t, err, ErrCommentForbidden)

	updated, err := env.svc.Comment.Update(ctx, created.ID, &dto.CommentRequest{Text: "Демонтаж выполнен"}, env.actor(engineer))
	require.NoError(t, err)
	assert.Equal(t, "Демонтаж выполнен", updated.Text)

	list, err := env.svc.Comment.List(ctx, defect.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// 经理既不是作者也不是管理员
	err = env.svc.Comment.Delete(ctx, created.ID, env.actor(other))
	assert.ErrorIs(t, err, ErrCommentForbidden)
}

func TestCommentService_AdminDeletes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	engineer := testutil.CreateUser(t, env.db, model.RoleEngineer)
	admin := testutil.CreateUser(t, env.db, model.RoleAdmin)
	project := testutil.CreateProject(t, env.db, "ЖК Центральный")
	defect := testutil.CreateDefect(t, env.db, project.ID, engineer.ID)

	c, err := env.svc.Comment.Create(ctx, defect.ID, &dto.CommentRequest{Text: "Фото приложено"}, env.actor(engineer))
	require.NoError(t, err)

	require.NoError(t, env.svc.Comment.Delete(ctx, c.ID, env.actor(admin)))

	err = env.svc.Comment.Delete(ctx, c.ID, env.actor(admin))
	assert.ErrorIs(t, err, ErrCommentNotFound)
}

func TestCommentService_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	engineer := testutil.CreateUser(t, env.db, model.RoleEngineer)

	_, err := env.svc.Comment.Create(ctx, "00000000-0000-0000-0000-000000000001", &dto.CommentRequest{Text: "   "}, env.actor(engineer))
	assert.ErrorIs(t, err, ErrCommentEmpty)

	_, err = env.svc.Comment.Create(ctx, "00000000-0000-0000-0000-000000000001", &dto.CommentRequest{Text: "ok"}, env.actor(engineer))
	assert.ErrorIs(t, err, ErrDefectNotFound)

	_, err = env.svc.Comment.List(ctx, "00000000-0000-0000-0000-000000000001")
	assert.ErrorIs(t, err, ErrDefectNotFound)
}
