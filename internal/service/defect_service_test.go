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

func historyOf(t *testing.T, env *testEnv, defectID string) []dto.HistoryResponse {
	t.Helper()
	items, err := env.svc.Defect.History(context.Background(), defectID)
	require.NoError(t, err)
	return items
}

func setStatus(status model.DefectStatus) func(*model.Defect) {
	return func(d *model.Defect) { d.Status = status }
}

// ═══════════════════════════════════════════════════════════
// Create
// ═══════════════════════════════════════════════════════════

func TestDefectService_CreateForcesNewStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	engineer := testutil.CreateUser(t, env.db, model.RoleEngineer)
	assignee := testutil.CreateUser(t, env.db, model.RoleEngineer)
	project := testutil.CreateProject(t, env.db, "Корпус А")
	stage := testutil.CreateStage(t, env.db, project.ID, "Монолит")

	resp, err := env.svc.Defect.Create(ctx, &dto.CreateDefectRequest{
		Title:      "Трещина в перекрытии",
		ProjectID:  project.ID,
		StageID:    stage.ID,
		Priority:   string(model.PriorityHigh),
		AssignedTo: assignee.ID,
		DueDate:    "2026-11-15",
	}, env.actor(engineer))
	require.NoError(t, err)

	assert.Equal(t, string(model.StatusNew), resp.Status)
	assert.Equal(t, engineer.ID, resp.ReportedBy)
	require.NotNil(t, resp.Project)
	assert.Equal(t, "Корпус А", resp.Project.Name)
	require.NotNil(t, resp.Stage)
	assert.Equal(t, "Монолит", resp.Stage.Name)
	require.NotNil(t, resp.Assignee)
	assert.Equal(t, assignee.ID, resp.Assignee.ID)
	require.NotNil(t, resp.DueDate)
	assert.Equal(t, "2026-11-15", *resp.DueDate)
	assert.Nil(t, resp.ClosedAt)

	history := historyOf(t, env, resp.ID)
	require.Len(t, history, 1)
	assert.Equal(t, model.HistoryFieldCreated, history[0].FieldName)
	assert.Equal(t, engineer.ID, history[0].ChangedBy)
}

func TestDefectService_CreateReferenceChecks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	engineer := testutil.CreateUser(t, env.db, model.RoleEngineer)
	observer := testutil.CreateUser(t, env.db, model.RoleObserver)
	project := testutil.CreateProject(t, env.db, "Корпус Б")
	other := testutil.CreateProject(t, env.db, "Корпус В")
	foreignStage := testutil.CreateStage(t, env.db, other.ID, "Чужой этап")

	tests := []struct {
		name string
		req  dto.CreateDefectRequest
		want error
	}{
		{"missing project", dto.CreateDefectRequest{Title: "Скол", ProjectID: "00000000-0000-0000-0000-000000000000"}, ErrDefectProjectMissing},
		{"stage of another project", dto.CreateDefectRequest{Title: "Скол", ProjectID: project.ID, StageID: foreignStage.ID}, ErrStageMismatch},
		{"observer as assignee", dto.CreateDefectRequest{Title: "Скол", ProjectID: project.ID, AssignedTo: observer.ID}, ErrAssigneeInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := env.svc.Defect.Create(ctx, &req, env.actor(engineer))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// 失败的创建不留下任何记录
	var n int64
	require.NoError(t, env.db.Model(&model.Defect{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, env.db.Model(&model.DefectHistory{}).Count(&n).Error)
	assert.Zero(t, n)
}

// ═══════════════════════════════════════════════════════════
// Update: 历史记录
// ═══════════════════════════════════════════════════════════

func TestDefectService_UpdateWritesOneHistoryRowPerChangedField(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	manager := testutil.CreateUser(t, env.db, model.RoleManager)
	project := testutil.CreateProject(t, env.db, "Корпус Г")
	defect := testutil.CreateDefect(t, env.db, project.ID, manager.ID, func(d *model.Defect) {
		d.Title = "Протечка"
		d.Location = "Подвал"
	})

	resp, err := env.svc.Defect.Update(ctx, defect.ID, &dto.UpdateDefectRequest{
		Title:    dto.Some("Протечка кровли"),
		Location: dto.Some("Подвал"), // 未变化
		Priority: dto.Some(string(model.PriorityCritical)),
	}, env.actor(manager))
	require.NoError(t, err)
	assert.Equal(t, "Протечка кровли", resp.Title)
	assert.Equal(t, string(model.PriorityCritical), resp.Priority)

	history := historyOf(t, env, defect.ID)
	require.Len(t, history, 2)

	byField := map[string]dto.HistoryResponse{}
	for _, h := range history {
		byField[h.FieldName] = h
	}
	require.Contains(t, byField, "title")
	assert.Equal(t, "Протечка", *byField["title"].OldValue)
	assert.Equal(t, "Протечка кровли", *byField["title"].NewValue)
	require.Contains(t, byField, "priority")
	assert.Equal(t, string(model.PriorityMedium), *byField["priority"].OldValue)
	assert.NotContains(t, byField, "location")
}

func TestDefectService_UpdateWithoutChangesIsNoop(t *testing.T) {
	env := newTestEnv(t)
	manager := testutil.CreateUser(t, env.db, model.RoleManager)
	project := testutil.CreateProject(t, env.db, "Корпус Д")
	defect := testutil.CreateDefect(t, env.db, project.ID, manager.ID)

	_, err := env.svc.Defect.Update(context.Background(), defect.ID, &dto.UpdateDefectRequest{
		Title:  dto.Some(defect.Title),
		Status: dto.Some(string(model.StatusNew)),
	}, env.actor(manager))
	require.NoError(t, err)
	assert.Empty(t, historyOf(t, env, defect.ID))
}

func TestDefectService_UpdateClearsNullableFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	manager := testutil.CreateUser(t, env.db, model.RoleManager)
	assignee := testutil.CreateUser(t, env.db, model.RoleEngineer)
	project := testutil.CreateProject(t, env.db, "Корпус Е")
	defect := testutil.CreateDefect(t, env.db, project.ID, manager.ID, func(d *model.Defect) {
		d.AssignedTo = &assignee.ID
		d.DueDate = testutil.Date(2026, 12, 1)
	})

	resp, err := env.svc.Defect.Update(ctx, defect.ID, &dto.UpdateDefectRequest{
		AssignedTo: dto.Null[string](),
		DueDate:    dto.Null[string](),
	}, env.actor(manager))
	require.NoError(t, err)
	assert.Nil(t, resp.AssignedTo)
	assert.Nil(t, resp.Assignee)
	assert.Nil(t, resp.DueDate)

	history := historyOf(t, env, defect.ID)
	require.Len(t, history, 2)
	for _, h := range history {
		assert.NotNil(t, h.OldValue)
		assert.Nil(t, h.NewValue)
	}
}

func TestDefectService_UpdateStageMustMatchProject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	manager := testutil.CreateUser(t, env.db, model.RoleManager)
	project := testutil.CreateProject(t, env.db, "Корпус Ж")
	other := testutil.CreateProject(t, env.db, "Корпус З")
	stage := testutil.CreateStage(t, env.db, project.ID, "Фасад")
	defect := testutil.CreateDefect(t, env.db, project.ID, manager.ID, func(d *model.Defect) { d.StageID = &stage.ID })

	// 换项目但保留原阶段
	_, err := env.svc.Defect.Update(ctx, defect.ID, &dto.UpdateDefectRequest{
		ProjectID: dto.Some(other.ID),
	}, env.actor(manager))
	assert.ErrorIs(t, err, ErrStageMismatch)

	// 同时清空阶段即可
	resp, err := env.svc.Defect.Update(ctx, defect.ID, &dto.UpdateDefectRequest{
		ProjectID: dto.Some(other.ID),
		StageID:   dto.Null[string](),
	}, env.actor(manager))
	require.NoError(t, err)
	assert.Equal(t, other.ID, resp.ProjectID)
	assert.Nil(t, resp.StageID)
}

func TestDefectService_ObserverCannotEditFields(t *testing.T) {
	env := newTestEnv(t)
	observer := testutil.CreateUser(t, env.db, model.RoleObserver)
	project := testutil.CreateProject(t, env.db, "Корпус И")
	defect := testutil.CreateDefect(t, env.db, project.ID, observer.ID)

	_, err := env.svc.Defect.Update(context.Background(), defect.ID, &dto.UpdateDefectRequest{
		Title: dto.Some("Новый заголовок"),
	}, env.actor(observer))
	assert.ErrorIs(t, err, ErrDefectEditForbidden)
}

// ═══════════════════════════════════════════════════════════
// Update: 状态流转
// ═══════════════════════════════════════════════════════════

func TestDefectService_StatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	engineer := testutil.CreateUser(t, env.db, model.RoleEngineer)
	observer := testutil.CreateUser(t, env.db, model.RoleObserver)
	project := testutil.CreateProject(t, env.db, "Корпус К")

	tests := []struct {
		name    string
		actor   *model.User
		from    model.DefectStatus
		to      model.DefectStatus
		allowed bool
	}{
		{"engineer confirmed to in progress", engineer, model.StatusConfirmed, model.StatusInProgress, true},
		{"engineer new to in progress", engineer, model.StatusNew, model.StatusInProgress, false},
		{"observer fixed to verified", observer, model.StatusFixed, model.StatusVerified, true},
		{"observer new to confirmed", observer, model.StatusNew, model.StatusConfirmed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defect := testutil.CreateDefect(t, env.db, project.ID, engineer.ID, setStatus(tt.from))

			resp, err := env.svc.Defect.Update(ctx, defect.ID, &dto.UpdateDefectRequest{
				Status: dto.Some(string(tt.to)),
			}, env.actor(tt.actor))

			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, string(tt.to), resp.Status)
				history := historyOf(t, env, defect.ID)
				require.Len(t, history, 1)
				assert.Equal(t, "status", history[0].FieldName)
				return
			}

			require.ErrorIs(t, err, ErrTransitionDenied)
			assert.Contains(t, err.Error(), string(tt.from))
			assert.Contains(t, err.Error(), string(tt.to))

			got, err := env.svc.Defect.Get(ctx, defect.ID)
			require.NoError(t, err)
			assert.Equal(t, string(tt.from), got.Status)
			assert.Empty(t, historyOf(t, env, defect.ID))
		})
	}
}

func TestDefectService_ClosureStamping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, env.db, model.RoleAdmin)
	project := testutil.CreateProject(t, env.db, "Корпус Л")
	defect := testutil.CreateDefect(t, env.db, project.ID, admin.ID, setStatus(model.StatusVerified))

	resp, err := env.svc.Defect.Update(ctx, defect.ID, &dto.UpdateDefectRequest{
		Status: dto.Some(string(model.StatusClosed)),
	}, env.actor(admin))
	require.NoError(t, err)
	require.NotNil(t, resp.ClosedAt)

	resp, err = env.svc.Defect.Update(ctx, defect.ID, &dto.UpdateDefectRequest{
		Status: dto.Some(string(model.StatusInProgress)),
	}, env.actor(admin))
	require.NoError(t, err)
	assert.Nil(t, resp.ClosedAt)
}

func TestDefectService_Transitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, env.db, model.RoleAdmin)
	engineer := testutil.CreateUser(t, env.db, model.RoleEngineer)
	project := testutil.CreateProject(t, env.db, "Корпус М")
	defect := testutil.CreateDefect(t, env.db, project.ID, admin.ID, setStatus(model.StatusConfirmed))

	resp, err := env.svc.Defect.Transitions(ctx, defect.ID, env.actor(engineer))
	require.NoError(t, err)
	assert.Equal(t, string(model.StatusConfirmed), resp.Current)
	assert.Equal(t, []string{string(model.StatusInProgress)}, resp.Allowed)

	resp, err = env.svc.Defect.Transitions(ctx, defect.ID, env.actor(admin))
	require.NoError(t, err)
	assert.Len(t, resp.Allowed, len(model.DefectStatuses)-1)
	assert.NotContains(t, resp.Allowed, string(model.StatusConfirmed))
}

// ═══════════════════════════════════════════════════════════
// List / Delete
// ═══════════════════════════════════════════════════════════

func TestDefectService_ListFilterAndSort(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reporter := testutil.CreateUser(t, env.db, model.RoleEngineer)
	project := testutil.CreateProject(t, env.db, "Корпус Н")
	testutil.CreateDefect(t, env.db, project.ID, reporter.ID, func(d *model.Defect) { d.Priority = model.PriorityLow })
	testutil.CreateDefect(t, env.db, project.ID, reporter.ID, func(d *model.Defect) { d.Priority = model.PriorityCritical })
	testutil.CreateDefect(t, env.db, project.ID, reporter.ID, setStatus(model.StatusClosed))

	req := &dto.DefectListRequest{
		ProjectID:   project.ID,
		SortRequest: dto.SortRequest{SortBy: "priority", SortOrder: "desc"},
	}
	items, total, err := env.svc.Defect.List(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 3)
	assert.Equal(t, string(model.PriorityCritical), items[0].Priority)
	assert.Equal(t, dto.DefaultLimit, req.Limit)

	items, total, err = env.svc.Defect.List(ctx, &dto.DefectListRequest{Status: string(model.StatusClosed)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, string(model.StatusClosed), items[0].Status)

	_, _, err = env.svc.Defect.List(ctx, &dto.DefectListRequest{SortRequest: dto.SortRequest{SortBy: "reported_by; DROP"}})
	assert.ErrorIs(t, err, ErrInvalidSort)
}

func TestDefectService_DeleteRemovesAttachmentFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, env.db, model.RoleAdmin)
	project := testutil.CreateProject(t, env.db, "Корпус О")
	defect := testutil.CreateDefect(t, env.db, project.ID, admin.ID)

	uploaded, err := env.svc.Attachment.Upload(ctx, defect.ID,
		buildForm(t, map[string][]fileSpec{UploadField: {pngFile("photo.png")}}), env.actor(admin))
	require.NoError(t, err)
	require.Len(t, uploaded, 1)

	objects, err := env.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 1)

	require.NoError(t, env.svc.Defect.Delete(ctx, defect.ID, env.actor(admin)))

	objects, err = env.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, objects)

	_, err = env.svc.Defect.Get(ctx, defect.ID)
	assert.ErrorIs(t, err, ErrDefectNotFound)
	assert.ErrorIs(t, env.svc.Defect.Delete(ctx, defect.ID, env.actor(admin)), ErrDefectNotFound)
}
