//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/internal/repository"
	"github.com/Tuns2000/Campusfix-sub000/pkg/database"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=campusfix password=campusfix dbname=campusfix_test sslmode=disable TimeZone=Europe/Moscow"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	// 与生产一致，使用迁移脚本建表
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// setupTestData 创建基础测试数据并返回清理函数
func setupTestData(t *testing.T) (user *model.User, project *model.Project, cleanup func()) {
	t.Helper()
	ctx := context.Background()

	user = &model.User{
		Email:        fmt.Sprintf("pg%d@example.ru", time.Now().UnixNano()),
		PasswordHash: "$2a$10$placeholder",
		Role:         model.RoleManager,
		FirstName:    "Пётр",
		LastName:     "Петров",
		IsActive:     true,
	}
	if err := testDB.WithContext(ctx).Create(user).Error; err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}

	project = &model.Project{Name: fmt.Sprintf("ЖК-%d", time.Now().UnixNano())}
	if err := testDB.WithContext(ctx).Create(project).Error; err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}

	cleanup = func() {
		testDB.Where("project_id = ?", project.ID).Delete(&model.Defect{})
		testDB.Where("id = ?", project.ID).Delete(&model.Project{})
		testDB.Where("id = ?", user.ID).Delete(&model.User{})
	}
	return
}

// ═══════════════════════════════════════════════════════════
// Test: 西里尔字母不区分大小写搜索
// ═══════════════════════════════════════════════════════════

func TestDefectSearch_CyrillicCaseInsensitive(t *testing.T) {
	user, project, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	d := &model.Defect{Title: "Трещина в несущей стене", ProjectID: project.ID, ReportedBy: user.ID}
	if err := repo.Defect.Create(ctx, d); err != nil {
		t.Fatalf("创建缺陷失败: %v", err)
	}

	_, total, err := repo.Defect.List(ctx, repository.DefectFilter{ProjectID: project.ID, Search: "ТРЕЩИНА"})
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if total != 1 {
		t.Errorf("期望 1 条，实际 %d", total)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Transaction
// ═══════════════════════════════════════════════════════════

func TestTransaction_Rollback(t *testing.T) {
	user, project, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	var created string
	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		d := &model.Defect{Title: "Откат", ProjectID: project.ID, ReportedBy: user.ID}
		if err := tx.Defect.Create(ctx, d); err != nil {
			return err
		}
		created = d.ID
		return errors.New("rollback")
	})
	if err == nil {
		t.Fatal("期望事务返回错误")
	}

	if _, err := repo.Defect.GetByID(ctx, created); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("期望回滚后查不到缺陷，实际 err=%v", err)
	}
}

func TestTransaction_Commit(t *testing.T) {
	user, project, cleanup := setupTestData(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	var created string
	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		d := &model.Defect{Title: "Коммит", ProjectID: project.ID, ReportedBy: user.ID}
		if err := tx.Defect.Create(ctx, d); err != nil {
			return err
		}
		created = d.ID
		return tx.History.Append(ctx, []model.DefectHistory{{
			DefectID: d.ID, FieldName: model.HistoryFieldCreated, ChangedBy: user.ID,
		}})
	})
	if err != nil {
		t.Fatalf("事务失败: %v", err)
	}

	found, err := repo.Defect.GetDetail(ctx, created)
	if err != nil {
		t.Fatalf("提交后查询缺陷失败: %v", err)
	}
	if found.Status != model.StatusNew || found.Priority != model.PriorityMedium {
		t.Errorf("数据库默认值未生效: status=%s priority=%s", found.Status, found.Priority)
	}

	history, err := repo.History.ListByDefect(ctx, created)
	if err != nil || len(history) != 1 {
		t.Fatalf("期望 1 条历史，实际 %d (err=%v)", len(history), err)
	}
}
