// Package testutil 仓储与服务层测试使用的 SQLite 数据库与数据构造函数
package testutil

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // 纯 Go 驱动，无需 CGO

	"github.com/Tuns2000/Campusfix-sub000/internal/model"
)

// NewDB 基于临时文件的 SQLite 数据库，测试结束自动关闭
// 单连接：事务内必须只使用事务句柄，否则会阻塞
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)&_time_format=sqlite"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("打开 SQLite 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("初始化 GORM 失败: %v", err)
	}

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("AutoMigrate 失败: %v", err)
	}
	return db
}

// ── 数据构造 ──

var seq atomic.Int64

func next() int64 {
	return seq.Add(1)
}

// CreateUser 创建指定角色的启用用户
func CreateUser(t testing.TB, db *gorm.DB, role string) *model.User {
	t.Helper()
	n := next()
	u := &model.User{
		Email:        fmt.Sprintf("user%d@example.ru", n),
		PasswordHash: "$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva",
		Role:         role,
		FirstName:    "Иван",
		LastName:     fmt.Sprintf("Тестов%d", n),
		IsActive:     true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}
	return u
}

// CreateProject 创建项目
func CreateProject(t testing.TB, db *gorm.DB, name string) *model.Project {
	t.Helper()
	start := datatypes.Date(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	p := &model.Project{
		Name:      name,
		Address:   "ул. Ленина, 1",
		Status:    model.ProjectInProgress,
		Priority:  model.PriorityMedium,
		StartDate: &start,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}
	return p
}

// CreateStage 创建项目阶段
func CreateStage(t testing.TB, db *gorm.DB, projectID, name string) *model.ProjectStage {
	t.Helper()
	s := &model.ProjectStage{ProjectID: projectID, Name: name, Status: model.StageInProgress}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("创建阶段失败: %v", err)
	}
	return s
}

// CreateDefect 创建缺陷，opts 可修改默认字段
func CreateDefect(t testing.TB, db *gorm.DB, projectID, reporterID string, opts ...func(*model.Defect)) *model.Defect {
	t.Helper()
	d := &model.Defect{
		Title:      fmt.Sprintf("Defect %d", next()),
		ProjectID:  projectID,
		ReportedBy: reporterID,
		Status:     model.StatusNew,
		Priority:   model.PriorityMedium,
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("创建缺陷失败: %v", err)
	}
	return d
}

// Date 构造 datatypes.Date
func Date(y int, m time.Month, d int) *datatypes.Date {
	v := datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	return &v
}
