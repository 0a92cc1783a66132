package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel 主键与时间戳（所有业务模型嵌入）
// 主键在应用层生成，不依赖数据库的 gen_random_uuid()
type BaseModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"               json:"id"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// BeforeCreate 未指定主键时生成 UUID
func (m *BaseModel) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// ── 角色 ──

const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEngineer = "engineer"
	RoleObserver = "observer"
)

// Roles 全部角色
var Roles = []string{RoleAdmin, RoleManager, RoleEngineer, RoleObserver}

// ── 优先级（项目与缺陷共用） ──

type Priority string

const (
	PriorityLow      Priority = "низкий"
	PriorityMedium   Priority = "средний"
	PriorityHigh     Priority = "высокий"
	PriorityCritical Priority = "критический"
)

// Priorities 全部优先级，按严重程度升序
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
