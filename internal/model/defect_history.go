package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryFieldCreated 缺陷创建时写入的历史字段名
const HistoryFieldCreated = "created"

// DefectHistory 缺陷变更历史 — 对应 defect_history，只追加
type DefectHistory struct {
	ID        string    `gorm:"type:uuid;primaryKey"               json:"id"`
	DefectID  string    `gorm:"type:uuid;not null;index"           json:"defect_id"`
	FieldName string    `gorm:"type:varchar(50);not null"          json:"field_name"`
	OldValue  *string   `gorm:"type:text"                          json:"old_value"`
	NewValue  *string   `gorm:"type:text"                          json:"new_value"`
	ChangedBy string    `gorm:"type:uuid;not null"                 json:"changed_by"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	Changer *User `gorm:"foreignKey:ChangedBy" json:"changer,omitempty"`
}

// TableName 指定表名
func (DefectHistory) TableName() string { return "defect_history" }

func (h *DefectHistory) BeforeCreate(_ *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
