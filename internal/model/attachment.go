package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attachment 缺陷附件元数据 — 对应 attachments
// FilePath 为存储键（YYYY-MM/<uuid><ext>），文件本身由 storage 管理
type Attachment struct {
	ID         string    `gorm:"type:uuid;primaryKey"               json:"id"`
	DefectID   string    `gorm:"type:uuid;not null;index"           json:"defect_id"`
	FileName   string    `gorm:"type:varchar(255);not null"         json:"file_name"`
	FilePath   string    `gorm:"type:varchar(500);not null;uniqueIndex" json:"-"`
	FileType   string    `gorm:"type:varchar(150);not null"         json:"file_type"`
	FileSize   int64     `gorm:"not null"                           json:"file_size"`
	UploadedBy string    `gorm:"type:uuid;not null"                 json:"uploaded_by"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (Attachment) TableName() string { return "attachments" }

func (a *Attachment) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
