package model

import (
	"time"

	"gorm.io/datatypes"
)

// DefectStatus 缺陷状态
type DefectStatus string

const (
	StatusNew        DefectStatus = "новый"
	StatusConfirmed  DefectStatus = "подтвержден"
	StatusInProgress DefectStatus = "в работе"
	StatusFixed      DefectStatus = "исправлен"
	StatusVerified   DefectStatus = "проверен"
	StatusClosed     DefectStatus = "закрыт"
	StatusRejected   DefectStatus = "отклонен"
)

// DefectStatuses 全部缺陷状态，按流程顺序
var DefectStatuses = []DefectStatus{
	StatusNew, StatusConfirmed, StatusInProgress, StatusFixed,
	StatusVerified, StatusClosed, StatusRejected,
}

// Valid 是否为已知状态
func (s DefectStatus) Valid() bool {
	for _, v := range DefectStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Defect 缺陷 — 对应 defects
type Defect struct {
	BaseModel
	Title       string          `gorm:"type:varchar(200);not null"               json:"title"`
	Description string          `gorm:"type:text;not null;default:''"            json:"description"`
	Location    string          `gorm:"type:varchar(300);not null;default:''"    json:"location"`
	ProjectID   string          `gorm:"type:uuid;not null;index"                 json:"project_id"`
	StageID     *string         `gorm:"type:uuid;index"                          json:"stage_id"`
	Status      DefectStatus    `gorm:"type:varchar(20);not null;default:'новый'" json:"status"`
	Priority    Priority        `gorm:"type:varchar(20);not null;default:'средний'" json:"priority"`
	ReportedBy  string          `gorm:"type:uuid;not null"                       json:"reported_by"`
	AssignedTo  *string         `gorm:"type:uuid;index"                          json:"assigned_to"`
	DueDate     *datatypes.Date `json:"due_date"`
	ClosedAt    *time.Time      `json:"closed_at"`

	// 关联
	Project  *Project      `gorm:"foreignKey:ProjectID"  json:"project,omitempty"`
	Stage    *ProjectStage `gorm:"foreignKey:StageID"    json:"stage,omitempty"`
	Reporter *User         `gorm:"foreignKey:ReportedBy" json:"reporter,omitempty"`
	Assignee *User         `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
}

// TableName 指定表名
func (Defect) TableName() string { return "defects" }

// IsOverdue 截止日期已过且未关闭/驳回
func (d *Defect) IsOverdue(now time.Time) bool {
	if d.DueDate == nil || d.Status == StatusClosed || d.Status == StatusRejected {
		return false
	}
	due := time.Time(*d.DueDate)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC).Before(today)
}
