package model

import "gorm.io/datatypes"

type StageStatus string

const (
	StageNotStarted StageStatus = "не начат"
	StageInProgress StageStatus = "в работе"
	StageCompleted  StageStatus = "завершен"
)

// StageStatuses 全部阶段状态
var StageStatuses = []StageStatus{StageNotStarted, StageInProgress, StageCompleted}

// ProjectStage 项目阶段 — 对应 project_stages
type ProjectStage struct {
	BaseModel
	ProjectID   string          `gorm:"type:uuid;not null;index"                 json:"project_id"`
	Name        string          `gorm:"type:varchar(200);not null"               json:"name"`
	Description string          `gorm:"type:text;not null;default:''"            json:"description"`
	Status      StageStatus     `gorm:"type:varchar(20);not null;default:'не начат'" json:"status"`
	StartDate   *datatypes.Date `json:"start_date"`
	EndDate     *datatypes.Date `json:"end_date"`
}

// TableName 指定表名
func (ProjectStage) TableName() string { return "project_stages" }
