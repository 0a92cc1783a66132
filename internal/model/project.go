package model

import "gorm.io/datatypes"

type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "планирование"
	ProjectInProgress ProjectStatus = "в работе"
	ProjectSuspended  ProjectStatus = "приостановлен"
	ProjectCompleted  ProjectStatus = "завершен"
)

// ProjectStatuses 全部项目状态
var ProjectStatuses = []ProjectStatus{ProjectPlanning, ProjectInProgress, ProjectSuspended, ProjectCompleted}

// Project 建设项目 — 对应 projects
type Project struct {
	BaseModel
	Name        string          `gorm:"type:varchar(200);not null"                   json:"name"`
	Description string          `gorm:"type:text;not null;default:''"                json:"description"`
	Address     string          `gorm:"type:varchar(300);not null;default:''"        json:"address"`
	Status      ProjectStatus   `gorm:"type:varchar(30);not null;default:'планирование'" json:"status"`
	Priority    Priority        `gorm:"type:varchar(20);not null;default:'средний'"  json:"priority"`
	ManagerID   *string         `gorm:"type:uuid;index"                              json:"manager_id"`
	StartDate   *datatypes.Date `json:"start_date"`
	EndDate     *datatypes.Date `json:"end_date"`
	CreatedBy   *string         `gorm:"type:uuid"                                    json:"created_by"`

	// 关联
	Manager *User          `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
	Stages  []ProjectStage `gorm:"foreignKey:ProjectID" json:"stages,omitempty"`
}

// TableName 指定表名
func (Project) TableName() string { return "projects" }
