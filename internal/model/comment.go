package model

// Comment 缺陷评论 — 对应 comments
type Comment struct {
	BaseModel
	DefectID string `gorm:"type:uuid;not null;index" json:"defect_id"`
	AuthorID string `gorm:"type:uuid;not null"       json:"author_id"`
	Text     string `gorm:"type:text;not null"       json:"text"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// TableName 指定表名
func (Comment) TableName() string { return "comments" }
