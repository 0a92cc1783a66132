package model

// All 全部模型，供测试环境 AutoMigrate 使用
// 生产环境以 pkg/database/migrations 为准
func All() []interface{} {
	return []interface{}{
		&User{},
		&Project{},
		&ProjectStage{},
		&Defect{},
		&Comment{},
		&Attachment{},
		&DefectHistory{},
	}
}
