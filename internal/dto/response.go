package dto

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page  int `form:"page"  binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Normalize 填充分页默认值
func (p *PaginationRequest) Normalize() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
}

// Offset 计算偏移量
func (p PaginationRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// SortRequest 排序参数，字段名由各列表接口的白名单校验
type SortRequest struct {
	SortBy    string `form:"sortBy"    binding:"omitempty,max=30"`
	SortOrder string `form:"sortOrder" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// DateLayout 接口中的日期格式
const DateLayout = "2006-01-02"
