package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidSort 排序字段不在白名单内
var ErrInvalidSort = errors.New("repository: 不支持的排序字段")

// Sort 已校验的排序条件
type Sort struct {
	Column string
	Desc   bool
}

// ResolveSort 按白名单解析排序参数
// sortBy 为空时使用默认列，sortOrder 默认 desc
func ResolveSort(allowed []string, def, sortBy, sortOrder string) (Sort, error) {
	col := def
	if sortBy != "" {
		col = ""
		for _, a := range allowed {
			if a == sortBy {
				col = a
				break
			}
		}
		if col == "" {
			return Sort{}, fmt.Errorf("%w: %s", ErrInvalidSort, sortBy)
		}
	}
	return Sort{Column: col, Desc: !strings.EqualFold(sortOrder, "asc")}, nil
}

// Page 分页参数，Limit <= 0 表示不分页
type Page struct {
	Offset int
	Limit  int
}

func (p Page) apply(db *gorm.DB) *gorm.DB {
	if p.Limit > 0 {
		db = db.Limit(p.Limit)
	}
	if p.Offset > 0 {
		db = db.Offset(p.Offset)
	}
	return db
}

// 优先级按严重程度而非字典序排序
const priorityRank = "CASE priority WHEN 'низкий' THEN 1 WHEN 'средний' THEN 2 WHEN 'высокий' THEN 3 WHEN 'критический' THEN 4 ELSE 0 END"

func applySort(db *gorm.DB, table string, s Sort) *gorm.DB {
	if s.Column == "priority" {
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		return db.
			Order(priorityRank + " " + dir).
			Order(clause.OrderByColumn{Column: clause.Column{Table: table, Name: "id"}})
	}
	return db.
		Order(clause.OrderByColumn{Column: clause.Column{Table: table, Name: s.Column}, Desc: s.Desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Table: table, Name: "id"}})
}

// likePattern 转义通配符并转为小写，用于 LOWER(col) LIKE ? ESCAPE '\'
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}

func searchClause(columns ...string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = "LOWER(" + c + `) LIKE ? ESCAPE '\'`
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func repeat(v interface{}, n int) []interface{} {
	out := make([]interface{}, n)
	for i := range out {
		out[i] = v
	}
	return out
}
