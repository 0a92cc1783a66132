package dto

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Optional 部分更新字段
// Set 表示请求体中出现了该字段；Value 为 nil 表示显式传入 null
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some 构造已赋值的字段
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null 构造显式为 null 的字段
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// IsNull 字段出现且为 null
func (o Optional[T]) IsNull() bool { return o.Set && o.Value == nil }

// Get 取值，未设置或为 null 时返回零值
func (o Optional[T]) Get() (T, bool) {
	if o.Value == nil {
		var zero T
		return zero, false
	}
	return *o.Value, true
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// ValidationValue 供 validator 的自定义类型函数使用
// 返回 *T：未设置或为 null 时是 nil 指针，配合 omitnil 跳过校验；空串等零值照常校验
func (o Optional[T]) ValidationValue() interface{} {
	return o.Value
}

// NullChecker 由部分更新 DTO 实现，返回被显式置为 null 但不可为空的字段名
type NullChecker interface {
	NullViolations() []string
}

func nullFields(fields map[string]bool) []string {
	var out []string
	for name, isNull := range fields {
		if isNull {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
