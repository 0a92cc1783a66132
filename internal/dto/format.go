package dto

import (
	"time"

	"gorm.io/datatypes"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// FormatDate datatypes.Date → YYYY-MM-DD
func FormatDate(d *datatypes.Date) *string {
	if d == nil {
		return nil
	}
	s := time.Time(*d).Format(DateLayout)
	return &s
}

// ParseDate YYYY-MM-DD → datatypes.Date，空串返回 nil
func ParseDate(s string) (*datatypes.Date, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return nil, err
	}
	d := datatypes.Date(t)
	return &d, nil
}
