package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func parseNullTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func encodeNotifyLists(lists NotifyLists) (any, error) {
	if len(lists) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(lists)
	if err != nil {
		return nil, fmt.Errorf("encode notify lists: %w", err)
	}
	return string(data), nil
}

func decodeNotifyLists(raw sql.NullString) (NotifyLists, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var lists NotifyLists
	if err := json.Unmarshal([]byte(raw.String), &lists); err != nil {
		return nil, fmt.Errorf("decode notify lists: %w", err)
	}
	return lists, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
