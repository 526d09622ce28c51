package dto

import (
	"bytes"
	"time"
)

// Timestamp decodes backend datetimes. The backend serializes naive ISO 8601
// values without a timezone suffix, which the stock time.Time decoder
// rejects.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// UnmarshalJSON accepts RFC 3339 and timezone-less ISO 8601 strings. Empty
// and null values decode to the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(data, `"`))
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}

	var err error
	for _, layout := range timestampLayouts {
		var parsed time.Time
		parsed, err = time.Parse(layout, raw)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return err
}
