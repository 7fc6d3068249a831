package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// TimeLayout is the ISO-8601 layout used for extractedAt (UTC, milliseconds).
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t in TimeLayout, converted to UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// MarshalJSON writes the flat record shape: base keys first, then extra fields
// in sorted order.
func (r Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')

	first := true
	write := func(key string, value any) error {
		kb, err := json.Marshal(key)
		if err != nil {
			return err
		}
		vb, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
		return nil
	}

	if err := write(KeyID, r.ID); err != nil {
		return nil, err
	}
	if err := write(KeyName, r.Name); err != nil {
		return nil, err
	}
	if err := write(KeyObjectType, string(r.ObjectType)); err != nil {
		return nil, err
	}
	if err := write(KeyExtractedAt, r.Value(KeyExtractedAt)); err != nil {
		return nil, err
	}
	if err := write(KeyURL, r.URL); err != nil {
		return nil, err
	}
	for _, k := range r.FieldKeys() {
		if err := write(k, r.Fields[k]); err != nil {
			return nil, err
		}
	}

	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON reads the flat record shape.
//
// Decoding is best-effort so that snapshots written by older or foreign
// producers still load:
//   - extractedAt may be an ISO string or epoch milliseconds
//   - scalar extra values are coerced to strings
//   - object/array extra values are kept as compact JSON text
//   - null extra values are dropped
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Record
	for key, msg := range raw {
		var v any
		if err := json.Unmarshal(msg, &v); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if v == nil {
			continue
		}

		switch key {
		case KeyID:
			out.ID = cast.ToString(v)
		case KeyName:
			out.Name = cast.ToString(v)
		case KeyObjectType:
			out.ObjectType = ObjectType(cast.ToString(v))
		case KeyURL:
			out.URL = cast.ToString(v)
		case KeyExtractedAt:
			t, err := parseTime(v)
			if err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			out.ExtractedAt = t
		default:
			s, err := coerceString(v, msg)
			if err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			out.SetField(key, s)
		}
	}

	*r = out
	return nil
}

func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return time.Time{}, nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed.UTC(), nil
		}
		parsed, err := cast.ToTimeE(t)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.UTC(), nil
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported time value %T", v)
	}
}

func coerceString(v any, raw json.RawMessage) (string, error) {
	switch v.(type) {
	case map[string]any, []any:
		var b bytes.Buffer
		if err := json.Compact(&b, raw); err != nil {
			return "", err
		}
		return b.String(), nil
	}
	return cast.ToStringE(v)
}
