package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NullFlag is a boolean that can also be absent.
//
// Catalog rows arrive with genre columns that are 1, 0, or missing entirely.
// A missing value means "not classified", which is NOT the same as "not in
// this genre", so it must survive a round trip through the database and JSON:
//
//	NullFlag{}                     → NULL / null
//	NullFlag{Valid: true}          → 0
//	NullFlag{Valid: true, In: true} → 1
type NullFlag struct {
	In    bool
	Valid bool
}

// Flag returns a present flag with the given value.
func Flag(in bool) NullFlag {
	return NullFlag{In: in, Valid: true}
}

// Scan implements sql.Scanner. Drivers hand integer columns back as int64,
// but some return bool or text, so all three are accepted.
func (f *NullFlag) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = NullFlag{}
	case int64:
		*f = Flag(v != 0)
	case bool:
		*f = Flag(v)
	case []byte:
		return f.scanText(string(v))
	case string:
		return f.scanText(v)
	default:
		return fmt.Errorf("model: cannot scan %T into NullFlag", src)
	}
	return nil
}

func (f *NullFlag) scanText(s string) error {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = Flag(n != 0)
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("model: cannot scan %q into NullFlag", s)
	}
	*f = Flag(b)
	return nil
}

// Value implements driver.Valuer; the column is an integer, never a boolean.
func (f NullFlag) Value() (driver.Value, error) {
	if !f.Valid {
		return nil, nil
	}
	if f.In {
		return int64(1), nil
	}
	return int64(0), nil
}

// Any returns nil, 0 or 1, the shape used by the serializer's tree documents.
func (f NullFlag) Any() any {
	if !f.Valid {
		return nil
	}
	if f.In {
		return 1
	}
	return 0
}

func (f NullFlag) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Any())
}

// UnmarshalJSON accepts null, 0/1 and true/false, bare or quoted. The
// empty string is absent, the way a blank catalog cell is.
func (f *NullFlag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = NullFlag{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("model: cannot decode %s into NullFlag: %w", data, err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = NullFlag{}
			return nil
		}
		return f.scanText(s)
	}
	return f.scanText(string(data))
}
