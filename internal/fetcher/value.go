package fetcher

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Value 是接口返回的单个数值。接口可能返回数字、数字字符串、空串或 null，
// 后两者解析为无效值。
type Value struct {
	decimal.NullDecimal
}

// UnmarshalJSON accepts numbers, numeric strings, "" and null.
func (v *Value) UnmarshalJSON(data []byte) error {
	v.NullDecimal = decimal.NullDecimal{}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" || s == "--" {
			return nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			// 非数值字符串按缺失处理
			return nil
		}
		v.NullDecimal = decimal.NewNullDecimal(d)
		return nil
	}

	d, err := decimal.NewFromString(string(trimmed))
	if err != nil {
		return nil
	}
	v.NullDecimal = decimal.NewNullDecimal(d)
	return nil
}

// MarshalJSON writes null for missing values and a JSON number otherwise.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return []byte(v.Decimal.String()), nil
}

// At returns column[i] or an invalid value when out of range.
func At(column []Value, i int) decimal.NullDecimal {
	if i < 0 || i >= len(column) {
		return decimal.NullDecimal{}
	}
	return column[i].NullDecimal
}
