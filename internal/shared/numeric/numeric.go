// Package numeric は上流APIが返す数値表現（数値または桁区切り付き文字列）を
// float64 に正規化します。
package numeric

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnparsable は値を数値として解釈できなかったことを示します。
var ErrUnparsable = errors.New("numeric: unparsable value")

// Parse は桁区切り付きの文字列（"1,234,567"、"+1.25"、" 3 "）を float64 に変換します。
// 表示用の単位（"71,000원"、"1.23%"）は取り除きます。
// NaN や Inf、空文字列は ErrUnparsable を返します。
func Parse(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSuffix(s, "원")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return 0, ErrUnparsable
	}
	// strconv.ParseFloat は "NaN" や "Inf" を受け付けてしまうため decimal で解釈する
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnparsable, s)
	}
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrUnparsable, s)
	}
	return f, nil
}

// From は JSON デコード後の任意の値（float64、json.Number、string）を変換します。
func From(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, ErrUnparsable
		}
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return Parse(x.String())
	case string:
		return Parse(x)
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnparsable, v)
	}
}

// Value は数値または文字列のどちらでも受け付ける JSON フィールドです。
//
// Present はフィールドがペイロードに存在したか、Valid は解釈に成功したかを表します。
// 存在しても解釈できなかった値は Present=true, Valid=false になります。
type Value struct {
	Float   float64
	Present bool
	Valid   bool
}

// Of は有効な Value を生成します。
func Of(f float64) Value {
	return Value{Float: f, Present: true, Valid: true}
}

// FromPtr は nil を不在として扱います。
func FromPtr(p *float64) Value {
	if p == nil {
		return Value{}
	}
	return Of(*p)
}

// UnmarshalJSON は数値、文字列、null を受け付けます。null は不在として扱います。
func (v *Value) UnmarshalJSON(b []byte) error {
	*v = Value{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	v.Present = true

	var raw any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		// 解釈できない値でもメッセージ全体のデコードは止めない
		return nil
	}
	f, err := From(raw)
	if err != nil {
		return nil
	}
	v.Float = f
	v.Valid = true
	return nil
}

// MarshalJSON は有効な値を数値として、それ以外を null として出力します。
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

// Ptr は有効な場合のみ値へのポインタを返します。無効な場合は nil です。
func (v Value) Ptr() *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float
	return &f
}

// Or は有効な場合は値を、そうでなければ fallback を返します。
func (v Value) Or(fallback float64) float64 {
	if !v.Valid {
		return fallback
	}
	return v.Float
}
