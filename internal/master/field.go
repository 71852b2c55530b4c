package master

import (
	"encoding/json"
	"strings"
)

// Field 记录 JSON 键是否出现以及是否为 null，零值表示键不存在。
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// UnmarshalJSON 只会对出现的键调用，包括 null。
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if string(data) == "null" {
		f.Null = true
		return nil
	}
	return json.Unmarshal(data, &f.Value)
}

// MarshalJSON 输出值或 null。
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set || f.Null {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Some 返回有值的 Field。
func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Null 返回显式为 null 的 Field。
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// stringValue 返回字符串字段对应的列值，null 或空白为 nil。
func stringValue(f Field[string]) *string {
	if f.Null {
		return nil
	}
	v := strings.TrimSpace(f.Value)
	if v == "" {
		return nil
	}
	return &v
}
