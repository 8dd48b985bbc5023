package encryption

import "fmt"

// FieldCodec はレコードマップの指定フィールドをまとめて暗号化・復号する。
type FieldCodec struct {
	cipher *Cipher
}

// NewFieldCodec は新しいFieldCodecを生成する。
func NewFieldCodec(cipher *Cipher) *FieldCodec {
	return &FieldCodec{cipher: cipher}
}

// EncryptFields は指定フィールドを暗号化したレコードのコピーを返す。
// 入力のレコードは変更しない。存在しないフィールドと空のフィールドは
// 暗号化せずそのまま残す。
func (f *FieldCodec) EncryptFields(record map[string]any, fields []string) (map[string]any, error) {
	result := make(map[string]any, len(record))
	for k, v := range record {
		result[k] = v
	}
	for _, name := range fields {
		value, ok := record[name]
		if !ok || isEmptyValue(value) {
			continue
		}
		sealed, err := f.cipher.Encrypt(stringify(value))
		if err != nil {
			return nil, fmt.Errorf("encrypting field %q: %w", name, err)
		}
		result[name] = sealed
	}
	return result, nil
}

// DecryptFields は指定フィールドを復号したレコードのコピーを返す。
// 入力のレコードは変更しない。復号に失敗したフィールドは空文字列になる。
func (f *FieldCodec) DecryptFields(record map[string]any, fields []string) map[string]any {
	result := make(map[string]any, len(record))
	for k, v := range record {
		result[k] = v
	}
	for _, name := range fields {
		value, ok := record[name]
		if !ok || isEmptyValue(value) {
			continue
		}
		result[name] = f.cipher.Decrypt(stringify(value))
	}
	return result
}

// isEmptyValue は暗号化・復号をスキップすべき空値かどうかを判定する。
func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	}
	return false
}

// stringify は文字列以外の値を文字列化してから暗号化に回す。
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
