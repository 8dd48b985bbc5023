package encryption

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// envelope は暗号化済みフィールドのワイヤ形式。各要素は個別にBase64
// エンコードされ、JSON全体がさらにBase64エンコードされて1つの文字列になる。
type envelope struct {
	Key  string `json:"key"`
	IV   string `json:"iv"`
	Data string `json:"data"`
}

// encodeEnvelope はラップ済みセッション鍵・IV・暗号文を封筒文字列に詰める。
func encodeEnvelope(wrappedKey, iv, ciphertext []byte) string {
	env := envelope{
		Key:  base64.StdEncoding.EncodeToString(wrappedKey),
		IV:   base64.StdEncoding.EncodeToString(iv),
		Data: base64.StdEncoding.EncodeToString(ciphertext),
	}
	raw, _ := json.Marshal(env)
	return base64.StdEncoding.EncodeToString(raw)
}

// decodeEnvelope は封筒文字列を検証しながら各要素に分解する。
func decodeEnvelope(s string) (wrappedKey, iv, ciphertext []byte, err error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: decoding outer layer: %v", ErrInvalidEnvelope, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: parsing envelope: %v", ErrInvalidEnvelope, err)
	}
	if env.Key == "" || env.IV == "" || env.Data == "" {
		return nil, nil, nil, fmt.Errorf("%w: missing fields", ErrInvalidEnvelope)
	}

	wrappedKey, err = base64.StdEncoding.DecodeString(env.Key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: decoding key: %v", ErrInvalidEnvelope, err)
	}
	iv, err = base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: decoding iv: %v", ErrInvalidEnvelope, err)
	}
	ciphertext, err = base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: decoding data: %v", ErrInvalidEnvelope, err)
	}
	return wrappedKey, iv, ciphertext, nil
}
