// Package encryption は診療データのフィールドレベル暗号化を提供する。
// レコードごとに生成するセッション鍵で本文をAES-256-CBC暗号化し、
// セッション鍵をRSA-OAEPでラップするハイブリッド方式を実装する。
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"unicode/utf8"
)

const sessionKeySize = 32 // AES-256 = 256 bits = 32 bytes

// Cipher はハイブリッド暗号化・復号を行う。
type Cipher struct {
	keys *KeyStore
}

// NewCipher は新しいCipherを生成する。
func NewCipher(keys *KeyStore) *Cipher {
	return &Cipher{keys: keys}
}

// Encrypt は平文を暗号化して封筒文字列を返す。セッション鍵とIVは呼び出し
// ごとに生成するため、同じ平文でも封筒は毎回異なる。空文字列はそのまま返す。
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	sessionKey := make([]byte, sessionKeySize)
	if _, err := rand.Read(sessionKey); err != nil {
		return "", fmt.Errorf("%w: generating session key: %v", ErrEncrypt, err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("%w: generating IV: %v", ErrEncrypt, err)
	}

	// 本文をAES-256-CBCで暗号化
	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return "", fmt.Errorf("%w: initializing cipher: %v", ErrEncrypt, err)
	}
	padded := pkcs7Pad([]byte(plaintext))
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	// セッション鍵をRSA-OAEPでラップ
	wrappedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, c.keys.publicKey, sessionKey, nil)
	if err != nil {
		return "", fmt.Errorf("%w: wrapping session key: %v", ErrEncrypt, err)
	}

	return encodeEnvelope(wrappedKey, iv, ciphertext), nil
}

// Decrypt は封筒文字列を復号して平文を返す。空文字列はそのまま返す。
// 復号に失敗した場合は理由を問わず空文字列を返し、失敗の種別は呼び出し元に
// 渡さずログにのみ記録する。
func (c *Cipher) Decrypt(envelope string) string {
	if envelope == "" {
		return ""
	}
	plaintext, err := c.open(envelope)
	if err != nil {
		slog.Warn("failed to decrypt envelope", "error", err)
		return ""
	}
	return plaintext
}

// open は封筒を分解して復号する。
func (c *Cipher) open(envelope string) (string, error) {
	wrappedKey, iv, ciphertext, err := decodeEnvelope(envelope)
	if err != nil {
		return "", err
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: IV length %d", ErrInvalidEnvelope, len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", ErrInvalidBlockSize
	}

	sessionKey, err := rsa.DecryptOAEP(sha256.New(), nil, c.keys.privateKey, wrappedKey, nil)
	if err != nil {
		return "", fmt.Errorf("%w: unwrapping session key: %v", ErrDecrypt, err)
	}
	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return "", fmt.Errorf("%w: initializing cipher: %v", ErrDecrypt, err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)
	plaintext, err := pkcs7Unpad(padded)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", ErrDecrypt)
	}
	return string(plaintext), nil
}
