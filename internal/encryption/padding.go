package encryption

import (
	"bytes"
	"crypto/aes"
	"fmt"
)

// pkcs7Pad はPKCS#7パディングを付加する。データ長がブロック長の倍数の
// 場合も丸々1ブロック分のパディングを追加する。
func pkcs7Pad(data []byte) []byte {
	padding := aes.BlockSize - len(data)%aes.BlockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

// pkcs7Unpad はPKCS#7パディングを検証して取り除く。パディング長と
// 全パディングバイトの値が一致しない場合はエラーを返す。
func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, ErrInvalidBlockSize
	}

	padding := int(data[len(data)-1])
	if padding == 0 || padding > aes.BlockSize {
		return nil, fmt.Errorf("%w: padding length %d", ErrInvalidPadding, padding)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-padding], nil
}
