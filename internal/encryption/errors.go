package encryption

import "errors"

var (
	// ErrKeyLoad は鍵ペアの読み込み・生成に失敗した場合のエラー。
	ErrKeyLoad = errors.New("key load failed")

	// ErrEncrypt は暗号化処理に失敗した場合のエラー。
	ErrEncrypt = errors.New("encryption failed")

	// ErrDecrypt は復号処理に失敗した場合のエラー。
	ErrDecrypt = errors.New("decryption failed")

	// ErrInvalidEnvelope は封筒のフォーマットが不正な場合のエラー。
	ErrInvalidEnvelope = errors.New("invalid envelope")

	// ErrInvalidPadding はパディングが不正な場合のエラー。
	ErrInvalidPadding = errors.New("invalid padding")

	// ErrInvalidBlockSize は暗号文長がブロック長の倍数でない場合のエラー。
	ErrInvalidBlockSize = errors.New("ciphertext is not a multiple of block size")
)
