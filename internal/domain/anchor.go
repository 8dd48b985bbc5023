package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// GenesisHash はチェーン先頭のアンカーが前エントリとして参照するハッシュ。
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// RecordAnchor は診療レコードのハッシュを連鎖させる台帳エントリを表す。
// 一度追記されたアンカーは変更も削除もされない。
type RecordAnchor struct {
	Seq       uint64
	PatientID string
	Kind      RecordKind
	RecordID  string
	DataHash  string
	PrevHash  string
	EntryHash string
	CreatedAt time.Time
}

// HashRecord はレコードマップの正規化JSON(キー昇順、値は文字列化)の
// SHA-256を小文字16進で返す。同じ内容のマップは常に同じハッシュになる。
func HashRecord(record map[string]any) string {
	canonical := make(map[string]string, len(record))
	for k, v := range record {
		canonical[k] = fmt.Sprint(v)
	}
	raw, _ := json.Marshal(canonical) // mapはキー昇順で出力される
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// EntryHash は前エントリハッシュ・データハッシュ・種別・レコードIDを
// この順に連結したSHA-256を小文字16進で返す。
func EntryHash(prevHash, dataHash string, kind RecordKind, recordID string) string {
	sum := sha256.Sum256([]byte(prevHash + dataHash + string(kind) + recordID))
	return hex.EncodeToString(sum[:])
}

// NewRecordAnchor は前アンカーに連鎖する新しいアンカーを作る。prevがnilの
// 場合はチェーン先頭としてGenesisHashに連鎖する。
func NewRecordAnchor(prev *RecordAnchor, patientID string, kind RecordKind, recordID string, payload map[string]any) *RecordAnchor {
	prevHash := GenesisHash
	if prev != nil {
		prevHash = prev.EntryHash
	}
	dataHash := HashRecord(payload)
	return &RecordAnchor{
		PatientID: patientID,
		Kind:      kind,
		RecordID:  recordID,
		DataHash:  dataHash,
		PrevHash:  prevHash,
		EntryHash: EntryHash(prevHash, dataHash, kind, recordID),
	}
}
