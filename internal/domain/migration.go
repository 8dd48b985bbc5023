package domain

import "time"

// MigrationStatus はマイグレーションの適用状態を表す。
type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "pending"
	MigrationStatusApplied MigrationStatus = "applied"
)

// Migration はスキーママイグレーションひとつ分の状態を表す。
// Versionはファイル名の先頭の番号（例: "0001"）で、適用順序を決める。
type Migration struct {
	Version   string
	Name      string
	AppliedAt *time.Time // 未適用の場合はnil
	FilePath  string
	Status    MigrationStatus
}

// Applied はこのマイグレーションが適用済みかどうかを返す。
func (m *Migration) Applied() bool {
	return m.Status == MigrationStatusApplied
}
