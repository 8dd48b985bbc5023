package domain

import "errors"

var (
	// ErrPatientNotFound は指定された患者が存在しない場合のエラー。
	ErrPatientNotFound = errors.New("patient not found")

	// ErrRecordNotFound は指定された診療レコードが存在しない場合のエラー。
	ErrRecordNotFound = errors.New("record not found")

	// ErrAnchorNotFound は指定されたレコードのアンカーが存在しない場合のエラー。
	ErrAnchorNotFound = errors.New("anchor not found")

	// ErrAnchorMismatch は現在のレコードのハッシュがアンカーと一致しない場合のエラー。
	ErrAnchorMismatch = errors.New("record hash does not match anchor")

	// ErrChainBroken はアンカーチェーンの連鎖検証に失敗した場合のエラー。
	ErrChainBroken = errors.New("anchor chain broken")

	// ErrInvalidPatientID は患者IDの形式が不正な場合のエラー。
	ErrInvalidPatientID = errors.New("invalid patient ID")

	// ErrInvalidRecordKind はレコード種別が不正な場合のエラー。
	ErrInvalidRecordKind = errors.New("invalid record kind")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)
