// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// WriteAuditLog は監査ログを出力する。診療データへのアクセスは操作・患者ID・
// レコード種別・結果をすべて記録する。
func WriteAuditLog(ctx context.Context, operation string, patientID string, kind string, result string) {
	slog.InfoContext(ctx, "record operation completed",
		"operation", operation,
		"patient_id", patientID,
		"kind", kind,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
}
