// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"patient-data-service/config"
	"patient-data-service/internal/encryption"
	"patient-data-service/internal/handler"
	"patient-data-service/internal/infra"
	"patient-data-service/internal/middleware"
	"patient-data-service/internal/repository"
	"patient-data-service/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
	cfg := config.Load()

	// ログレベル設定
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "DEBUG":
		logLevel = slog.LevelDebug
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg, logLevel)

	// DB初期化
	db, err := infra.NewDB(cfg)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}

	// SQLiteは起動時にスキーマを作成する。MySQLはportalctl migrateで
	// 適用済みであることを前提とする。
	if cfg.DBDriver == "sqlite" {
		if err := db.AutoMigrate(
			&repository.PatientModel{},
			&repository.VisitModel{},
			&repository.BillModel{},
			&repository.ReportModel{},
			&repository.RecordAnchorModel{},
		); err != nil {
			slog.Error("failed to migrate schema", "error", err)
			os.Exit(1)
		}
	}

	// 暗号化鍵の読み込み
	var keys *encryption.KeyStore
	if cfg.KeyAutoProvision {
		keys, err = encryption.LoadOrGenerate(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.RSAKeySize)
	} else {
		keys, err = encryption.LoadKeys(cfg.PrivateKeyPath, cfg.PublicKeyPath)
	}
	if err != nil {
		slog.Error("failed to load encryption keys", "error", err)
		os.Exit(1)
	}
	slog.Info("encryption keys ready", "fingerprint", keys.Fingerprint(), "bits", keys.Bits())

	// DI
	codec := encryption.NewFieldCodec(encryption.NewCipher(keys))
	patientRepo := repository.NewPatientRepository(db)
	visitRepo := repository.NewVisitRepository(db)
	billRepo := repository.NewBillRepository(db)
	reportRepo := repository.NewReportRepository(db)
	anchorRepo := repository.NewAnchorRepository(db)

	recordService := usecase.NewRecordService(codec, patientRepo, visitRepo, billRepo, reportRepo, anchorRepo)
	anchorService := usecase.NewAnchorService(anchorRepo, recordService)

	recordHandler := handler.NewRecordHandler(recordService)
	ledgerHandler := handler.NewLedgerHandler(anchorService)
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	router := handler.NewRouter(recordHandler, ledgerHandler, limiter)

	var root http.Handler = router
	if cfg.OtelEnabled {
		root = otelhttp.NewHandler(router, cfg.OtelServiceName)
	}

	// サーバー起動
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: root,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
