package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"patient-data-service/internal/middleware"
)

// NewRouter はルーターを生成する。
func NewRouter(rec *RecordHandler, led *LedgerHandler, limiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(limiter.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ルート定義
	r.Route("/v1", func(r chi.Router) {
		r.Route("/patients", func(r chi.Router) {
			r.Post("/", rec.CreatePatient)
			r.Get("/", rec.ListPatients)
			r.Route("/{patient_id}", func(r chi.Router) {
				r.Get("/", rec.GetPatient)
				r.Put("/medical-history", rec.UpdateMedicalHistory)
				r.Post("/visits", rec.AddVisit)
				r.Get("/visits", rec.ListVisits)
				r.Post("/bills", rec.AddBill)
				r.Get("/bills", rec.ListBills)
				r.Post("/reports", rec.AddReport)
				r.Get("/reports", rec.ListReports)
				r.Get("/ledger", led.ListAnchors)
				r.Post("/ledger/verify", led.VerifyRecord)
			})
		})
		r.Get("/ledger/integrity", led.ChainIntegrity)
	})

	return r
}
