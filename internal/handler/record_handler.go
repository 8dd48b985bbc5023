// Package handler はHTTPハンドラを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"patient-data-service/internal/domain"
	"patient-data-service/internal/middleware"
	"patient-data-service/internal/usecase"
	"patient-data-service/pkg/httputil"
)

const dateLayout = "2006-01-02"

// RecordHandler は患者と診療レコードのHTTPハンドラを提供する。
type RecordHandler struct {
	service *usecase.RecordService
}

// NewRecordHandler は新しいRecordHandlerを生成する。
func NewRecordHandler(service *usecase.RecordService) *RecordHandler {
	return &RecordHandler{service: service}
}

func validatePatientID(patientID string) error {
	if _, err := uuid.Parse(patientID); err != nil {
		return domain.ErrInvalidPatientID
	}
	return nil
}

func parseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, value)
}

func parseOptionalDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, value)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// PatientRequest は患者登録のリクエスト形式。
type PatientRequest struct {
	Name             string `json:"name"`
	DateOfBirth      string `json:"date_of_birth"`
	Gender           string `json:"gender"`
	BloodGroup       string `json:"blood_group"`
	Allergies        string `json:"allergies"`
	EmergencyContact string `json:"emergency_contact"`
	MedicalHistory   string `json:"medical_history"`
}

// PatientResponse は患者のレスポンス形式。
type PatientResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	DateOfBirth      string `json:"date_of_birth"`
	Gender           string `json:"gender,omitempty"`
	BloodGroup       string `json:"blood_group,omitempty"`
	Allergies        string `json:"allergies,omitempty"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
	MedicalHistory   string `json:"medical_history,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// PatientListResponse は患者一覧のレスポンス形式。
type PatientListResponse struct {
	Patients []PatientResponse `json:"patients"`
}

// MedicalHistoryRequest は既往歴更新のリクエスト形式。
type MedicalHistoryRequest struct {
	MedicalHistory string `json:"medical_history"`
}

// VisitRequest は診察記録のリクエスト形式。
type VisitRequest struct {
	VisitDate     string `json:"visit_date"`
	DoctorName    string `json:"doctor_name"`
	Department    string `json:"department"`
	Notes         string `json:"notes"`
	Diagnosis     string `json:"diagnosis"`
	Prescriptions string `json:"prescriptions"`
}

// VisitResponse は診察記録のレスポンス形式。
type VisitResponse struct {
	ID            string `json:"id"`
	PatientID     string `json:"patient_id"`
	VisitDate     string `json:"visit_date"`
	DoctorName    string `json:"doctor_name"`
	Department    string `json:"department,omitempty"`
	Notes         string `json:"notes,omitempty"`
	Diagnosis     string `json:"diagnosis,omitempty"`
	Prescriptions string `json:"prescriptions,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// VisitListResponse は診察記録一覧のレスポンス形式。
type VisitListResponse struct {
	Visits []VisitResponse `json:"visits"`
}

// BillRequest は請求のリクエスト形式。
type BillRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	DueDate     string  `json:"due_date"`
	PaymentDate string  `json:"payment_date"`
	Details     string  `json:"details"`
}

// BillResponse は請求のレスポンス形式。
type BillResponse struct {
	ID          string  `json:"id"`
	PatientID   string  `json:"patient_id"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status"`
	DueDate     string  `json:"due_date,omitempty"`
	PaymentDate string  `json:"payment_date,omitempty"`
	Details     string  `json:"details,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// BillListResponse は請求一覧のレスポンス形式。
type BillListResponse struct {
	Bills []BillResponse `json:"bills"`
}

// ReportRequest は検査レポートのリクエスト形式。
type ReportRequest struct {
	ReportType  string `json:"report_type"`
	ReportDate  string `json:"report_date"`
	OrderedBy   string `json:"ordered_by"`
	PerformedBy string `json:"performed_by"`
	Status      string `json:"status"`
	FilePath    string `json:"file_path"`
	Summary     string `json:"summary"`
	Findings    string `json:"findings"`
}

// ReportResponse は検査レポートのレスポンス形式。
type ReportResponse struct {
	ID          string `json:"id"`
	PatientID   string `json:"patient_id"`
	ReportType  string `json:"report_type"`
	ReportDate  string `json:"report_date"`
	OrderedBy   string `json:"ordered_by,omitempty"`
	PerformedBy string `json:"performed_by,omitempty"`
	Status      string `json:"status"`
	FilePath    string `json:"file_path,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Findings    string `json:"findings,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// ReportListResponse は検査レポート一覧のレスポンス形式。
type ReportListResponse struct {
	Reports []ReportResponse `json:"reports"`
}

func toPatientResponse(p *domain.Patient) PatientResponse {
	return PatientResponse{
		ID:               p.ID,
		Name:             p.Name,
		DateOfBirth:      formatDate(p.DateOfBirth),
		Gender:           p.Gender,
		BloodGroup:       p.BloodGroup,
		Allergies:        p.Allergies,
		EmergencyContact: p.EmergencyContact,
		MedicalHistory:   p.MedicalHistory,
		CreatedAt:        p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        p.UpdatedAt.Format(time.RFC3339),
	}
}

func toVisitResponse(v *domain.Visit) VisitResponse {
	return VisitResponse{
		ID:            v.ID,
		PatientID:     v.PatientID,
		VisitDate:     formatDate(v.VisitDate),
		DoctorName:    v.DoctorName,
		Department:    v.Department,
		Notes:         v.Notes,
		Diagnosis:     v.Diagnosis,
		Prescriptions: v.Prescriptions,
		CreatedAt:     v.CreatedAt.Format(time.RFC3339),
	}
}

func toBillResponse(b *domain.Bill) BillResponse {
	return BillResponse{
		ID:          b.ID,
		PatientID:   b.PatientID,
		Amount:      b.Amount,
		Description: b.Description,
		Status:      string(b.Status),
		DueDate:     formatDate(b.DueDate),
		PaymentDate: formatDate(b.PaymentDate),
		Details:     b.Details,
		CreatedAt:   b.CreatedAt.Format(time.RFC3339),
	}
}

func toReportResponse(r *domain.Report) ReportResponse {
	return ReportResponse{
		ID:          r.ID,
		PatientID:   r.PatientID,
		ReportType:  r.ReportType,
		ReportDate:  formatDate(r.ReportDate),
		OrderedBy:   r.OrderedBy,
		PerformedBy: r.PerformedBy,
		Status:      string(r.Status),
		FilePath:    r.FilePath,
		Summary:     r.Summary,
		Findings:    r.Findings,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
}

// CreatePatient は新しい患者を登録する。
func (h *RecordHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req PatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > 100 {
		httputil.Error(w, http.StatusBadRequest, "INVALID_NAME", "name is required and must be at most 100 characters")
		return
	}
	dateOfBirth, err := parseDate(req.DateOfBirth)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_DATE", "date_of_birth must be in YYYY-MM-DD format")
		return
	}

	patient := &domain.Patient{
		Name:             req.Name,
		DateOfBirth:      dateOfBirth,
		Gender:           req.Gender,
		BloodGroup:       req.BloodGroup,
		Allergies:        req.Allergies,
		EmergencyContact: req.EmergencyContact,
		MedicalHistory:   req.MedicalHistory,
	}
	created, err := h.service.CreatePatient(r.Context(), patient)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "CREATE_PATIENT", "", string(domain.RecordKindPatientInfo), "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "CREATE_PATIENT", created.ID, string(domain.RecordKindPatientInfo), "SUCCESS")
	httputil.JSON(w, http.StatusCreated, toPatientResponse(created))
}

// ListPatients は患者一覧を取得する。
func (h *RecordHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.service.ListPatients(r.Context())
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "LIST_PATIENTS", "", string(domain.RecordKindPatientInfo), "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "LIST_PATIENTS", "", string(domain.RecordKindPatientInfo), "SUCCESS")
	response := PatientListResponse{
		Patients: make([]PatientResponse, len(patients)),
	}
	for i, p := range patients {
		response.Patients[i] = toPatientResponse(p)
	}
	httputil.JSON(w, http.StatusOK, response)
}

// GetPatient は指定された患者を取得する。
func (h *RecordHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patient_id")
	if err := validatePatientID(patientID); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_PATIENT_ID", "invalid patient ID format")
		return
	}

	patient, err := h.service.GetPatient(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, domain.ErrPatientNotFound) {
			middleware.WriteAuditLog(r.Context(), "GET_PATIENT", patientID, string(domain.RecordKindPatientInfo), "FAILED")
			httputil.Error(w, http.StatusNotFound, "PATIENT_NOT_FOUND", "patient not found")
			return
		}
		middleware.WriteAuditLog(r.Context(), "GET_PATIENT", patientID, string(domain.RecordKindPatientInfo), "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "GET_PATIENT", patientID, string(domain.RecordKindPatientInfo), "SUCCESS")
	httputil.JSON(w, http.StatusOK, toPatientResponse(patient))
}

// UpdateMedicalHistory は指定された患者の既往歴を更新する。
func (h *RecordHandler) UpdateMedicalHistory(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patient_id")
	if err := validatePatientID(patientID); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_PATIENT_ID", "invalid patient ID format")
		return
	}

	var req MedicalHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	patient, err := h.service.UpdateMedicalHistory(r.Context(), patientID, req.MedicalHistory)
	if err != nil {
		if errors.Is(err, domain.ErrPatientNotFound) {
			middleware.WriteAuditLog(r.Context(), "UPDATE_MEDICAL_HISTORY", patientID, string(domain.RecordKindPatientInfo), "FAILED")
			httputil.Error(w, http.StatusNotFound, "PATIENT_NOT_FOUND", "patient not found")
			return
		}
		middleware.WriteAuditLog(r.Context(), "UPDATE_MEDICAL_HISTORY", patientID, string(domain.RecordKindPatientInfo), "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "UPDATE_MEDICAL_HISTORY", patientID, string(domain.RecordKindPatientInfo), "SUCCESS")
	httputil.JSON(w, http.StatusOK, toPatientResponse(patient))
}

// AddVisit は指定された患者に診察記録を追加する。
func (h *RecordHandler) AddVisit(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patient_id")
	if err := validatePatientID(patientID); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_PATIENT_ID", "invalid patient ID format")
		return
	}

	var req VisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	visitDate, err := parseDate(req.VisitDate)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_DATE", "visit_date must be in YYYY-MM-DD format")
		return
	}
	if strings.TrimSpace(req.DoctorName) == "" {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "doctor_name is required")
		return
	}

	visit := &domain.Visit{
		PatientID:     patientID,
		VisitDate:     visitDate,
		DoctorName:    req.DoctorName,
		Department:    req.Department,
		Notes:         req.Notes,
		Diagnosis:     req.Diagnosis,
		Prescriptions: req.Prescriptions,
	}
	created, err := h.service.AddVisit(r.Context(), visit)
	if err != nil {
		if errors.Is(err, domain.ErrPatientNotFound) {
			middleware.WriteAuditLog(r.Context(), "ADD_VISIT", patientID, string(domain.RecordKindVisit), "FAILED")
			httputil.Error(w, http.StatusNotFound, "PATIENT_NOT_FOUND", "patient not found")
			return
		}
		middleware.WriteAuditLog(r.Context(), "ADD_VISIT", patientID, string(domain.RecordKindVisit), "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "ADD_VISIT", patientID, string(domain.RecordKindVisit), "SUCCESS")
	httputil.JSON(w, http.StatusCreated, toVisitResponse(created))
}

// ListVisits は指定された患者の診察記録一覧を取得する。
func (h *RecordHandler) ListVisits(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patient_id")
	if err := validatePatientID(patientID); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_PATIENT_ID", "invalid patient ID format")
		return
	}

	visits, err := h.service.ListVisits(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, domain.ErrPatientNotFound) {
			middleware.WriteAuditLog(r.Context(), "LIST_VISITS", patientID, string(domain.RecordKindVisit), "FAILED")
			httputil.Error(w, http.StatusNotFound, "PATIENT_NOT_FOUND", "patient not found")
			return
		}
		middleware.WriteAuditLog(r.Context(), "LIST_VISITS", patientID, string(domain.RecordKindVisit), "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "LIST_VISITS", patientID, string(domain.RecordKindVisit), "SUCCESS")
	response := VisitListResponse{
		Visits: make([]VisitResponse, len(visits)),
	}
	for i, v := range visits {
		response.Visits[i] = toVisitResponse(v)
	}
	httputil.JSON(w, http.StatusOK, response)
}

// AddBill は指定された患者に請求を追加する。
func (h *RecordHandler) AddBill(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patient_id")
	if err := validatePatientID(patientID); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_PATIENT_ID", "invalid patient ID format")
		return
	}

	var req BillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	if req.Amount <= 0 {
		httputil.Error(w, http.StatusBadRequest, "INVALID_AMOUNT", "amount must be greater than zero")
		return
	}
	switch domain.BillStatus(req.Status) {
	case "", domain.BillStatusUnpaid, domain.BillStatusPaid:
	default:
		httputil.Error(w, http.StatusBadRequest, "INVALID_STATUS", "status must be unpaid or paid")
		return
	}
	dueDate, err := parseOptionalDate(req.DueDate)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_DATE", "due_date must be in YYYY-MM-DD format")
		return
	}
	paymentDate, err := parseOptionalDate(req.PaymentDate)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_DATE", "payment_date must be in YYYY-MM-DD format")
		return
	}

	bill := &domain.Bill{
		PatientID:   patientID,
		Amount:      req.Amount,
		Description: req.Description,
		Status:      domain.BillStatus(req.Status),
		DueDate:     dueDate,
		PaymentDate: paymentDate,
		Details:     req.Details,
	}
	created, err := h.service.AddBill(r.Context(), bill)
	if err != nil {
		if errors.Is(err, domain.ErrPatientNotFound) {
			middleware.WriteAuditLog(r.Context(), "ADD_BILL", patientID, string(domain.RecordKindBill), "FAILED")
			httputil.Error(w, http.StatusNotFound, "PATIENT_NOT_FOUND", "patient not found")
			return
		}
		middleware.WriteAuditLog(r.Context(), "ADD_BILL", patientID, string(domain.RecordKindBill), "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "ADD_BILL", patientID, string(domain.RecordKindBill), "SUCCESS")
	httputil.JSON(w, http.StatusCreated, toBillResponse(created))
}

// ListBills は指定された患者の請求一覧を取得する。
func (h *RecordHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patient_id")
	if err := validatePatientID(patientID); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_PATIENT_ID", "invalid patient ID format")
		return
	}

	bills, err := h.service.ListBills(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, domain.ErrPatientNotFound) {
			middleware.WriteAuditLog(r.Context(), "LIST_BILLS", patientID, string(domain.RecordKindBill), "FAILED")
			httputil.Error(w, http.StatusNotFound, "PATIENT_NOT_FOUND", "patient not found")
			return
		}
		middleware.WriteAuditLog(r.Context(), "LIST_BILLS", patientID, string(domain.RecordKindBill), "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "LIST_BILLS", patientID, string(domain.RecordKindBill), "SUCCESS")
	response := BillListResponse{
		Bills: make([]BillResponse, len(bills)),
	}
	for i, b := range bills {
		response.Bills[i] = toBillResponse(b)
	}
	httputil.JSON(w, http.StatusOK, response)
}

// AddReport は指定された患者に検査レポートを追加する。
func (h *RecordHandler) AddReport(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patient_id")
	if err := validatePatientID(patientID); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_PATIENT_ID", "invalid patient ID format")
		return
	}

	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	if strings.TrimSpace(req.ReportType) == "" {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "report_type is required")
		return
	}
	reportDate, err := parseDate(req.ReportDate)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_DATE", "report_date must be in YYYY-MM-DD format")
		return
	}
	switch domain.ReportStatus(req.Status) {
	case "", domain.ReportStatusPending, domain.ReportStatusCompleted:
	default:
		httputil.Error(w, http.StatusBadRequest, "INVALID_STATUS", "status must be pending or completed")
		return
	}

	report := &domain.Report{
		PatientID:   patientID,
		ReportType:  req.ReportType,
		ReportDate:  reportDate,
		OrderedBy:   req.OrderedBy,
		PerformedBy: req.PerformedBy,
		Status:      domain.ReportStatus(req.Status),
		FilePath:    req.FilePath,
		Summary:     req.Summary,
		Findings:    req.Findings,
	}
	created, err := h.service.AddReport(r.Context(), report)
	if err != nil {
		if errors.Is(err, domain.ErrPatientNotFound) {
			middleware.WriteAuditLog(r.Context(), "ADD_REPORT", patientID, string(domain.RecordKindReport), "FAILED")
			httputil.Error(w, http.StatusNotFound, "PATIENT_NOT_FOUND", "patient not found")
			return
		}
		middleware.WriteAuditLog(r.Context(), "ADD_REPORT", patientID, string(domain.RecordKindReport), "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "ADD_REPORT", patientID, string(domain.RecordKindReport), "SUCCESS")
	httputil.JSON(w, http.StatusCreated, toReportResponse(created))
}

// ListReports は指定された患者の検査レポート一覧を取得する。
func (h *RecordHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patient_id")
	if err := validatePatientID(patientID); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_PATIENT_ID", "invalid patient ID format")
		return
	}

	reports, err := h.service.ListReports(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, domain.ErrPatientNotFound) {
			middleware.WriteAuditLog(r.Context(), "LIST_REPORTS", patientID, string(domain.RecordKindReport), "FAILED")
			httputil.Error(w, http.StatusNotFound, "PATIENT_NOT_FOUND", "patient not found")
			return
		}
		middleware.WriteAuditLog(r.Context(), "LIST_REPORTS", patientID, string(domain.RecordKindReport), "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "LIST_REPORTS", patientID, string(domain.RecordKindReport), "SUCCESS")
	response := ReportListResponse{
		Reports: make([]ReportResponse, len(reports)),
	}
	for i, rep := range reports {
		response.Reports[i] = toReportResponse(rep)
	}
	httputil.JSON(w, http.StatusOK, response)
}
