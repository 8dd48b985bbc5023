// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"patient-data-service/internal/domain"
)

// FieldCipher は保護対象フィールドの暗号化/復号のインターフェース。
type FieldCipher interface {
	EncryptFields(record map[string]any, fields []string) (map[string]any, error)
	DecryptFields(record map[string]any, fields []string) map[string]any
}

// PatientRepository は患者データアクセスのインターフェース。
type PatientRepository interface {
	Create(ctx context.Context, patient *domain.Patient) error
	FindByID(ctx context.Context, id string) (*domain.Patient, error)
	FindAll(ctx context.Context) ([]*domain.Patient, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	UpdateMedicalHistory(ctx context.Context, id string, sealed string) error
}

// VisitRepository は診察記録データアクセスのインターフェース。
type VisitRepository interface {
	Create(ctx context.Context, visit *domain.Visit) error
	FindByID(ctx context.Context, id string) (*domain.Visit, error)
	FindAllByPatientID(ctx context.Context, patientID string) ([]*domain.Visit, error)
}

// BillRepository は請求データアクセスのインターフェース。
type BillRepository interface {
	Create(ctx context.Context, bill *domain.Bill) error
	FindByID(ctx context.Context, id string) (*domain.Bill, error)
	FindAllByPatientID(ctx context.Context, patientID string) ([]*domain.Bill, error)
}

// ReportRepository は検査レポートデータアクセスのインターフェース。
type ReportRepository interface {
	Create(ctx context.Context, report *domain.Report) error
	FindByID(ctx context.Context, id string) (*domain.Report, error)
	FindAllByPatientID(ctx context.Context, patientID string) ([]*domain.Report, error)
}

// RecordService は診療レコードの作成・参照に関するビジネスロジックを提供する。
// 保護対象フィールドは保存前に暗号化し、参照時に復号する。書き込みの都度、
// レコード内容のハッシュを台帳に追記する。
type RecordService struct {
	cipher   FieldCipher
	patients PatientRepository
	visits   VisitRepository
	bills    BillRepository
	reports  ReportRepository
	anchors  AnchorRepository

	// 台帳への追記を直列化する。チェーンの末尾取得と追記の間に別の
	// 書き込みが入ると連鎖が分岐するため。
	anchorMu sync.Mutex
}

// NewRecordService は新しいRecordServiceを生成する。
func NewRecordService(
	cipher FieldCipher,
	patients PatientRepository,
	visits VisitRepository,
	bills BillRepository,
	reports ReportRepository,
	anchors AnchorRepository,
) *RecordService {
	return &RecordService{
		cipher:   cipher,
		patients: patients,
		visits:   visits,
		bills:    bills,
		reports:  reports,
		anchors:  anchors,
	}
}

// CreatePatient は新しい患者を登録する。
func (s *RecordService) CreatePatient(ctx context.Context, patient *domain.Patient) (*domain.Patient, error) {
	// 台帳に記録する平文の内容
	payload := patientPayload(patient)

	// 保護対象フィールドを暗号化して保存
	sealed, err := s.cipher.EncryptFields(payload, domain.RecordKindPatientInfo.ProtectedFields())
	if err != nil {
		return nil, fmt.Errorf("sealing patient fields: %w", err)
	}
	stored := *patient
	stored.MedicalHistory = stringField(sealed, "medical_history")
	if err := s.patients.Create(ctx, &stored); err != nil {
		return nil, fmt.Errorf("creating patient: %w", err)
	}

	// 台帳に追記
	if err := s.appendAnchor(ctx, stored.ID, domain.RecordKindPatientInfo, stored.ID, payload); err != nil {
		return nil, err
	}

	patient.ID = stored.ID
	patient.CreatedAt = stored.CreatedAt
	patient.UpdatedAt = stored.UpdatedAt
	return patient, nil
}

// GetPatient は指定された患者を取得する。既往歴は復号して返す。
func (s *RecordService) GetPatient(ctx context.Context, id string) (*domain.Patient, error) {
	patient, err := s.patients.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding patient: %w", err)
	}
	if patient == nil {
		return nil, domain.ErrPatientNotFound
	}

	s.openPatient(patient)
	return patient, nil
}

// ListPatients は患者の一覧を取得する。一覧では既往歴を返さない。
func (s *RecordService) ListPatients(ctx context.Context) ([]*domain.Patient, error) {
	patients, err := s.patients.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding patients: %w", err)
	}

	for _, p := range patients {
		p.MedicalHistory = ""
	}
	return patients, nil
}

// UpdateMedicalHistory は指定された患者の既往歴を更新する。
func (s *RecordService) UpdateMedicalHistory(ctx context.Context, patientID string, history string) (*domain.Patient, error) {
	patient, err := s.patients.FindByID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("finding patient: %w", err)
	}
	if patient == nil {
		return nil, domain.ErrPatientNotFound
	}

	// 更新後の内容で台帳用のレコードを作る
	patient.MedicalHistory = history
	payload := patientPayload(patient)

	sealed, err := s.cipher.EncryptFields(payload, domain.RecordKindPatientInfo.ProtectedFields())
	if err != nil {
		return nil, fmt.Errorf("sealing patient fields: %w", err)
	}
	if err := s.patients.UpdateMedicalHistory(ctx, patientID, stringField(sealed, "medical_history")); err != nil {
		return nil, fmt.Errorf("updating medical history: %w", err)
	}

	if err := s.appendAnchor(ctx, patientID, domain.RecordKindPatientInfo, patientID, payload); err != nil {
		return nil, err
	}

	return patient, nil
}

// AddVisit は指定された患者に診察記録を追加する。
func (s *RecordService) AddVisit(ctx context.Context, visit *domain.Visit) (*domain.Visit, error) {
	if err := s.ensurePatient(ctx, visit.PatientID); err != nil {
		return nil, err
	}

	payload := visitPayload(visit)
	sealed, err := s.cipher.EncryptFields(payload, domain.RecordKindVisit.ProtectedFields())
	if err != nil {
		return nil, fmt.Errorf("sealing visit fields: %w", err)
	}
	stored := *visit
	stored.Diagnosis = stringField(sealed, "diagnosis")
	stored.Prescriptions = stringField(sealed, "prescriptions")
	if err := s.visits.Create(ctx, &stored); err != nil {
		return nil, fmt.Errorf("creating visit: %w", err)
	}

	if err := s.appendAnchor(ctx, visit.PatientID, domain.RecordKindVisit, stored.ID, payload); err != nil {
		return nil, err
	}

	visit.ID = stored.ID
	visit.CreatedAt = stored.CreatedAt
	return visit, nil
}

// ListVisits は指定された患者の診察記録を取得する。
func (s *RecordService) ListVisits(ctx context.Context, patientID string) ([]*domain.Visit, error) {
	if err := s.ensurePatient(ctx, patientID); err != nil {
		return nil, err
	}

	visits, err := s.visits.FindAllByPatientID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("finding visits: %w", err)
	}

	for _, v := range visits {
		s.openVisit(v)
	}
	return visits, nil
}

// AddBill は指定された患者に請求を追加する。ステータス未指定の場合は未払いになる。
func (s *RecordService) AddBill(ctx context.Context, bill *domain.Bill) (*domain.Bill, error) {
	if err := s.ensurePatient(ctx, bill.PatientID); err != nil {
		return nil, err
	}
	if bill.Status == "" {
		bill.Status = domain.BillStatusUnpaid
	}

	payload := billPayload(bill)
	sealed, err := s.cipher.EncryptFields(payload, domain.RecordKindBill.ProtectedFields())
	if err != nil {
		return nil, fmt.Errorf("sealing bill fields: %w", err)
	}
	stored := *bill
	stored.Details = stringField(sealed, "details")
	if err := s.bills.Create(ctx, &stored); err != nil {
		return nil, fmt.Errorf("creating bill: %w", err)
	}

	if err := s.appendAnchor(ctx, bill.PatientID, domain.RecordKindBill, stored.ID, payload); err != nil {
		return nil, err
	}

	bill.ID = stored.ID
	bill.CreatedAt = stored.CreatedAt
	return bill, nil
}

// ListBills は指定された患者の請求を取得する。
func (s *RecordService) ListBills(ctx context.Context, patientID string) ([]*domain.Bill, error) {
	if err := s.ensurePatient(ctx, patientID); err != nil {
		return nil, err
	}

	bills, err := s.bills.FindAllByPatientID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("finding bills: %w", err)
	}

	for _, b := range bills {
		s.openBill(b)
	}
	return bills, nil
}

// AddReport は指定された患者に検査レポートを追加する。ステータス未指定の
// 場合は処理待ちになる。
func (s *RecordService) AddReport(ctx context.Context, report *domain.Report) (*domain.Report, error) {
	if err := s.ensurePatient(ctx, report.PatientID); err != nil {
		return nil, err
	}
	if report.Status == "" {
		report.Status = domain.ReportStatusPending
	}

	payload := reportPayload(report)
	sealed, err := s.cipher.EncryptFields(payload, domain.RecordKindReport.ProtectedFields())
	if err != nil {
		return nil, fmt.Errorf("sealing report fields: %w", err)
	}
	stored := *report
	stored.Summary = stringField(sealed, "summary")
	stored.Findings = stringField(sealed, "findings")
	if err := s.reports.Create(ctx, &stored); err != nil {
		return nil, fmt.Errorf("creating report: %w", err)
	}

	if err := s.appendAnchor(ctx, report.PatientID, domain.RecordKindReport, stored.ID, payload); err != nil {
		return nil, err
	}

	report.ID = stored.ID
	report.CreatedAt = stored.CreatedAt
	return report, nil
}

// ListReports は指定された患者の検査レポートを取得する。
func (s *RecordService) ListReports(ctx context.Context, patientID string) ([]*domain.Report, error) {
	if err := s.ensurePatient(ctx, patientID); err != nil {
		return nil, err
	}

	reports, err := s.reports.FindAllByPatientID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("finding reports: %w", err)
	}

	for _, r := range reports {
		s.openReport(r)
	}
	return reports, nil
}

// RecordPayload は指定されたレコードの現在の内容を台帳と同じレコードマップ
// 形式で取得する。台帳検証に使う。
func (s *RecordService) RecordPayload(ctx context.Context, patientID string, kind domain.RecordKind, recordID string) (map[string]any, error) {
	switch kind {
	case domain.RecordKindPatientInfo:
		patient, err := s.patients.FindByID(ctx, recordID)
		if err != nil {
			return nil, fmt.Errorf("finding patient: %w", err)
		}
		if patient == nil || patient.ID != patientID {
			return nil, domain.ErrRecordNotFound
		}
		s.openPatient(patient)
		return patientPayload(patient), nil
	case domain.RecordKindVisit:
		visit, err := s.visits.FindByID(ctx, recordID)
		if err != nil {
			return nil, fmt.Errorf("finding visit: %w", err)
		}
		if visit == nil || visit.PatientID != patientID {
			return nil, domain.ErrRecordNotFound
		}
		s.openVisit(visit)
		return visitPayload(visit), nil
	case domain.RecordKindBill:
		bill, err := s.bills.FindByID(ctx, recordID)
		if err != nil {
			return nil, fmt.Errorf("finding bill: %w", err)
		}
		if bill == nil || bill.PatientID != patientID {
			return nil, domain.ErrRecordNotFound
		}
		s.openBill(bill)
		return billPayload(bill), nil
	case domain.RecordKindReport:
		report, err := s.reports.FindByID(ctx, recordID)
		if err != nil {
			return nil, fmt.Errorf("finding report: %w", err)
		}
		if report == nil || report.PatientID != patientID {
			return nil, domain.ErrRecordNotFound
		}
		s.openReport(report)
		return reportPayload(report), nil
	default:
		return nil, domain.ErrInvalidRecordKind
	}
}

// ensurePatient は患者の存在を確認する。
func (s *RecordService) ensurePatient(ctx context.Context, patientID string) error {
	exists, err := s.patients.ExistsByID(ctx, patientID)
	if err != nil {
		return fmt.Errorf("checking patient: %w", err)
	}
	if !exists {
		return domain.ErrPatientNotFound
	}
	return nil
}

// appendAnchor はレコード内容のハッシュをチェーン末尾に追記する。
func (s *RecordService) appendAnchor(ctx context.Context, patientID string, kind domain.RecordKind, recordID string, payload map[string]any) error {
	s.anchorMu.Lock()
	defer s.anchorMu.Unlock()

	latest, err := s.anchors.FindLatest(ctx)
	if err != nil {
		return fmt.Errorf("finding chain tail: %w", err)
	}
	anchor := domain.NewRecordAnchor(latest, patientID, kind, recordID, payload)
	if err := s.anchors.Create(ctx, anchor); err != nil {
		return fmt.Errorf("appending anchor: %w", err)
	}
	return nil
}

func (s *RecordService) openPatient(p *domain.Patient) {
	opened := s.cipher.DecryptFields(map[string]any{
		"medical_history": p.MedicalHistory,
	}, domain.RecordKindPatientInfo.ProtectedFields())
	p.MedicalHistory = stringField(opened, "medical_history")
}

func (s *RecordService) openVisit(v *domain.Visit) {
	opened := s.cipher.DecryptFields(map[string]any{
		"diagnosis":     v.Diagnosis,
		"prescriptions": v.Prescriptions,
	}, domain.RecordKindVisit.ProtectedFields())
	v.Diagnosis = stringField(opened, "diagnosis")
	v.Prescriptions = stringField(opened, "prescriptions")
}

func (s *RecordService) openBill(b *domain.Bill) {
	opened := s.cipher.DecryptFields(map[string]any{
		"details": b.Details,
	}, domain.RecordKindBill.ProtectedFields())
	b.Details = stringField(opened, "details")
}

func (s *RecordService) openReport(r *domain.Report) {
	opened := s.cipher.DecryptFields(map[string]any{
		"summary":  r.Summary,
		"findings": r.Findings,
	}, domain.RecordKindReport.ProtectedFields())
	r.Summary = stringField(opened, "summary")
	r.Findings = stringField(opened, "findings")
}

// patientPayload は台帳に記録する患者レコードマップを作る。IDとタイム
// スタンプはハッシュに含めない。
func patientPayload(p *domain.Patient) map[string]any {
	return map[string]any{
		"name":              p.Name,
		"date_of_birth":     dateString(p.DateOfBirth),
		"gender":            p.Gender,
		"blood_group":       p.BloodGroup,
		"allergies":         p.Allergies,
		"emergency_contact": p.EmergencyContact,
		"medical_history":   p.MedicalHistory,
	}
}

// visitPayload は台帳に記録する診察レコードマップを作る。
func visitPayload(v *domain.Visit) map[string]any {
	return map[string]any{
		"patient_id":    v.PatientID,
		"visit_date":    dateString(v.VisitDate),
		"doctor_name":   v.DoctorName,
		"department":    v.Department,
		"notes":         v.Notes,
		"diagnosis":     v.Diagnosis,
		"prescriptions": v.Prescriptions,
	}
}

// billPayload は台帳に記録する請求レコードマップを作る。
func billPayload(b *domain.Bill) map[string]any {
	return map[string]any{
		"patient_id":   b.PatientID,
		"amount":       b.Amount,
		"description":  b.Description,
		"status":       string(b.Status),
		"due_date":     dateString(b.DueDate),
		"payment_date": dateString(b.PaymentDate),
		"details":      b.Details,
	}
}

// reportPayload は台帳に記録する検査レポートのレコードマップを作る。
func reportPayload(r *domain.Report) map[string]any {
	return map[string]any{
		"patient_id":   r.PatientID,
		"report_type":  r.ReportType,
		"report_date":  dateString(r.ReportDate),
		"ordered_by":   r.OrderedBy,
		"performed_by": r.PerformedBy,
		"status":       string(r.Status),
		"file_path":    r.FilePath,
		"summary":      r.Summary,
		"findings":     r.Findings,
	}
}

// stringField はレコードマップから文字列値を取り出す。
func stringField(record map[string]any, field string) string {
	if v, ok := record[field].(string); ok {
		return v
	}
	return ""
}

// dateString は日付をYYYY-MM-DD形式にする。ゼロ値は空文字列。
func dateString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
