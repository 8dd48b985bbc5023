package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"patient-data-service/internal/domain"
)

// VisitModel はgorm用の診察記録モデル定義。診断と処方は封筒文字列のまま
// encrypted_*列に保存する。
type VisitModel struct {
	ID                     string    `gorm:"type:char(36);primaryKey"`
	PatientID              string    `gorm:"type:char(36);not null;index:idx_visits_patient"`
	VisitDate              time.Time `gorm:"type:date;not null"`
	DoctorName             string    `gorm:"type:varchar(100);not null"`
	Department             string    `gorm:"type:varchar(100)"`
	Notes                  string    `gorm:"type:text"`
	EncryptedDiagnosis     string    `gorm:"type:text"`
	EncryptedPrescriptions string    `gorm:"type:text"`
	CreatedAt              time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (VisitModel) TableName() string {
	return "visits"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (v *VisitModel) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}

func (v *VisitModel) toDomain() *domain.Visit {
	return &domain.Visit{
		ID:            v.ID,
		PatientID:     v.PatientID,
		VisitDate:     v.VisitDate,
		DoctorName:    v.DoctorName,
		Department:    v.Department,
		Notes:         v.Notes,
		Diagnosis:     v.EncryptedDiagnosis,
		Prescriptions: v.EncryptedPrescriptions,
		CreatedAt:     v.CreatedAt,
	}
}

// BillModel はgorm用の請求モデル定義。明細は封筒文字列のまま保存する。
type BillModel struct {
	ID               string     `gorm:"type:char(36);primaryKey"`
	PatientID        string     `gorm:"type:char(36);not null;index:idx_bills_patient"`
	Amount           float64    `gorm:"not null"`
	Description      string     `gorm:"type:varchar(500)"`
	Status           string     `gorm:"type:enum('unpaid','paid');not null;default:'unpaid'"`
	DueDate          *time.Time `gorm:"type:date"`
	PaymentDate      *time.Time `gorm:"type:date"`
	EncryptedDetails string     `gorm:"type:text"`
	CreatedAt        time.Time  `gorm:"type:datetime(6);not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (BillModel) TableName() string {
	return "bills"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (b *BillModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

func (b *BillModel) toDomain() *domain.Bill {
	return &domain.Bill{
		ID:          b.ID,
		PatientID:   b.PatientID,
		Amount:      b.Amount,
		Description: b.Description,
		Status:      domain.BillStatus(b.Status),
		DueDate:     timeVal(b.DueDate),
		PaymentDate: timeVal(b.PaymentDate),
		Details:     b.EncryptedDetails,
		CreatedAt:   b.CreatedAt,
	}
}

// ReportModel はgorm用の検査レポートモデル定義。所見と概要は封筒文字列の
// まま保存する。
type ReportModel struct {
	ID                string    `gorm:"type:char(36);primaryKey"`
	PatientID         string    `gorm:"type:char(36);not null;index:idx_reports_patient"`
	ReportType        string    `gorm:"type:varchar(50);not null"`
	ReportDate        time.Time `gorm:"type:date;not null"`
	OrderedBy         string    `gorm:"type:varchar(100)"`
	PerformedBy       string    `gorm:"type:varchar(100)"`
	Status            string    `gorm:"type:enum('pending','completed');not null;default:'pending'"`
	FilePath          string    `gorm:"type:varchar(255)"`
	EncryptedSummary  string    `gorm:"type:text"`
	EncryptedFindings string    `gorm:"type:text"`
	CreatedAt         time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (ReportModel) TableName() string {
	return "reports"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (r *ReportModel) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

func (r *ReportModel) toDomain() *domain.Report {
	return &domain.Report{
		ID:          r.ID,
		PatientID:   r.PatientID,
		ReportType:  r.ReportType,
		ReportDate:  r.ReportDate,
		OrderedBy:   r.OrderedBy,
		PerformedBy: r.PerformedBy,
		Status:      domain.ReportStatus(r.Status),
		FilePath:    r.FilePath,
		Summary:     r.EncryptedSummary,
		Findings:    r.EncryptedFindings,
		CreatedAt:   r.CreatedAt,
	}
}

// VisitRepository は診察記録のデータアクセスを提供する。
type VisitRepository struct {
	db *gorm.DB
}

// NewVisitRepository は新しいVisitRepositoryを生成する。
func NewVisitRepository(db *gorm.DB) *VisitRepository {
	return &VisitRepository{db: db}
}

// Create は新しい診察記録を保存する。
func (r *VisitRepository) Create(ctx context.Context, visit *domain.Visit) error {
	model := &VisitModel{
		ID:                     visit.ID,
		PatientID:              visit.PatientID,
		VisitDate:              visit.VisitDate,
		DoctorName:             visit.DoctorName,
		Department:             visit.Department,
		Notes:                  visit.Notes,
		EncryptedDiagnosis:     visit.Diagnosis,
		EncryptedPrescriptions: visit.Prescriptions,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create visit",
			"operation", "create_visit",
			"patient_id", visit.PatientID,
			"error", err,
		)
		return err
	}
	visit.ID = model.ID
	visit.CreatedAt = model.CreatedAt
	return nil
}

// FindByID は指定されたIDの診察記録を取得する。存在しない場合はnilを返す。
func (r *VisitRepository) FindByID(ctx context.Context, id string) (*domain.Visit, error) {
	var model VisitModel
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find visit",
			"operation", "find_visit_by_id",
			"visit_id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindAllByPatientID は指定された患者の診察記録を新しい順に取得する。
func (r *VisitRepository) FindAllByPatientID(ctx context.Context, patientID string) ([]*domain.Visit, error) {
	var models []VisitModel
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("visit_date DESC, created_at DESC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find visits",
			"operation", "find_visits_by_patient_id",
			"patient_id", patientID,
			"error", err,
		)
		return nil, err
	}

	visits := make([]*domain.Visit, len(models))
	for i, m := range models {
		visits[i] = m.toDomain()
	}
	return visits, nil
}

// BillRepository は請求のデータアクセスを提供する。
type BillRepository struct {
	db *gorm.DB
}

// NewBillRepository は新しいBillRepositoryを生成する。
func NewBillRepository(db *gorm.DB) *BillRepository {
	return &BillRepository{db: db}
}

// Create は新しい請求を保存する。
func (r *BillRepository) Create(ctx context.Context, bill *domain.Bill) error {
	model := &BillModel{
		ID:               bill.ID,
		PatientID:        bill.PatientID,
		Amount:           bill.Amount,
		Description:      bill.Description,
		Status:           string(bill.Status),
		DueDate:          timePtr(bill.DueDate),
		PaymentDate:      timePtr(bill.PaymentDate),
		EncryptedDetails: bill.Details,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create bill",
			"operation", "create_bill",
			"patient_id", bill.PatientID,
			"error", err,
		)
		return err
	}
	bill.ID = model.ID
	bill.CreatedAt = model.CreatedAt
	return nil
}

// FindByID は指定されたIDの請求を取得する。存在しない場合はnilを返す。
func (r *BillRepository) FindByID(ctx context.Context, id string) (*domain.Bill, error) {
	var model BillModel
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find bill",
			"operation", "find_bill_by_id",
			"bill_id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindAllByPatientID は指定された患者の請求を新しい順に取得する。
func (r *BillRepository) FindAllByPatientID(ctx context.Context, patientID string) ([]*domain.Bill, error) {
	var models []BillModel
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find bills",
			"operation", "find_bills_by_patient_id",
			"patient_id", patientID,
			"error", err,
		)
		return nil, err
	}

	bills := make([]*domain.Bill, len(models))
	for i, m := range models {
		bills[i] = m.toDomain()
	}
	return bills, nil
}

// ReportRepository は検査レポートのデータアクセスを提供する。
type ReportRepository struct {
	db *gorm.DB
}

// NewReportRepository は新しいReportRepositoryを生成する。
func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create は新しい検査レポートを保存する。
func (r *ReportRepository) Create(ctx context.Context, report *domain.Report) error {
	model := &ReportModel{
		ID:                report.ID,
		PatientID:         report.PatientID,
		ReportType:        report.ReportType,
		ReportDate:        report.ReportDate,
		OrderedBy:         report.OrderedBy,
		PerformedBy:       report.PerformedBy,
		Status:            string(report.Status),
		FilePath:          report.FilePath,
		EncryptedSummary:  report.Summary,
		EncryptedFindings: report.Findings,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create report",
			"operation", "create_report",
			"patient_id", report.PatientID,
			"error", err,
		)
		return err
	}
	report.ID = model.ID
	report.CreatedAt = model.CreatedAt
	return nil
}

// FindByID は指定されたIDの検査レポートを取得する。存在しない場合はnilを返す。
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*domain.Report, error) {
	var model ReportModel
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find report",
			"operation", "find_report_by_id",
			"report_id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindAllByPatientID は指定された患者の検査レポートを新しい順に取得する。
func (r *ReportRepository) FindAllByPatientID(ctx context.Context, patientID string) ([]*domain.Report, error) {
	var models []ReportModel
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("report_date DESC, created_at DESC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find reports",
			"operation", "find_reports_by_patient_id",
			"patient_id", patientID,
			"error", err,
		)
		return nil, err
	}

	reports := make([]*domain.Report, len(models))
	for i, m := range models {
		reports[i] = m.toDomain()
	}
	return reports, nil
}

// timePtr はゼロ値の時刻をNULLとして保存するためポインタに変換する。
func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeVal(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
