// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import "time"

// RecordKind は台帳に記録する診療レコードの種別を表す。
type RecordKind string

const (
	// RecordKindPatientInfo は患者基本情報を表す。
	RecordKindPatientInfo RecordKind = "PATIENT_INFO"
	// RecordKindVisit は診察記録を表す。
	RecordKindVisit RecordKind = "VISIT"
	// RecordKindBill は請求情報を表す。
	RecordKindBill RecordKind = "BILL"
	// RecordKindReport は検査レポートを表す。
	RecordKindReport RecordKind = "REPORT"
)

// Valid はレコード種別が既知のものかどうかを返す。
func (k RecordKind) Valid() bool {
	switch k {
	case RecordKindPatientInfo, RecordKindVisit, RecordKindBill, RecordKindReport:
		return true
	}
	return false
}

// ProtectedFields は種別ごとの暗号化対象フィールド名を返す。
func (k RecordKind) ProtectedFields() []string {
	switch k {
	case RecordKindPatientInfo:
		return []string{"medical_history"}
	case RecordKindVisit:
		return []string{"diagnosis", "prescriptions"}
	case RecordKindBill:
		return []string{"details"}
	case RecordKindReport:
		return []string{"summary", "findings"}
	}
	return nil
}

// BillStatus は請求のステータスを表す。
type BillStatus string

const (
	// BillStatusUnpaid は未払いの請求を表す。
	BillStatusUnpaid BillStatus = "unpaid"
	// BillStatusPaid は支払い済みの請求を表す。
	BillStatusPaid BillStatus = "paid"
)

// ReportStatus は検査レポートのステータスを表す。
type ReportStatus string

const (
	// ReportStatusPending は結果待ちのレポートを表す。
	ReportStatusPending ReportStatus = "pending"
	// ReportStatusCompleted は確定済みのレポートを表す。
	ReportStatusCompleted ReportStatus = "completed"
)

// Patient は患者エンティティを表す。MedicalHistoryは保存時に暗号化される。
type Patient struct {
	ID               string
	Name             string
	DateOfBirth      time.Time
	Gender           string
	BloodGroup       string
	Allergies        string
	EmergencyContact string
	MedicalHistory   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Visit は診察記録エンティティを表す。DiagnosisとPrescriptionsは保存時に
// 暗号化される。
type Visit struct {
	ID            string
	PatientID     string
	VisitDate     time.Time
	DoctorName    string
	Department    string
	Notes         string
	Diagnosis     string
	Prescriptions string
	CreatedAt     time.Time
}

// Bill は請求エンティティを表す。Detailsは保存時に暗号化される。
type Bill struct {
	ID          string
	PatientID   string
	Amount      float64
	Description string
	Status      BillStatus
	DueDate     time.Time
	PaymentDate time.Time
	Details     string
	CreatedAt   time.Time
}

// Report は検査レポートエンティティを表す。SummaryとFindingsは保存時に
// 暗号化される。
type Report struct {
	ID          string
	PatientID   string
	ReportType  string
	ReportDate  time.Time
	OrderedBy   string
	PerformedBy string
	Status      ReportStatus
	FilePath    string
	Summary     string
	Findings    string
	CreatedAt   time.Time
}
