// Package repository はデータアクセス層の実装を提供する。
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

// PatientModel はgorm用の患者モデル定義。既往歴は封筒文字列のまま
// encrypted_medical_history列に保存する。
type PatientModel struct {
	ID                      string    `gorm:"type:char(36);primaryKey"`
	Name                    string    `gorm:"type:varchar(100);not null"`
	DateOfBirth             time.Time `gorm:"type:date;not null"`
	Gender                  string    `gorm:"type:varchar(20)"`
	BloodGroup              string    `gorm:"type:varchar(10)"`
	Allergies               string    `gorm:"type:varchar(500)"`
	EmergencyContact        string    `gorm:"type:varchar(200)"`
	EncryptedMedicalHistory string    `gorm:"type:text"`
	CreatedAt               time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
	UpdatedAt               time.Time `gorm:"type:datetime(6);not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (PatientModel) TableName() string {
	return "patients"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (p *PatientModel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// toDomain はモデルをドメインエンティティに変換する。MedicalHistoryには
// 封筒文字列が入ったままで、復号はユースケース層が行う。
func (p *PatientModel) toDomain() *domain.Patient {
	return &domain.Patient{
		ID:               p.ID,
		Name:             p.Name,
		DateOfBirth:      p.DateOfBirth,
		Gender:           p.Gender,
		BloodGroup:       p.BloodGroup,
		Allergies:        p.Allergies,
		EmergencyContact: p.EmergencyContact,
		MedicalHistory:   p.EncryptedMedicalHistory,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// PatientRepository は患者のデータアクセスを提供する。
type PatientRepository struct {
	db *gorm.DB
}

// NewPatientRepository は新しいPatientRepositoryを生成する。
func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

// Create は新しい患者を保存する。
func (r *PatientRepository) Create(ctx context.Context, patient *domain.Patient) error {
	model := &PatientModel{
		ID:                      patient.ID,
		Name:                    patient.Name,
		DateOfBirth:             patient.DateOfBirth,
		Gender:                  patient.Gender,
		BloodGroup:              patient.BloodGroup,
		Allergies:               patient.Allergies,
		EmergencyContact:        patient.EmergencyContact,
		EncryptedMedicalHistory: patient.MedicalHistory,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create patient",
			"operation", "create_patient",
			"error", err,
		)
		return err
	}
	// gormで設定された値をドメインエンティティに反映
	patient.ID = model.ID
	patient.CreatedAt = model.CreatedAt
	patient.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID は指定されたIDの患者を取得する。存在しない場合はnilを返す。
func (r *PatientRepository) FindByID(ctx context.Context, id string) (*domain.Patient, error) {
	var model PatientModel
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find patient",
			"operation", "find_patient_by_id",
			"patient_id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindAll は全患者を登録の新しい順に取得する。
func (r *PatientRepository) FindAll(ctx context.Context) ([]*domain.Patient, error) {
	var models []PatientModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find all patients",
			"operation", "find_all_patients",
			"error", err,
		)
		return nil, err
	}

	patients := make([]*domain.Patient, len(models))
	for i, m := range models {
		patients[i] = m.toDomain()
	}
	return patients, nil
}

// ExistsByID は指定されたIDの患者が存在するか確認する。
func (r *PatientRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&PatientModel{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to count patients",
			"operation", "exists_patient_by_id",
			"patient_id", id,
			"error", err,
		)
		return false, err
	}
	return count > 0, nil
}

// UpdateMedicalHistory は指定された患者の既往歴(封筒文字列)を更新する。
func (r *PatientRepository) UpdateMedicalHistory(ctx context.Context, id, sealed string) error {
	err := r.db.WithContext(ctx).
		Model(&PatientModel{}).
		Where("id = ?", id).
		Update("encrypted_medical_history", sealed).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to update medical history",
			"operation", "update_medical_history",
			"patient_id", id,
			"error", err,
		)
		return err
	}
	return nil
}
