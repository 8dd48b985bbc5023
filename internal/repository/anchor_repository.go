package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"patient-data-service/internal/domain"
)

// RecordAnchorModel はgorm用の台帳エントリモデル定義。主キーは連番で、
// チェーンの順序をそのまま表す。
type RecordAnchorModel struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement"`
	PatientID string    `gorm:"type:char(36);not null;index:idx_anchors_patient"`
	Kind      string    `gorm:"type:varchar(20);not null;index:idx_anchors_record"`
	RecordID  string    `gorm:"type:char(36);not null;index:idx_anchors_record"`
	DataHash  string    `gorm:"type:char(64);not null"`
	PrevHash  string    `gorm:"type:char(64);not null"`
	EntryHash string    `gorm:"type:char(64);not null"`
	CreatedAt time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (RecordAnchorModel) TableName() string {
	return "record_anchors"
}

func (a *RecordAnchorModel) toDomain() *domain.RecordAnchor {
	return &domain.RecordAnchor{
		Seq:       a.Seq,
		PatientID: a.PatientID,
		Kind:      domain.RecordKind(a.Kind),
		RecordID:  a.RecordID,
		DataHash:  a.DataHash,
		PrevHash:  a.PrevHash,
		EntryHash: a.EntryHash,
		CreatedAt: a.CreatedAt,
	}
}

// AnchorRepository は台帳エントリのデータアクセスを提供する。追記のみで、
// 更新・削除の操作は持たない。
type AnchorRepository struct {
	db *gorm.DB
}

// NewAnchorRepository は新しいAnchorRepositoryを生成する。
func NewAnchorRepository(db *gorm.DB) *AnchorRepository {
	return &AnchorRepository{db: db}
}

// Create は新しいアンカーを追記する。
func (r *AnchorRepository) Create(ctx context.Context, anchor *domain.RecordAnchor) error {
	model := &RecordAnchorModel{
		PatientID: anchor.PatientID,
		Kind:      string(anchor.Kind),
		RecordID:  anchor.RecordID,
		DataHash:  anchor.DataHash,
		PrevHash:  anchor.PrevHash,
		EntryHash: anchor.EntryHash,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create anchor",
			"operation", "create_anchor",
			"patient_id", anchor.PatientID,
			"kind", anchor.Kind,
			"record_id", anchor.RecordID,
			"error", err,
		)
		return err
	}
	anchor.Seq = model.Seq
	anchor.CreatedAt = model.CreatedAt
	return nil
}

// FindLatest はチェーン末尾のアンカーを取得する。存在しない場合はnilを返す。
func (r *AnchorRepository) FindLatest(ctx context.Context) (*domain.RecordAnchor, error) {
	var model RecordAnchorModel
	err := r.db.WithContext(ctx).
		Order("seq DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find latest anchor",
			"operation", "find_latest_anchor",
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindLatestByRecord は指定されたレコードの最新アンカーを取得する。
// 存在しない場合はnilを返す。
func (r *AnchorRepository) FindLatestByRecord(ctx context.Context, patientID string, kind domain.RecordKind, recordID string) (*domain.RecordAnchor, error) {
	var model RecordAnchorModel
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND kind = ? AND record_id = ?", patientID, string(kind), recordID).
		Order("seq DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find anchor for record",
			"operation", "find_latest_anchor_by_record",
			"patient_id", patientID,
			"kind", kind,
			"record_id", recordID,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindAllByPatientID は指定された患者のアンカーをチェーン順に取得する。
func (r *AnchorRepository) FindAllByPatientID(ctx context.Context, patientID string) ([]*domain.RecordAnchor, error) {
	var models []RecordAnchorModel
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("seq ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find anchors",
			"operation", "find_anchors_by_patient_id",
			"patient_id", patientID,
			"error", err,
		)
		return nil, err
	}

	anchors := make([]*domain.RecordAnchor, len(models))
	for i, m := range models {
		anchors[i] = m.toDomain()
	}
	return anchors, nil
}

// FindAll は全アンカーをチェーン順に取得する。
func (r *AnchorRepository) FindAll(ctx context.Context) ([]*domain.RecordAnchor, error) {
	var models []RecordAnchorModel
	err := r.db.WithContext(ctx).
		Order("seq ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find all anchors",
			"operation", "find_all_anchors",
			"error", err,
		)
		return nil, err
	}

	anchors := make([]*domain.RecordAnchor, len(models))
	for i, m := range models {
		anchors[i] = m.toDomain()
	}
	return anchors, nil
}
