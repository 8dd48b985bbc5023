package usecase

import (
	"context"
	"fmt"

	"patient-data-service/internal/domain"
)

// AnchorRepository は台帳データアクセスのインターフェース。
type AnchorRepository interface {
	Create(ctx context.Context, anchor *domain.RecordAnchor) error
	FindLatest(ctx context.Context) (*domain.RecordAnchor, error)
	FindLatestByRecord(ctx context.Context, patientID string, kind domain.RecordKind, recordID string) (*domain.RecordAnchor, error)
	FindAllByPatientID(ctx context.Context, patientID string) ([]*domain.RecordAnchor, error)
	FindAll(ctx context.Context) ([]*domain.RecordAnchor, error)
}

// RecordReader は台帳検証がレコードの現在の内容を取得するためのインター
// フェース。
type RecordReader interface {
	RecordPayload(ctx context.Context, patientID string, kind domain.RecordKind, recordID string) (map[string]any, error)
}

// AnchorService は台帳の参照と検証を提供する。
type AnchorService struct {
	repo    AnchorRepository
	records RecordReader
}

// NewAnchorService は新しいAnchorServiceを生成する。
func NewAnchorService(repo AnchorRepository, records RecordReader) *AnchorService {
	return &AnchorService{
		repo:    repo,
		records: records,
	}
}

// ListAnchors は指定された患者の台帳エントリをチェーン順に取得する。
func (s *AnchorService) ListAnchors(ctx context.Context, patientID string) ([]*domain.RecordAnchor, error) {
	anchors, err := s.repo.FindAllByPatientID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("finding anchors: %w", err)
	}
	return anchors, nil
}

// VerifyRecord はレコードの現在の内容からハッシュを再計算し、最新のアンカー
// と照合する。一致すればそのアンカーを返す。
func (s *AnchorService) VerifyRecord(ctx context.Context, patientID string, kind domain.RecordKind, recordID string) (*domain.RecordAnchor, error) {
	if !kind.Valid() {
		return nil, domain.ErrInvalidRecordKind
	}

	anchor, err := s.repo.FindLatestByRecord(ctx, patientID, kind, recordID)
	if err != nil {
		return nil, fmt.Errorf("finding anchor: %w", err)
	}
	if anchor == nil {
		return nil, domain.ErrAnchorNotFound
	}

	payload, err := s.records.RecordPayload(ctx, patientID, kind, recordID)
	if err != nil {
		return nil, err
	}
	if domain.HashRecord(payload) != anchor.DataHash {
		return nil, domain.ErrAnchorMismatch
	}
	return anchor, nil
}

// VerifyChain は台帳全体の連鎖を先頭から検証し、検証できたエントリ数を返す。
// 連鎖が壊れている場合は壊れる直前までの数とErrChainBrokenを返す。
func (s *AnchorService) VerifyChain(ctx context.Context) (int, error) {
	anchors, err := s.repo.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("finding anchors: %w", err)
	}

	prevHash := domain.GenesisHash
	for i, anchor := range anchors {
		if anchor.PrevHash != prevHash {
			return i, fmt.Errorf("%w: seq %d prev hash mismatch", domain.ErrChainBroken, anchor.Seq)
		}
		want := domain.EntryHash(anchor.PrevHash, anchor.DataHash, anchor.Kind, anchor.RecordID)
		if anchor.EntryHash != want {
			return i, fmt.Errorf("%w: seq %d entry hash mismatch", domain.ErrChainBroken, anchor.Seq)
		}
		prevHash = anchor.EntryHash
	}
	return len(anchors), nil
}
