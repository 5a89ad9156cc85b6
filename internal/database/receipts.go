package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrReceiptNotFound is returned when no receipt has the reference code.
var ErrReceiptNotFound = errors.New("receipt not found")

// ReceiptStore reads and writes receipt rows.
type ReceiptStore struct {
	db *gorm.DB
}

// NewReceiptStore wraps db.
func NewReceiptStore(db *gorm.DB) *ReceiptStore {
	return &ReceiptStore{db: db}
}

// Create inserts a pending receipt with the given summary.
func (s *ReceiptStore) Create(ctx context.Context, r *Receipt, summary ReceiptSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal receipt summary: %w", err)
	}
	r.Summary = raw
	if r.Status == "" {
		r.Status = ReceiptPending
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("create receipt %s: %w", r.ReferenceCode, err)
	}
	return nil
}

// FindByReference loads the receipt for ref.
func (s *ReceiptStore) FindByReference(ctx context.Context, ref string) (*Receipt, error) {
	var r Receipt
	err := s.db.WithContext(ctx).Where("reference_code = ?", ref).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query receipt %s: %w", ref, err)
	}
	return &r, nil
}

// MarkReady records the uploaded PDF.
func (s *ReceiptStore) MarkReady(ctx context.Context, ref, objectKey string) error {
	return s.update(ctx, ref, map[string]any{
		"status":         ReceiptReady,
		"object_key":     objectKey,
		"failure_reason": "",
	})
}

// maxFailureReason is the failure_reason column width in characters.
const maxFailureReason = 512

// MarkFailed records that the receipt could not be produced.
func (s *ReceiptStore) MarkFailed(ctx context.Context, ref, reason string) error {
	if r := []rune(reason); len(r) > maxFailureReason {
		reason = string(r[:maxFailureReason])
	}
	return s.update(ctx, ref, map[string]any{
		"status":         ReceiptFailed,
		"failure_reason": reason,
	})
}

func (s *ReceiptStore) update(ctx context.Context, ref string, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&Receipt{}).Where("reference_code = ?", ref).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update receipt %s: %w", ref, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReceiptNotFound
	}
	return nil
}

// DecodeSummary unmarshals r.Summary.
func (r *Receipt) DecodeSummary() (ReceiptSummary, error) {
	var s ReceiptSummary
	if len(r.Summary) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(r.Summary, &s); err != nil {
		return s, fmt.Errorf("decode receipt summary: %w", err)
	}
	return s, nil
}
