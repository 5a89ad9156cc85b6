package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *ReceiptStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewReceiptStore(db)
}

func TestReceiptLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	receipt := &Receipt{
		ReferenceCode: "AWJ-20250101-0001",
		SubmissionID:  "sub-1",
		SessionID:     "sid-1",
		ApplicantName: "Ahmed Ali",
		SubmittedAt:   time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	summary := ReceiptSummary{FullName: "Ahmed Ali", Email: "ahmed@example.com"}
	if err := store.Create(ctx, receipt, summary); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.FindByReference(ctx, "AWJ-20250101-0001")
	if err != nil {
		t.Fatalf("FindByReference() error = %v", err)
	}
	if got.Status != ReceiptPending {
		t.Fatalf("status = %q, want %q", got.Status, ReceiptPending)
	}
	decoded, err := got.DecodeSummary()
	if err != nil {
		t.Fatalf("DecodeSummary() error = %v", err)
	}
	if decoded.FullName != "Ahmed Ali" || decoded.Email != "ahmed@example.com" {
		t.Fatalf("summary = %+v", decoded)
	}

	if err := store.MarkReady(ctx, "AWJ-20250101-0001", "receipts/AWJ-20250101-0001.pdf"); err != nil {
		t.Fatalf("MarkReady() error = %v", err)
	}
	got, _ = store.FindByReference(ctx, "AWJ-20250101-0001")
	if got.Status != ReceiptReady || got.ObjectKey != "receipts/AWJ-20250101-0001.pdf" {
		t.Fatalf("after MarkReady: status=%q key=%q", got.Status, got.ObjectKey)
	}
}

func TestReceiptMarkFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Create(ctx, &Receipt{ReferenceCode: "REF-2"}, ReceiptSummary{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.MarkFailed(ctx, "REF-2", "browser crashed"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	got, _ := store.FindByReference(ctx, "REF-2")
	if got.Status != ReceiptFailed || got.FailureReason != "browser crashed" {
		t.Fatalf("status=%q reason=%q", got.Status, got.FailureReason)
	}
}

func TestReceiptNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.FindByReference(ctx, "missing"); !errors.Is(err, ErrReceiptNotFound) {
		t.Fatalf("FindByReference() error = %v, want ErrReceiptNotFound", err)
	}
	if err := store.MarkReady(ctx, "missing", "k"); !errors.Is(err, ErrReceiptNotFound) {
		t.Fatalf("MarkReady() error = %v, want ErrReceiptNotFound", err)
	}
}

func TestReceiptReferenceUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Create(ctx, &Receipt{ReferenceCode: "DUP"}, ReceiptSummary{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.Create(ctx, &Receipt{ReferenceCode: "DUP"}, ReceiptSummary{}); err == nil {
		t.Fatal("second Create() with the same reference succeeded")
	}
}

func TestReceiptMarkFailedTruncatesByCharacter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Create(ctx, &Receipt{ReferenceCode: "REF-3"}, ReceiptSummary{}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	reason := "x" + strings.Repeat("تعذر", 200)
	if err := store.MarkFailed(ctx, "REF-3", reason); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	got, _ := store.FindByReference(ctx, "REF-3")
	if !utf8.ValidString(got.FailureReason) || utf8.RuneCountInString(got.FailureReason) != maxFailureReason {
		t.Fatalf("reason has %d runes, valid=%v", utf8.RuneCountInString(got.FailureReason), utf8.ValidString(got.FailureReason))
	}
}
