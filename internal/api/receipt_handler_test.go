package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"wafiPortal/internal/application"
	"wafiPortal/internal/backend"
	"wafiPortal/internal/database"
	"wafiPortal/internal/submission"
	"wafiPortal/internal/tasks"
	"wafiPortal/internal/validation"
)

func submittedFixture() application.Submitted {
	return application.Submitted{
		SessionID: "sid-1",
		Response:  submission.SubmitFormResponse{SubmissionID: "sub-1", ReferenceCode: "AWJ-0001"},
		App: &validation.Application{
			FullName:        "Ahmed Ali",
			NationalID:      "1234567890",
			MaritalStatus:   submission.MaritalMarried,
			Email:           "ahmed@example.com",
			ApplicantName:   "Ahmed Ali",
			Signature:       "data:image/png;base64,AAAA",
			AppliedBefore:   true,
			WorkExperiences: []submission.WorkExperience{{Company: "Acme", Position: "Clerk"}, {}},
		},
		At: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestReceiptIssuerRecordsAndQueues(t *testing.T) {
	receipts := newTestReceipts(t)
	queue := &fakeQueue{}
	issuer := NewReceiptIssuer(receipts, queue, discardLogger())

	ctx := backend.WithCorrelationID(context.Background(), "corr-1")
	if err := issuer.Issue(ctx, submittedFixture()); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	r, err := receipts.FindByReference(ctx, "AWJ-0001")
	if err != nil {
		t.Fatalf("FindByReference() error = %v", err)
	}
	if r.SessionID != "sid-1" || r.Status != database.ReceiptPending {
		t.Fatalf("receipt = %+v", r)
	}
	summary, err := r.DecodeSummary()
	if err != nil {
		t.Fatalf("DecodeSummary() error = %v", err)
	}
	if summary.NationalID != "******7890" {
		t.Fatalf("national id = %q, want masked", summary.NationalID)
	}
	if summary.MaritalStatus != "متزوج" {
		t.Fatalf("marital status = %q", summary.MaritalStatus)
	}
	if len(summary.WorkExperiences) != 1 {
		t.Fatalf("blank experience kept: %+v", summary.WorkExperiences)
	}

	if len(queue.tasks) != 1 {
		t.Fatalf("queued %d tasks, want 1", len(queue.tasks))
	}
	task := queue.tasks[0]
	if task.Type() != tasks.TypeReceiptGenerate {
		t.Fatalf("task type = %q", task.Type())
	}
	var payload tasks.ReceiptGeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ReferenceCode != "AWJ-0001" || payload.CorrelationID != "corr-1" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestReceiptIssuerRejectsMissingReference(t *testing.T) {
	issuer := NewReceiptIssuer(newTestReceipts(t), &fakeQueue{}, discardLogger())
	s := submittedFixture()
	s.Response.ReferenceCode = ""
	if err := issuer.Issue(context.Background(), s); err == nil {
		t.Fatal("Issue() error = nil, want error")
	}
}

func TestReceiptIssuerQueueFailure(t *testing.T) {
	queue := &fakeQueue{err: errors.New("redis down")}
	issuer := NewReceiptIssuer(newTestReceipts(t), queue, discardLogger())
	if err := issuer.Issue(context.Background(), submittedFixture()); err == nil {
		t.Fatal("Issue() error = nil, want enqueue error")
	}
}

func TestMaskID(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"1234":       "1234",
		"12345":      "*2345",
		"١٢٣٤٥٦":     "**٣٤٥٦",
		"1234567890": "******7890",
	}
	for in, want := range tests {
		if got := maskID(in); got != want {
			t.Errorf("maskID(%q) = %q, want %q", in, got, want)
		}
	}
}

func seedReceipt(t *testing.T, env *testEnv, sid string, ready bool) {
	t.Helper()
	ctx := context.Background()
	r := &database.Receipt{ReferenceCode: "AWJ-0001", SubmissionID: "sub-1", SessionID: sid, SubmittedAt: time.Now()}
	if err := env.receipts.Create(ctx, r, database.ReceiptSummary{FullName: "Ahmed"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ready {
		if err := env.receipts.MarkReady(ctx, "AWJ-0001", "receipts/AWJ-0001.pdf"); err != nil {
			t.Fatalf("MarkReady() error = %v", err)
		}
	}
}

func TestConfirmationPage(t *testing.T) {
	env := newTestEnv(t, "http://backend.invalid")
	seedReceipt(t, env, "sid-1", false)

	rec := env.get(t, "/form/confirmation/AWJ-0001", "sid-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "AWJ-0001") || !strings.Contains(body, "/ws/receipts/") {
		t.Fatal("pending confirmation should show the reference and listen for the receipt")
	}

	rec = env.get(t, "/form/confirmation/AWJ-0001", "sid-2")
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "/ws/receipts/") {
		t.Fatalf("foreign session sees receipt state, status = %d", rec.Code)
	}

	rec = env.get(t, "/form/confirmation/bad%07ref", "sid-1")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("invalid reference status = %d, want 404", rec.Code)
	}
}

func TestReceiptDownload(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		env := newTestEnv(t, "http://backend.invalid")
		seedReceipt(t, env, "sid-1", true)

		rec := env.get(t, "/form/receipt/AWJ-0001", "sid-1")
		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rec.Code)
		}
		loc := rec.Header().Get("Location")
		if !strings.HasPrefix(loc, "https://files.example.test/receipts/AWJ-0001.pdf") || !strings.Contains(loc, "receipt-AWJ-0001.pdf") {
			t.Fatalf("location = %q", loc)
		}
	})

	t.Run("pending", func(t *testing.T) {
		env := newTestEnv(t, "http://backend.invalid")
		seedReceipt(t, env, "sid-1", false)

		rec := env.get(t, "/form/receipt/AWJ-0001", "sid-1")
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
		if len(env.objects.calls) != 0 {
			t.Fatal("pending receipt must not be presigned")
		}
	})

	t.Run("other session", func(t *testing.T) {
		env := newTestEnv(t, "http://backend.invalid")
		seedReceipt(t, env, "sid-1", true)

		rec := env.get(t, "/form/receipt/AWJ-0001", "sid-2")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		env := newTestEnv(t, "http://backend.invalid")
		rec := env.get(t, "/form/receipt/AWJ-9999", "sid-1")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}
