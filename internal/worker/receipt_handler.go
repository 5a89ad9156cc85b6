package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"wafiPortal/internal/database"
	"wafiPortal/internal/errcode"
	"wafiPortal/internal/tasks"
)

// ReceiptRepository is the part of the receipt store the worker needs.
type ReceiptRepository interface {
	FindByReference(ctx context.Context, ref string) (*database.Receipt, error)
	MarkReady(ctx context.Context, ref, objectKey string) error
	MarkFailed(ctx context.Context, ref, reason string) error
}

// ObjectUploader stores generated receipts.
type ObjectUploader interface {
	PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// Renderer prints HTML to PDF.
type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// Publisher sends pub/sub messages.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// ReceiptObjectKey is where the PDF for ref is stored.
func ReceiptObjectKey(ref string) string {
	return "receipts/" + ref + ".pdf"
}

// ReceiptTaskHandler consumes receipt generation tasks.
type ReceiptTaskHandler struct {
	receipts  ReceiptRepository
	objects   ObjectUploader
	renderer  Renderer
	publisher Publisher
	logger    *slog.Logger
	isFinal   func(ctx context.Context) bool
}

// NewReceiptTaskHandler creates the handler.
func NewReceiptTaskHandler(
	receipts ReceiptRepository,
	objects ObjectUploader,
	renderer Renderer,
	publisher Publisher,
	logger *slog.Logger,
) *ReceiptTaskHandler {
	return &ReceiptTaskHandler{
		receipts:  receipts,
		objects:   objects,
		renderer:  renderer,
		publisher: publisher,
		logger:    logger,
		isFinal:   isFinalAsynqAttempt,
	}
}

// ProcessTask implements asynq.Handler.
func (h *ReceiptTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.ReceiptGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("reference_code", payload.ReferenceCode),
	)
	log.Info("starting receipt generation")

	receipt, err := h.receipts.FindByReference(ctx, payload.ReferenceCode)
	if err != nil {
		if errors.Is(err, database.ErrReceiptNotFound) {
			log.Warn("receipt not found, skipping task")
			return nil
		}
		log.Error("query receipt failed", slog.Any("error", err))
		return err
	}

	if receipt.Status == database.ReceiptReady && receipt.ObjectKey != "" {
		log.Info("receipt already generated")
		return h.publish(ctx, ReceiptNotifyMessage{
			Status:        NotifyReady,
			ReferenceCode: receipt.ReferenceCode,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.OK,
		})
	}

	// Once the row is ready the PDF is downloadable; a later publish failure
	// is retried through the already-generated path and never fails the row.
	ready := false
	defer func() {
		if retErr == nil || ready || !h.isFinal(ctx) {
			return
		}
		reason := strings.TrimSpace(retErr.Error())
		if err := h.receipts.MarkFailed(context.WithoutCancel(ctx), receipt.ReferenceCode, reason); err != nil {
			log.Error("mark receipt failed", slog.Any("error", err))
		}
		notify := ReceiptNotifyMessage{
			Status:        NotifyError,
			ReferenceCode: receipt.ReferenceCode,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  "تعذر إنشاء الإيصال. يمكنك الاحتفاظ برقم المرجع.",
		}
		if err := h.publish(context.WithoutCancel(ctx), notify); err != nil {
			log.Error("publish receipt error notification failed", slog.Any("error", err))
		}
	}()

	html, err := RenderReceiptHTML(receipt)
	if err != nil {
		log.Error("render receipt html failed", slog.Any("error", err))
		return err
	}

	pdfBytes, err := h.renderer.Render(ctx, html)
	if err != nil {
		log.Error("print receipt pdf failed", slog.Any("error", err))
		return err
	}

	objectKey := ReceiptObjectKey(receipt.ReferenceCode)
	if err := h.objects.PutObject(ctx, objectKey, bytes.NewReader(pdfBytes), int64(len(pdfBytes)), "application/pdf"); err != nil {
		log.Error("upload receipt to minio failed", slog.Any("error", err))
		return err
	}

	if err := h.receipts.MarkReady(ctx, receipt.ReferenceCode, objectKey); err != nil {
		log.Error("update receipt failed", slog.Any("error", err))
		return err
	}
	ready = true

	notify := ReceiptNotifyMessage{
		Status:        NotifyReady,
		ReferenceCode: receipt.ReferenceCode,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if err := h.publish(ctx, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("receipt generation completed", slog.Int("bytes", len(pdfBytes)))
	return nil
}

func (h *ReceiptTaskHandler) publish(ctx context.Context, notify ReceiptNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := NotifyChannel(notify.ReferenceCode)
	if err := h.publisher.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
