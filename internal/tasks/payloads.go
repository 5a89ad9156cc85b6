package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Task types shared by the portal (producer) and the worker (consumer).
const (
	TypeReceiptGenerate = "receipt:generate"
	TypeStagingSweep    = "staging:sweep"
)

// ReceiptMaxRetry bounds receipt generation attempts.
const ReceiptMaxRetry = 5

// ReceiptGeneratePayload carries what the worker needs to print a receipt.
type ReceiptGeneratePayload struct {
	ReferenceCode string `json:"reference_code"`
	CorrelationID string `json:"correlation_id"`
}

// NewReceiptGenerateTask builds a receipt generation task for ref.
func NewReceiptGenerateTask(ref, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReceiptGeneratePayload{
		ReferenceCode: ref,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReceiptGenerate, payload,
		asynq.MaxRetry(ReceiptMaxRetry),
		asynq.Timeout(2*time.Minute),
	), nil
}

// StagingSweepPayload configures one staging cleanup run.
type StagingSweepPayload struct {
	MaxAgeSeconds int64 `json:"max_age_seconds"`
}

// NewStagingSweepTask builds a task removing staged CVs older than maxAge.
func NewStagingSweepTask(maxAge time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(StagingSweepPayload{MaxAgeSeconds: int64(maxAge / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeStagingSweep, payload, asynq.MaxRetry(1)), nil
}
