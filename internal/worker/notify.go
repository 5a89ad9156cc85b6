package worker

// ReceiptNotifyMessage is published on redis and forwarded as-is to the
// confirmation page websocket.
type ReceiptNotifyMessage struct {
	Status        string `json:"status"`
	ReferenceCode string `json:"reference_code"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}

// Notification states.
const (
	NotifyReady = "ready"
	NotifyError = "error"
)

// NotifyChannelPrefix prefixes the per-receipt pub/sub channel.
const NotifyChannelPrefix = "receipt_notify:"

// NotifyChannel returns the pub/sub channel for a reference code.
func NotifyChannel(ref string) string {
	return NotifyChannelPrefix + ref
}
