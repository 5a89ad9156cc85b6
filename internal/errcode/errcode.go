package errcode

// Codes carried in receipt notifications:
// - 0: no error
// - 4xxx: the request cannot be served as asked
// - 5xxx: system failure
const (
	OK              = 0
	ReceiptNotFound = 4004
	SystemError     = 5000
)
