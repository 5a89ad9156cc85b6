package storage

import (
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
)

var missingCodes = map[string]bool{
	"nosuchkey":    true,
	"notfound":     true,
	"nosuchobject": true,
}

// IsNoSuchKey reports whether err means the object does not exist.
func IsNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return missingCodes[strings.ToLower(resp.Code)] || resp.StatusCode == 404
	}
	return strings.Contains(strings.ToLower(err.Error()), "key does not exist")
}
