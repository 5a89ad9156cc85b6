package application

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxCVBytes is the attachment size ceiling.
const MaxCVBytes = 5 * 1024 * 1024

var (
	// ErrFileTooLarge is returned for attachments above the ceiling.
	ErrFileTooLarge = errors.New("حجم الملف كبير جداً. يرجى اختيار ملف أصغر من 5MB")
	// ErrFileType is returned for attachments that are not PDF, Word or an image.
	ErrFileType = errors.New("نوع الملف غير مدعوم")
	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("الملف فارغ")
)

var allowedCVTypes = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

var allowedCVExtensions = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// cvType resolves the content type and object extension of an upload. The
// declared content type wins; the file extension is the fallback.
func cvType(fileName, declared string) (contentType, ext string, ok bool) {
	declared = strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	if ext, ok := allowedCVTypes[declared]; ok {
		return declared, ext, true
	}
	ext = strings.ToLower(filepath.Ext(fileName))
	if ct, ok := allowedCVExtensions[ext]; ok {
		return ct, ext, true
	}
	return "", "", false
}

// cleanFileName keeps the base name of an upload, bounded and printable.
func cleanFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || !utf8.ValidString(name) {
		return "cv"
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' {
			return -1
		}
		return r
	}, name)
	if utf8.RuneCountInString(name) > 120 {
		runes := []rune(name)
		name = string(runes[:120])
	}
	if name == "" {
		return "cv"
	}
	return name
}

// isStagingKey guards against deleting objects outside the CV staging area.
func isStagingKey(key string) bool {
	if key == "" || !utf8.ValidString(key) || len(key) > 200 {
		return false
	}
	if !strings.HasPrefix(key, StagingPrefix) {
		return false
	}
	return !strings.Contains(key, "..") && !strings.Contains(key, "\\") && !strings.Contains(key, "//")
}
