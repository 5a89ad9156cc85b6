package validation

import (
	"strings"

	"wafiPortal/internal/submission"
)

var loginMessages = map[string]map[string]string{
	"username": {"*": "اسم المستخدم مطلوب"},
	"password": {"*": "كلمة المرور مطلوبة"},
}

// ValidateLogin checks that both credentials are present. The password is not
// trimmed.
func ValidateLogin(creds submission.LoginCredentials) (submission.LoginCredentials, FieldErrors) {
	creds.Username = strings.TrimSpace(creds.Username)
	if errs := run(creds, loginMessages); len(errs) > 0 {
		return submission.LoginCredentials{}, errs
	}
	return creds, nil
}
