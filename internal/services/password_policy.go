package services

import "unicode/utf8"

// MinPasswordLength is the minimum number of characters in a password.
const MinPasswordLength = 8

// PasswordViolation names the first password policy check that failed.
type PasswordViolation string

const (
	ViolationMismatch    PasswordViolation = "MISMATCH"
	ViolationTooShort    PasswordViolation = "TOO_SHORT"
	ViolationNoUppercase PasswordViolation = "NO_UPPERCASE"
	ViolationNoLowercase PasswordViolation = "NO_LOWERCASE"
	ViolationNoDigit     PasswordViolation = "NO_DIGIT"
	ViolationNoSpecial   PasswordViolation = "NO_SPECIAL"
)

var violationMessages = map[PasswordViolation]string{
	ViolationMismatch:    "Passwords do not match",
	ViolationTooShort:    "Password must be at least 8 characters long",
	ViolationNoUppercase: "Password must contain at least one uppercase letter",
	ViolationNoLowercase: "Password must contain at least one lowercase letter",
	ViolationNoDigit:     "Password must contain at least one number",
	ViolationNoSpecial:   "Password must contain at least one special character",
}

// ValidationError is returned by ValidatePassword. Error() is safe to show to end users.
type ValidationError struct {
	Reason PasswordViolation
}

func (e *ValidationError) Error() string {
	if msg, ok := violationMessages[e.Reason]; ok {
		return msg
	}
	return "Password does not meet the password policy"
}

// ValidatePassword checks a new password and its confirmation against the password
// policy. Checks run in a fixed order and the first failing one is reported.
func ValidatePassword(password, confirmation string) error {
	if password != confirmation {
		return &ValidationError{Reason: ViolationMismatch}
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &ValidationError{Reason: ViolationTooShort}
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}

	switch {
	case !upper:
		return &ValidationError{Reason: ViolationNoUppercase}
	case !lower:
		return &ValidationError{Reason: ViolationNoLowercase}
	case !digit:
		return &ValidationError{Reason: ViolationNoDigit}
	case !special:
		return &ValidationError{Reason: ViolationNoSpecial}
	}
	return nil
}
