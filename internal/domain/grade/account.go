// Package grade contains the course grading model: account identifiers,
// category records, the weighted average and the final-score tiers.
// There are no external dependencies here.
package grade

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gradesbot/gradesbot/internal/domain/shared"
)

var accountPattern = regexp.MustCompile(`^\d{8,10}$`)

// AccountID is a student account number: 8 to 10 decimal digits.
type AccountID string

// ParseAccountID trims and validates a raw account number.
func ParseAccountID(raw string) (AccountID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrAccountMissing
	}
	if !accountPattern.MatchString(s) {
		return "", ErrAccountFormat
	}
	return AccountID(s), nil
}

// String returns the account number as stored in category tables.
func (a AccountID) String() string {
	return string(a)
}

// Number returns the numeric value used by the roster table.
func (a AccountID) Number() (int64, error) {
	n, err := strconv.ParseInt(string(a), 10, 64)
	if err != nil {
		return 0, shared.WrapError("grade", "AccountNumber", shared.ErrValidation, "account number is not numeric", err)
	}
	return n, nil
}

// Validation errors for account numbers.
var (
	ErrAccountMissing = shared.NewDomainError("grade", "ParseAccountID", shared.ErrValidation, "account number is required")
	ErrAccountFormat  = shared.NewDomainError("grade", "ParseAccountID", shared.ErrValidation, "account number must have 8 to 10 digits")
)
