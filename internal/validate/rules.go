package validate

import "strings"

// Issue describes a single failed rule: the field that failed and the
// display message for it. A nil *Issue means the input passed.
type Issue struct {
	Field   string
	Message string
}

// Rule checks one condition against already-captured input.
type Rule func() *Issue

// First runs rules in order and returns the first failure, or nil when
// every rule passes. Rules are never aggregated.
func First(rules ...Rule) *Issue {
	for _, rule := range rules {
		if issue := rule(); issue != nil {
			return issue
		}
	}
	return nil
}

// Required fails when value is empty after trimming whitespace.
func Required(field, label, value string) Rule {
	return func() *Issue {
		if strings.TrimSpace(value) == "" {
			return &Issue{Field: field, Message: label + " is required"}
		}
		return nil
	}
}

// Code fails when value is empty after trimming or contains anything
// but digits. Verification codes issued by the account service are
// numeric; entry fields that also accept backup codes use Required.
func Code(field, label, value string) Rule {
	return func() *Issue {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return &Issue{Field: field, Message: label + " is required"}
		}
		for _, r := range trimmed {
			if r < '0' || r > '9' {
				return &Issue{Field: field, Message: label + " must be numeric"}
			}
		}
		return nil
	}
}

// AnyOf fails when every candidate value is empty after trimming. The
// message is caller-supplied because it spans fields ("Email or username
// is required").
func AnyOf(field, message string, values ...string) Rule {
	return func() *Issue {
		for _, v := range values {
			if strings.TrimSpace(v) != "" {
				return nil
			}
		}
		return &Issue{Field: field, Message: message}
	}
}

// Match fails when a and b differ. Used for password confirmation.
func Match(field, message, a, b string) Rule {
	return func() *Issue {
		if a != b {
			return &Issue{Field: field, Message: message}
		}
		return nil
	}
}

// MinLen fails when value, after trimming, is shorter than n runes.
func MinLen(field, label string, n int, value string) Rule {
	return func() *Issue {
		if len([]rune(strings.TrimSpace(value))) < n {
			return &Issue{Field: field, Message: label + " is too short"}
		}
		return nil
	}
}
