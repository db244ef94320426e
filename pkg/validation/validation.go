package validation

import (
	"regexp"
	"strings"

	ozzo "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var phoneRegex = regexp.MustCompile(`^\d{10}$`)

// Message is a single validation failure as returned to API callers.
type Message struct {
	Message string `json:"message"`
}

// Check pairs a value with the rules it must satisfy. Rules run in order and
// only the first failure is reported.
type Check struct {
	value any
	rules []ozzo.Rule
}

// Field builds a Check for value.
func Field(value any, rules ...ozzo.Rule) Check {
	return Check{value: value, rules: rules}
}

// Run evaluates checks in order and returns one Message per failing check.
// A nil result means every check passed.
func Run(checks ...Check) []Message {
	var out []Message
	for _, c := range checks {
		if err := ozzo.Validate(c.value, c.rules...); err != nil {
			out = append(out, Message{Message: err.Error()})
		}
	}
	return out
}

// Required fails on empty or whitespace-only strings.
func Required(msg string) ozzo.Rule {
	return ozzo.By(func(v any) error {
		s, _ := v.(string)
		if strings.TrimSpace(s) == "" {
			return ozzoError(msg)
		}
		return nil
	})
}

// Email requires a syntactically valid address.
func Email(msg string) []ozzo.Rule {
	return []ozzo.Rule{ozzo.Required.Error(msg), is.Email.Error(msg)}
}

// Phone requires exactly ten digits.
func Phone(msg string) []ozzo.Rule {
	return []ozzo.Rule{ozzo.Required.Error(msg), ozzo.Match(phoneRegex).Error(msg)}
}

// MinLength requires at least n characters.
func MinLength(n int, msg string) []ozzo.Rule {
	return []ozzo.Rule{ozzo.Required.Error(msg), ozzo.Length(n, 0).Error(msg)}
}

// MaxBytes fails when a string is longer than n bytes.
func MaxBytes(n int, msg string) ozzo.Rule {
	return ozzo.By(func(v any) error {
		s, _ := v.(string)
		if len(s) > n {
			return ozzoError(msg)
		}
		return nil
	})
}

type ozzoError string

func (e ozzoError) Error() string { return string(e) }
