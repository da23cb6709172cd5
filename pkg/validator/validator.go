package validator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	lettersPattern = regexp.MustCompile(`^[\p{L}\s]+$`)
	digitsPattern  = regexp.MustCompile(`^[0-9]+$`)
	alnumPattern   = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	cardPattern    = regexp.MustCompile(`^[0-9\s]+$`)
	expiryPattern  = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)

	// Card expiry dates further out than this are rejected.
	maxExpiryYears = 10

	nowFunc  = time.Now
	validate = newValidate()
)

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, "letters", matches(lettersPattern))
	mustRegister(v, "digits", matches(digitsPattern))
	mustRegister(v, "alnumcode", matches(alnumPattern))
	mustRegister(v, "cardnumber", validCardNumber)
	mustRegister(v, "expiry", validExpiry)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// validCardNumber accepts 13 to 19 digits, spaces allowed, passing the Luhn check.
func validCardNumber(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if !cardPattern.MatchString(raw) {
		return false
	}
	digits := strings.ReplaceAll(raw, " ", "")
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	return Luhn(digits)
}

// Luhn reports whether a string of ASCII digits carries a valid Luhn checksum.
func Luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// validExpiry accepts MM/YY dates from the current month up to ten years ahead.
func validExpiry(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if !expiryPattern.MatchString(val) {
		return false
	}
	month, _ := strconv.Atoi(val[:2])
	year, _ := strconv.Atoi(val[3:])

	now := nowFunc()
	curYear := now.Year() % 100
	curMonth := int(now.Month())

	switch {
	case year < curYear:
		return false
	case year == curYear && month < curMonth:
		return false
	case year > curYear+maxExpiryYears:
		return false
	}
	return true
}

// Validate validates a struct using go-playground/validator tags.
func Validate(s any) error {
	if err := validate.Struct(s); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return &ValidationError{Errors: validationErrors}
		}
		return err
	}
	return nil
}

// ValidationError wraps validator.ValidationErrors with a user-friendly message.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, err := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", fieldPath(err), msgForTag(err)))
	}
	return strings.Join(msgs, "; ")
}

// Fields returns a map of field paths to error messages. Nested fields are
// keyed by their dotted path below the root struct, e.g. "billing.firstName".
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, err := range e.Errors {
		fields[fieldPath(err)] = msgForTag(err)
	}
	return fields
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "uuid":
		return "must be a valid UUID"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "letters":
		return "may only contain letters and spaces"
	case "digits":
		return "may only contain digits"
	case "alnumcode":
		return "may only contain letters and digits"
	case "cardnumber":
		return "must be a valid card number"
	case "expiry":
		return "must be a non-expired MM/YY date at most 10 years ahead"
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}

// DecodeAndValidate reads JSON from the request body, decodes it into dst,
// and validates it. Returns a 400 error response on failure.
func DecodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return Validate(dst)
}
