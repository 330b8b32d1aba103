// Package leads validates contact and scheduling form submissions, publishes
// them as lead records and reports the matching conversion event.
package leads

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Scheduling windows a customer can ask for.
const (
	WindowMorning   = "morning"
	WindowAfternoon = "afternoon"
	WindowEvening   = "evening"
)

// ErrInvalidForm wraps every validation failure.
var ErrInvalidForm = errors.New("invalid form")

// ContactForm is the general contact form.
type ContactForm struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=320"`
	Phone    string `json:"phone" validate:"required,phone"`
	Service  string `json:"service,omitempty" validate:"omitempty,max=100"`
	Location string `json:"location,omitempty" validate:"omitempty,max=100"`
	Message  string `json:"message,omitempty" validate:"max=2000"`
}

// ScheduleForm requests a service appointment.
type ScheduleForm struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=320"`
	Phone           string `json:"phone" validate:"required,phone"`
	Address         string `json:"address,omitempty" validate:"max=200"`
	Zip             string `json:"zip,omitempty" validate:"omitempty,numeric,len=5"`
	Service         string `json:"service" validate:"required,max=100"`
	Location        string `json:"location,omitempty" validate:"omitempty,max=100"`
	PreferredDate   string `json:"preferred_date" validate:"required,datetime=2006-01-02"`
	PreferredWindow string `json:"preferred_window" validate:"required,oneof=morning afternoon evening"`
	Notes           string `json:"notes,omitempty" validate:"max=2000"`
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("phone", validPhone); err != nil {
		panic(fmt.Sprintf("register phone validation: %v", err))
	}
}

// validPhone accepts 10 to 15 digits with any punctuation around them.
func validPhone(fl validator.FieldLevel) bool {
	n := len(digits(fl.Field().String()))
	return n >= 10 && n <= 15
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func validateForm(form any) error {
	if err := validate.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return &FormError{Fields: fieldNames(fieldErrs)}
		}
		return fmt.Errorf("%w: %w", ErrInvalidForm, err)
	}
	return nil
}

// FormError lists the fields that failed validation.
type FormError struct {
	Fields []string
}

func (e *FormError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidForm, strings.Join(e.Fields, ", "))
}

// Unwrap lets errors.Is match ErrInvalidForm.
func (e *FormError) Unwrap() error { return ErrInvalidForm }

func fieldNames(errs validator.ValidationErrors) []string {
	out := make([]string, 0, len(errs))
	for _, fe := range errs {
		out = append(out, toSnake(fe.Field()))
	}
	return out
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
