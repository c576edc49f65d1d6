package domain

import (
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("calendarday", func(fl validator.FieldLevel) bool {
		_, ok := ParseDay(fl.Field().String())
		return ok
	})
	return v
}

// FieldError names one field that failed validation and the rule it broke.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Validate checks q against its schema. It returns nil or the list of
// failing fields; a negative amount is reported under "amount".
func Validate(q QueryRecord) []FieldError {
	var out []FieldError
	if err := validate.Struct(q); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				out = append(out, FieldError{Field: jsonName(fe.StructField()), Rule: fe.Tag()})
			}
		} else {
			out = append(out, FieldError{Field: "record", Rule: "invalid"})
		}
	}
	if q.Amount != nil && q.Amount.IsNegative() {
		out = append(out, FieldError{Field: "amount", Rule: "gte"})
	}
	return out
}

// jsonName maps a QueryRecord struct field to its persisted JSON name.
func jsonName(field string) string {
	switch field {
	case "ID":
		return "id"
	case "StudentName":
		return "studentName"
	case "StudentID":
		return "studentId"
	case "QueryTitle":
		return "queryTitle"
	case "Date":
		return "date"
	case "Status":
		return "status"
	default:
		return field
	}
}
