// FiscalFlow - Resilient Investment Data Synchronization
// Copyright 2026 ParagE404
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ParagE404/fiscal-flow-sub001

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one failed constraint on a request field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

// RequestValidationError collects every failed constraint of one request.
type RequestValidationError struct {
	Fields []FieldError
}

// Errors returns the individual field failures.
func (e *RequestValidationError) Errors() []FieldError {
	return e.Fields
}

func (e *RequestValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// APIError is the admin API body for a rejected request.
type APIError struct {
	Code    string
	Message string
	Details map[string]any
}

// ToAPIError flattens the failures into one message. A single failure keeps
// its field, tag and value in Details; several are listed under "fields".
func (e *RequestValidationError) ToAPIError() *APIError {
	out := &APIError{Code: "VALIDATION_ERROR", Message: "Validation failed"}
	switch len(e.Fields) {
	case 0:
	case 1:
		f := e.Fields[0]
		out.Message = f.Message
		out.Details = map[string]any{"field": f.Field, "tag": f.Tag, "value": f.Value}
	default:
		out.Message = e.Error()
		out.Details = map[string]any{"fields": e.Fields}
	}
	return out
}

// GetValidator returns the shared validator with the identifier tags
// (isin, uan, amfi_code, ticker) and investment_type registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)
		custom := map[string]validator.Func{
			"isin":            stringCheck(IsISIN),
			"uan":             stringCheck(IsUAN),
			"amfi_code":       stringCheck(IsAMFICode),
			"ticker":          stringCheck(IsTicker),
			"investment_type": validateInvestmentType,
		}
		for tag, fn := range custom {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(fmt.Sprintf("validation: register %s: %v", tag, err))
			}
		}
		validate = v
	})
	return validate
}

func stringCheck(fn func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool { return fn(fl.Field().String()) }
}

// jsonFieldName reports fields by their JSON name when they have one.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// ValidateStruct validates s with the shared validator. It returns nil when
// every constraint holds.
func ValidateStruct(s any) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}
	out := &RequestValidationError{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		out.Fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: message(fe),
		}
	}
	return out
}

var tagMessages = map[string]string{
	"required":        "%s is required",
	"datetime":        "%s must be a valid date/time in RFC3339 format",
	"isin":            "%s must be a valid 12-character ISIN",
	"uan":             "%s must be a 12-digit UAN",
	"amfi_code":       "%s must be a 5 or 6 digit AMFI scheme code",
	"ticker":          "%s must be an exchange ticker (A-Z, 0-9, '.', '&', '-')",
	"amfi_code|isin":  "%s must be an AMFI scheme code or ISIN",
	"investment_type": "%s must be one of: mutual_fund, stock, epf, sip",
	"uuid4":           "%s must be a valid UUID",
}

var paramMessages = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

func message(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()
	if tmpl, ok := tagMessages[tag]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := paramMessages[tag]; ok {
		return fmt.Sprintf(tmpl, field, param)
	}
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch tag {
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, param, unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, param, unit)
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}
