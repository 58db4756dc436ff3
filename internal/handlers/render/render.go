package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/nkiryanov/authbase/internal/apperrors"
)

var validate = newValidator()

type Struct any

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Code    int               `json:"code"`
	Kind    apperrors.Kind    `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Stack   string            `json:"stack,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	JSONWithStatus(w, data, http.StatusOK)
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Render API error
// Stack is rendered only if withStack is set
func Error(w http.ResponseWriter, err *apperrors.Error, withStack bool) {
	response := ErrorResponse{
		Code:    err.StatusCode,
		Kind:    err.Kind,
		Message: err.Message,
		Fields:  err.Fields,
	}
	if withStack {
		response.Stack = err.Stack()
	}

	JSONWithStatus(w, response, err.StatusCode)
}

// DecodeError converts JSON decoding error into ValidationError
func DecodeError(err error) *apperrors.Error {
	var (
		typeErr     *json.UnmarshalTypeError
		maxBytesErr *http.MaxBytesError
		message     string
	)

	// Try to provide more specific error message based on error type
	switch {
	case errors.As(err, &typeErr):
		message = fmt.Sprintf("Invalid data type for field '%s'", typeErr.Field)
	case errors.As(err, &maxBytesErr):
		message = fmt.Sprintf("Request body is larger than %d bytes", maxBytesErr.Limit)
	case errors.Is(err, io.EOF):
		message = "Request body must not be empty"
	default:
		message = fmt.Sprintf("Failed to parse JSON: %s", err.Error())
	}

	return apperrors.Validation(message, nil).WithCause(err)
}

// ValidationErrors converts validator errors into ValidationError with per field messages
func ValidationErrors(errs validator.ValidationErrors) *apperrors.Error {
	fields := make(map[string]string, len(errs))

	// Create user-friendly error messages based on validation tag
	for _, fieldError := range errs {
		var message string
		switch fieldError.Tag() {
		case "required":
			message = "This field is required"
		case "min":
			message = fmt.Sprintf("Value is too short (minimum %s)", fieldError.Param())
		case "max":
			message = fmt.Sprintf("Value is too long (maximum %s)", fieldError.Param())
		case "email":
			message = "Must be a valid email"
		case "password":
			message = fmt.Sprintf("Password must be at least %d characters and contain at least one letter and one number", passwordMinLength)
		default:
			message = "Invalid value"
		}

		fields[fieldError.Field()] = message
	}

	return apperrors.Validation("Request validation failed", fields).WithCause(errs)
}

// BindAndValidate decodes JSON request body into type T and validates it using struct tags.
// Decoding and validation failures are returned as ValidationError.
func BindAndValidate[T Struct](r *http.Request) (T, error) {
	var value T

	err := json.NewDecoder(r.Body).Decode(&value)
	if err != nil {
		return value, DecodeError(err)
	}

	return value, Validate(value)
}

// Validate struct with the package validator
func Validate(value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		return ValidationErrors(errs)
	}
	return apperrors.Internal(err)
}

// JSONWithStatus sends data as json and enforces status code
func JSONWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
