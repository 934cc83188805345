// Package common holds the response and request helpers shared by the HTTP
// handlers.
package common

import (
	"errors"
	"reflect"
	"strings"

	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/amirasaad/tenantledger/pkg/domain/account"
	"github.com/amirasaad/tenantledger/pkg/domain/webhook"
	whsvc "github.com/amirasaad/tenantledger/pkg/service/webhook"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const mimeProblemJSON = "application/problem+json"

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`     // A URI reference that identifies the problem type
	Title    string `json:"title"`              // Short, human-readable summary
	Status   int    `json:"status"`             // HTTP status code
	Detail   string `json:"detail,omitempty"`   // Human-readable explanation
	Instance string `json:"instance,omitempty"` // URI reference that identifies the specific occurrence
	Errors   any    `json:"errors,omitempty"`   // Optional: additional error details
}

// LedgerError is the body of a rejected ledger operation. It is sent with
// HTTP 200: the request was understood, the operation was refused.
type LedgerError struct {
	Error        string `json:"error"`
	Code         string `json:"code"`
	Field        string `json:"field,omitempty"`
	FromCurrency string `json:"from_currency,omitempty"`
	ToCurrency   string `json:"to_currency,omitempty"`
	Available    *int64 `json:"available,omitempty"`
	Required     *int64 `json:"required,omitempty"`
}

// ErrorToStatusCode maps service errors to HTTP status codes.
func ErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, account.ErrInvalidCurrencyCode),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, webhook.ErrInvalidURL),
		errors.Is(err, whsvc.ErrInvalidStatus):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrBusinessNotFound),
		errors.Is(err, domain.ErrAccountNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// ProblemDetailsJSON writes an RFC 9457 response. The optional args are a
// detail string overriding err's message and an int overriding the status
// derived from err.
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error, args ...any) error {
	status := fiber.StatusInternalServerError
	if err != nil {
		status = ErrorToStatusCode(err)
	}
	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Instance: c.OriginalURL(),
	}
	if err != nil && status != fiber.StatusInternalServerError {
		pd.Detail = err.Error()
	}
	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			pd.Detail = v
		case int:
			status = v
		default:
			pd.Errors = v
		}
	}
	pd.Status = status
	return c.Status(status).JSON(pd, mimeProblemJSON)
}

// LedgerErrorJSON renders a rejected ledger operation.
func LedgerErrorJSON(c *fiber.Ctx, e *domain.Error) error {
	body := LedgerError{
		Error:        e.Message,
		Code:         string(e.Code),
		Field:        e.Field,
		FromCurrency: e.FromCurrency,
		ToCurrency:   e.ToCurrency,
	}
	if e.Code == domain.CodeInsufficientBalance {
		body.Available = &e.Available
		body.Required = &e.Required
	}
	return c.Status(fiber.StatusOK).JSON(body)
}

// ErrorJSON renders ledger rule errors as LedgerError bodies and everything
// else as problem details.
func ErrorJSON(c *fiber.Ctx, title string, err error) error {
	if e, ok := domain.AsError(err); ok {
		return LedgerErrorJSON(c, e)
	}
	return ProblemDetailsJSON(c, title, err)
}

// BindAndValidate parses the request body and validates it using
// go-playground/validator. On failure the 400 response is already written
// and the returned pointer is nil.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, ProblemDetailsJSON(c, "Invalid request body", err, err.Error(), fiber.StatusBadRequest)
	}
	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return nil, ProblemDetailsJSON(c, "Validation failed", err, fields, "request validation failed", fiber.StatusBadRequest)
		}
		return nil, ProblemDetailsJSON(c, "Validation failed", err, err.Error(), fiber.StatusBadRequest)
	}
	return &input, nil
}
