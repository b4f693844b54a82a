package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

type authRequest struct {
	AuthToken string `json:"authToken" validate:"required"`
}

type paymentStatusRequest struct {
	AuthToken string `json:"authToken" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
}

type historyRequest struct {
	AuthToken string `json:"authToken" validate:"required"`
	Page      int    `json:"page" validate:"gte=0"`
	Limit     int    `json:"limit" validate:"gte=0"`
	Status    string `json:"status"`
}

type listNetworksRequest struct {
	Type string `json:"type" validate:"omitempty,oneof=all deposit withdraw"`
}

type listTokensRequest struct {
	Network string `json:"network" validate:"required"`
	Type    string `json:"type" validate:"omitempty,oneof=all deposit withdraw"`
}

type symbolRequest struct {
	Symbol string `json:"symbol" validate:"required"`
}

type multiplePricesRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1"`
}

type convertRequest struct {
	Symbol    string           `json:"symbol" validate:"required"`
	Amount    *decimal.Decimal `json:"amount" validate:"required"`
	Direction string           `json:"direction" validate:"required,oneof=toUsd fromUsd"`
}

type validateAddressRequest struct {
	Address string `json:"address" validate:"required"`
	Network string `json:"network" validate:"required"`
}

type verifyWebhookRequest struct {
	Signature string          `json:"signature" validate:"required"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
}

type userTokenRequest struct {
	UserToken string `json:"userToken" validate:"required"`
}

// decode fills dst from the tool arguments and validates it. It returns the
// user-facing message for the first problem, or "" when dst is usable.
func decode(args json.RawMessage, dst any) string {
	args = bytes.TrimSpace(args)
	if len(args) == 0 || bytes.Equal(args, []byte("null")) {
		args = []byte("{}")
	}
	if err := json.Unmarshal(args, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return fmt.Sprintf("%s must be a %s", typeErr.Field, jsonKind(typeErr.Type))
		}
		return "invalid arguments: " + err.Error()
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldMessage(verrs[0])
		}
		return "invalid arguments: " + err.Error()
	}
	return ""
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "min":
		if fe.Kind() == reflect.Slice && fe.Type().Elem().Kind() == reflect.String {
			return field + " array is required"
		}
		return field + " is required"
	case "oneof":
		opts := strings.Fields(fe.Param())
		quoted := make([]string, len(opts))
		for i, o := range opts {
			quoted[i] = fmt.Sprintf("%q", o)
		}
		if len(quoted) == 2 {
			return fmt.Sprintf("%s must be %s or %s", field, quoted[0], quoted[1])
		}
		return fmt.Sprintf("%s must be one of %s", field, strings.Join(quoted, ", "))
	case "gte":
		return field + " must not be negative"
	}
	return fmt.Sprintf("%s is invalid", field)
}

func jsonKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int64, reflect.Float64:
		return "number"
	}
	return t.String()
}
