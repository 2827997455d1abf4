package requests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"jan-server/services/chat-api/internal/domain/conversation"
	"jan-server/services/chat-api/internal/utils/idgen"
	"jan-server/services/chat-api/internal/utils/platformerrors"
)

// StartConversationRequest is the body of POST /start.
type StartConversationRequest struct {
	ModelName string `json:"model_name" validate:"required,model_name" example:"Llama2"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	ModelName      string `json:"model_name" validate:"required,model_name" example:"Llama2"`
	Message        string `json:"message" validate:"required" example:"hi"`
	ConversationID string `json:"conversation_id" validate:"required,conversation_id" example:"abc123xyz"`
}

// ToInput converts a validated request to the domain input.
func (r ChatRequest) ToInput() conversation.ChatInput {
	return conversation.ChatInput{
		ModelName:      conversation.ModelName(r.ModelName),
		Message:        r.Message,
		ConversationID: r.ConversationID,
	}
}

// Validator checks request bodies with go-playground/validator. It knows the
// closed model set and the configured conversation id length.
type Validator struct {
	validate *validator.Validate
	idLength int
}

// NewValidator registers the model_name and conversation_id tags.
func NewValidator(idLength int) *Validator {
	if idLength <= 0 {
		idLength = idgen.DefaultLength
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = validate.RegisterValidation("model_name", func(fl validator.FieldLevel) bool {
		_, ok := conversation.ParseModelName(fl.Field().String())
		return ok
	})
	_ = validate.RegisterValidation("conversation_id", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) == idLength
	})

	return &Validator{validate: validate, idLength: idLength}
}

// Validate returns a VALIDATION platform error describing the first failing field.
func (v *Validator) Validate(ctx context.Context, req any) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation,
			"invalid request", err, "request-validation-failed")
	}
	return platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation,
		v.describe(fieldErrs[0]), err, "request-validation-failed")
}

func (v *Validator) describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", field)
	case "model_name":
		models := make([]string, len(conversation.SupportedModels))
		for i, m := range conversation.SupportedModels {
			models[i] = string(m)
		}
		return fmt.Sprintf("%q must be one of [%s]", field, strings.Join(models, ", "))
	case "conversation_id":
		return fmt.Sprintf("%q length must be %d characters long", field, v.idLength)
	default:
		return fmt.Sprintf("%q is invalid", field)
	}
}

const unknownFieldPrefix = "json: unknown field "

// DecodeStrict decodes a JSON request body into dst, rejecting keys dst does
// not declare.
func DecodeStrict(ctx context.Context, body io.Reader, dst any) error {
	if body == nil {
		return InvalidBody(ctx, io.EOF)
	}
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if field, ok := strings.CutPrefix(err.Error(), unknownFieldPrefix); ok {
			return platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation,
				fmt.Sprintf("%s is not allowed", field), err, "request-unknown-field")
		}
		return InvalidBody(ctx, err)
	}
	return nil
}

// InvalidBody wraps a JSON decoding failure.
func InvalidBody(ctx context.Context, err error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation,
		"request body must be a valid JSON object", err, "request-invalid-body")
}
