package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

const notBlankTag = "notblank"

// Validator decodes and validates JSON request bodies.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewValidator creates a validator reporting JSON field names in English.
func NewValidator() *Validator {
	v := validator.New()

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && strings.TrimSpace(s) != ""
	})
	_ = v.RegisterTranslation(notBlankTag, trans,
		func(ut.Translator) error { return nil },
		func(ut.Translator, validator.FieldError) string { return "this field cannot be blank" })

	return &Validator{validate: v, translator: trans}
}

// RequestError is a malformed or invalid request body.
type RequestError struct {
	Message string
	Fields  map[string]string
}

func (e *RequestError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for f, m := range e.Fields {
		parts = append(parts, f+": "+m)
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

// Decode reads r's JSON body into dst and validates it. An empty body
// decodes to the zero value before validation.
func (v *Validator) Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &RequestError{Message: fmt.Sprintf("invalid JSON body: %v", err)}
	}
	return v.Struct(dst)
}

// Struct validates a decoded request.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RequestError{Message: err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Translate(v.translator)
	}
	return &RequestError{Message: "validation failed", Fields: fields}
}
