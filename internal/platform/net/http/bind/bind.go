// Package bind decodes and validates JSON request bodies
package bind

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"reflect"
	"strings"
	"sync"

	perr "hitclust/internal/platform/errors"
	"hitclust/internal/platform/logger"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"
)

// MaxBody caps a request body; parameter and run requests are far smaller
const MaxBody = 1 << 20

type checker struct {
	v     *validator.Validate
	trans ut.Translator
}

// short messages replacing the stock english ones
var messages = map[string]string{
	"min":    "{0} must be at least {1}",
	"max":    "{0} must be at most {1}",
	"oneof":  "{0} must be one of [{1}]",
	"finite": "{0} must be a finite number",
}

var validate = sync.OnceValue(func() checker {
	loc := en.New()
	trans, _ := ut.New(loc, loc).GetTranslator("en")

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("finite", finite)
	_ = entrans.RegisterDefaultTranslations(v, trans)
	for tag, text := range messages {
		_ = v.RegisterTranslation(tag, trans,
			func(t ut.Translator) error { return t.Add(tag, text, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				msg, _ := t.T(tag, fe.Field(), fe.Param())
				return msg
			},
		)
	}
	return checker{v: v, trans: trans}
})

// jsonName reports fields by their json key so errors match the request body
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

func finite(fl validator.FieldLevel) bool {
	switch f := fl.Field(); f.Kind() {
	case reflect.Float32, reflect.Float64:
		return !math.IsNaN(f.Float()) && !math.IsInf(f.Float(), 0)
	}
	return true
}

// ParseJSON decodes exactly one JSON value into T and validates it
// unknown fields and trailing data are rejected; an empty body is only fine on GET and DELETE
func ParseJSON[T any](r *http.Request) (T, error) {
	var zero, dst T
	defer func() {
		if err := r.Body.Close(); err != nil {
			logger.NamedC(r.Context(), "bind").Debug().Err(err).Msg("close request body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBody+1))
	if err != nil {
		return zero, perr.JSONErrf("read body: %v", err)
	}
	if len(body) > MaxBody {
		return zero, perr.JSONErrf("body exceeds %d bytes", MaxBody)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if r.Method == http.MethodGet || r.Method == http.MethodDelete {
			return zero, nil
		}
		return zero, perr.JSONErrf("empty body")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dst); err != nil {
		return zero, perr.JSONErrf("invalid JSON: %v", err)
	}
	if dec.More() {
		return zero, perr.JSONErrf("unexpected trailing data")
	}
	if err := Struct(dst); err != nil {
		return zero, err
	}
	return dst, nil
}

// Struct validates v by its tags and maps the first failure to a validation error on that field
// it also serves payloads that do not arrive over HTTP, like parameter files
func Struct(v any) error {
	c := validate()
	err := c.v.Struct(v)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		logger.Named("bind").Error().Err(inv).Msg("validator misuse")
		return perr.JSONErrf("validation error")
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return perr.WithField(perr.Newf(perr.ErrorCodeValidation, "%s", fe.Translate(c.trans)), fe.Field())
	}
	return perr.Newf(perr.ErrorCodeValidation, "%s", err.Error())
}
