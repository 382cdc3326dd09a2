package http

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// requestValidator names fields after their query or json tag.
var requestValidator = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "param", "json"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}()

// rule describes how a failed validation tag reads to a client.
// {field} and {param} are substituted; unit is appended for string fields.
type rule struct {
	text     string
	paramKey string
	unit     string
}

var rules = map[string]rule{
	"required": {text: "{field} is required"},
	"min":      {text: "{field} must be at least {param}", paramKey: "min", unit: " characters"},
	"max":      {text: "{field} must be at most {param}", paramKey: "max", unit: " characters"},
	"len":      {text: "{field} must be exactly {param}", paramKey: "len", unit: " characters"},
	"gt":       {text: "{field} must be greater than {param}", paramKey: "value"},
	"gte":      {text: "{field} must be greater than or equal to {param}", paramKey: "min"},
	"lt":       {text: "{field} must be less than {param}", paramKey: "value"},
	"lte":      {text: "{field} must be less than or equal to {param}", paramKey: "max"},
	"oneof":    {text: "{field} must be one of: {param}"},
}

// ReadAndValidateRequest binds req, fills its `default` tags and validates it.
// It returns nil, or a []ValidationError for BadRequestResponse.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	if err := c.Bind(req); err != nil {
		return bindFailure(err)
	}
	if errs := Validate(c.Request().Context(), req); len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate fills defaults on an already decoded req and checks its tags.
func Validate(ctx context.Context, req interface{}) []ValidationError {
	if err := defaults.Set(req); err != nil {
		return []ValidationError{{Code: "ERR_DEFAULTS", Message: err.Error()}}
	}
	err := requestValidator.StructCtx(ctx, req)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
	}
	out := make([]ValidationError, 0, len(fields))
	for _, fe := range fields {
		out = append(out, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) ValidationError {
	ve := ValidationError{Code: "ERR_" + strings.ToUpper(fe.Tag()), Field: fe.Field()}
	r, ok := rules[fe.Tag()]
	if !ok {
		ve.Message = fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
		return ve
	}

	param := fe.Param()
	if fe.Tag() == "oneof" {
		options := strings.Fields(param)
		ve.Params = map[string]interface{}{"options": options}
		param = strings.Join(options, ", ")
	} else if r.paramKey != "" {
		ve.Params = map[string]interface{}{r.paramKey: param}
	}
	if r.unit != "" && fe.Kind() == reflect.String {
		param += r.unit
	}
	ve.Message = strings.NewReplacer("{field}", fe.Field(), "{param}", param).Replace(r.text)
	return ve
}

// bindFailure reports a malformed request, e.g. a non-numeric n.
func bindFailure(err error) []ValidationError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return []ValidationError{{Code: "ERR_BIND", Message: fmt.Sprint(he.Message)}}
	}
	return []ValidationError{{Code: "ERR_BIND", Message: err.Error()}}
}
