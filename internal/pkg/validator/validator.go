package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"tablebooking/internal/pkg/apperr"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Check validates v and returns the first failed rule as an apperr validation error.
func Check(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Invalid("", "struct", err.Error())
	}
	e := verrs[0]
	msg := fmt.Sprintf("%s failed rule %q", e.Field(), e.Tag())
	if e.Param() != "" {
		msg = fmt.Sprintf("%s failed rule %q (%s)", e.Field(), e.Tag(), e.Param())
	}
	return apperr.Invalid(e.Field(), e.Tag(), msg)
}
