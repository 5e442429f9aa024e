package handler

import (
	"engage/entity"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("site_event", func(fl validator.FieldLevel) bool {
		switch entity.EventType(fl.Field().String()) {
		case entity.EventTypeView, entity.EventTypeClick, entity.EventTypePanelOpen:
			return true
		}
		return false
	})

	return v
}

// validateRequest maps validator failures to InvalidRequest, naming the first bad field.
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return invalidRequest("%s failed on %s", fe.Field(), tagDesc(fe))
	}

	return invalidRequest("%v", err)
}

func tagDesc(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
	}
	return fe.Tag()
}
