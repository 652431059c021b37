package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/archpal/coaching-platform/internal/model"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("college_year", func(fl validator.FieldLevel) bool {
		return model.CollegeYear(fl.Field().String()).Valid()
	})
	return v
}

// validateProfile trims the form and returns a PolicyViolationError listing
// every invalid field.
func (c *Controller) validateProfile(req *model.ProfileRequest) error {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.CollegeYear = strings.TrimSpace(req.CollegeYear)
	req.Major = strings.TrimSpace(req.Major)
	req.CourseNumber = strings.TrimSpace(req.CourseNumber)

	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return &model.PolicyViolationError{
		Reason: "please fill in all required fields",
		Fields: fields,
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "college_year":
		return "must be one of the listed college years"
	default:
		return "is invalid"
	}
}
