package intake

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Body of POST /register. Apart from the Discord ID the fields are opaque;
// they are shown to staff as-is.
type Application struct {
	FullName  string `json:"fullName" validate:"required,max=256"`
	Age       string `json:"age" validate:"required,max=16"`
	Email     string `json:"email" validate:"required,max=320"`
	IGN       string `json:"ign" validate:"required,max=256"`
	DiscordID string `json:"discordId" validate:"required,max=80,alphanum"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (a *Application) Normalize() {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Age = strings.TrimSpace(a.Age)
	a.Email = strings.TrimSpace(a.Email)
	a.IGN = strings.TrimSpace(a.IGN)
	a.DiscordID = strings.TrimSpace(a.DiscordID)
}

// Returns a message fit for the HTTP caller, naming the first offending field.
func (a *Application) Validate() error {
	err := validate.Struct(a)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}
	fieldErr := validationErrors[0]
	field := jsonFieldName(fieldErr.Field())
	switch fieldErr.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "max":
		return fmt.Errorf("%s must be at most %s characters", field, fieldErr.Param())
	case "alphanum":
		return fmt.Errorf("%s must be a Discord user ID", field)
	default:
		return fmt.Errorf("%s is invalid", field)
	}
}

func jsonFieldName(field string) string {
	switch field {
	case "FullName":
		return "fullName"
	case "Age":
		return "age"
	case "Email":
		return "email"
	case "IGN":
		return "ign"
	case "DiscordID":
		return "discordId"
	}
	return field
}
