package booking

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hackgods/turf-booking/internal/catalog"
)

var mobilePattern = regexp.MustCompile(`^\+?[1-9]\d{9,14}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	must("mobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	})
	must("isodate", func(fl validator.FieldLevel) bool {
		return IsISODate(fl.Field().String())
	})
	must("sport", func(fl validator.FieldLevel) bool {
		_, err := catalog.ParseSport(fl.Field().String())
		return err == nil
	})
	must("slot", func(fl validator.FieldLevel) bool {
		return catalog.IsSlot(fl.Field().String())
	})

	return v
}

// BookingForm is what a customer submits before paying.
type BookingForm struct {
	FullName  string `json:"full_name" validate:"min=2"`
	Mobile    string `json:"mobile" validate:"mobile"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	TeamName  string `json:"team_name,omitempty" validate:"omitempty,max=80"`
	SportType string `json:"sport_type" validate:"sport"`
	Date      string `json:"date" validate:"required,isodate"`
	TimeSlot  string `json:"time_slot" validate:"required,slot"`
}

func (f BookingForm) normalized() BookingForm {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Mobile = strings.TrimSpace(f.Mobile)
	f.Email = strings.TrimSpace(f.Email)
	f.TeamName = strings.TrimSpace(f.TeamName)
	f.Date = strings.TrimSpace(f.Date)
	f.TimeSlot = strings.TrimSpace(f.TimeSlot)
	return f
}

// Validate returns a *ValidationError listing every bad field, or nil.
func (f BookingForm) Validate() error {
	return validateStruct(f)
}

type BlockSlotInput struct {
	Date      string `json:"date" validate:"required,isodate"`
	SportType string `json:"sport_type" validate:"sport"`
	TimeSlot  string `json:"time_slot" validate:"required,slot"`
	Reason    string `json:"reason,omitempty" validate:"max=200"`
}

type BlockDateInput struct {
	Date   string `json:"date" validate:"required,isodate"`
	Reason string `json:"reason,omitempty" validate:"max=200"`
}

var fieldMessages = map[string]string{
	"full_name.min":      "Name must be at least 2 characters",
	"mobile.mobile":      "Invalid mobile number",
	"email.email":        "Invalid email",
	"team_name.max":      "Team name is too long",
	"sport_type.sport":   "Unknown sport",
	"date.required":      "Date is required",
	"date.isodate":       "Invalid date format",
	"time_slot.required": "Time slot is required",
	"time_slot.slot":     "Unknown time slot",
	"reason.max":         "Reason is too long",
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		fields[fe.Field()] = msg
	}
	return &ValidationError{Fields: fields}
}

// IsISODate reports whether s is a real calendar date in YYYY-MM-DD form.
func IsISODate(s string) bool {
	if len(s) != len(time.DateOnly) {
		return false
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func checkDate(date string) error {
	if !IsISODate(date) {
		return fieldError("date", "Invalid date format")
	}
	return nil
}

func checkSport(s string) (catalog.Sport, error) {
	sport, err := catalog.ParseSport(s)
	if err != nil {
		return "", fieldError("sport_type", "Unknown sport")
	}
	return sport, nil
}
