package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

var (
	lowerRe   = regexp.MustCompile(`[a-z]`)
	upperRe   = regexp.MustCompile(`[A-Z]`)
	digitRe   = regexp.MustCompile(`\d`)
	letterRe  = regexp.MustCompile(`[a-zA-Z]`)
	specialRe = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)

	// local@domain.tld, no whitespace, one @.
	emailShapeRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func init() {
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return lowerRe.MatchString(s) && upperRe.MatchString(s) && digitRe.MatchString(s) && specialRe.MatchString(s)
	})
	// alphanum_mix requires at least one letter and one digit.
	_ = v.RegisterValidation("alphanum_mix", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return letterRe.MatchString(s) && digitRe.MatchString(s)
	})
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// EmailShape reports whether s looks like local@domain.tld.
func EmailShape(s string) bool {
	return emailShapeRe.MatchString(s)
}

// NormalizeEmail trims and lower-cases an address before any lookup or write.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Var validates a single value against tag, e.g. Var(username, "alphanum_mix").
func Var(field interface{}, tag string) error {
	return v.Var(field, tag)
}
