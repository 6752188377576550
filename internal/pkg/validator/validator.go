package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var (
	dateRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)
	timeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// The package shares gin's binding engine, so request structs carry a single set of
// `binding:` tags and ShouldBindJSON understands the custom rules below.
func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		v = validator.New()
		v.SetTagName("binding")
	}
	validate = v
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = validate.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		return dateRe.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return timeRe.MatchString(fl.Field().String())
	})
}

// Validate struct fields. Keys are json paths without the root type, e.g. "clientDetails.email".
func Validate(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	if fields := Fields(err); fields != nil {
		return fields
	}
	return map[string]string{"_": err.Error()}
}

// Fields maps a validation error, including one returned by gin's ShouldBind, to failed
// rules keyed by json path. Other errors (bad JSON) yield nil.
func Fields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		out[ns] = fe.Tag()
	}
	return out
}

// Email reports whether s is a syntactically valid address.
func Email(s string) bool {
	return validate.Var(s, "required,email") == nil
}

// Date reports whether s is a YYYY-MM-DD calendar date.
func Date(s string) bool {
	return dateRe.MatchString(s)
}

// Time reports whether s is an HH:MM wall-clock time.
func Time(s string) bool {
	return timeRe.MatchString(s)
}
