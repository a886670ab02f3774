package middleware

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validatorOnce sync.Once

var skuRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-_.]{0,63}$`)

// InitValidator registers the fulfillment validators on gin's binding engine
func InitValidator() {
	validatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		RegisterValidators(v)
	})
}

// RegisterValidators adds custom tags to v and reports field names by their json tag
func RegisterValidators(v *validator.Validate) {
	_ = v.RegisterValidation("sku", func(fl validator.FieldLevel) bool {
		return skuRegex.MatchString(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}
