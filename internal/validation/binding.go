package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

var errEngine = errors.New("validation: gin validator engine is not go-playground/validator")

// Register подключает правила к валидатору gin. Вызывается один раз при старте.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errEngine
	}
	return Configure(v)
}

// Configure добавляет в валидатор поддержку decimal и правило payment_method.
func Configure(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonFieldName)
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	return v.RegisterValidation("payment_method", paymentMethod)
}

// decimalValue отдаёт валидатору число, чтобы работали required, gt, lte.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return nil
}

func paymentMethod(fl validator.FieldLevel) bool {
	_, ok := models.ValidPaymentMethods[fl.Field().String()]
	return ok
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

// FieldErrors раскладывает ошибки валидации по полям запроса.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = describe(fe)
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "обязательное поле"
	case "gt":
		return "должно быть больше " + fe.Param()
	case "uuid", "uuid4":
		return "должно быть UUID"
	case "email":
		return "некорректный email"
	case "oneof":
		return "допустимые значения: " + fe.Param()
	case "max":
		return "слишком длинное значение"
	case "payment_method":
		return "неподдерживаемый способ вывода"
	default:
		return "некорректное значение"
	}
}
