package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "receipts-bot/internal/common/errors"
)

const (
	// Максимальная длина причины отклонения чека
	MaxRejectionReasonLength = 500
	// Максимальное число чеков в одной массовой операции
	MaxBulkSize = 100
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator возвращает общий экземпляр валидатора
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// notblank отклоняет строки из одних пробелов
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		validate = v
	})
	return validate
}

// Var проверяет значение по тегу validate и возвращает ошибку валидации
// для первого нарушенного правила. field подставляется в имя поля ошибки
func Var(field string, value any, tag string) error {
	err := Validator().Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "Validation failed")
	}
	fe := fieldErrs[0]
	// Для элементов после dive валидатор отдаёт имя вида "[0]"
	return apperrors.NewValidationError(field+fe.Field(), describe(fe))
}

// RejectionReason проверяет причину отклонения чека
func RejectionReason(reason string) error {
	return Var("reason", reason, fmt.Sprintf("required,notblank,max=%d", MaxRejectionReasonLength))
}

// BulkIDs проверяет список идентификаторов массовой операции
func BulkIDs(ids []int64) error {
	return Var("ids", ids, fmt.Sprintf("required,min=1,max=%d,unique,dive,gt=0", MaxBulkSize))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "max":
		return fmt.Sprintf("cannot exceed %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "unique":
		return "must not contain duplicates"
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}
