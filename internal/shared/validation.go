package shared

import (
	"errors"
	"sort"

	"github.com/go-playground/validator/v10"
)

var tagMessages = map[string]string{
	"required": "필수 입력 항목입니다.",
	"email":    "이메일 형식이 올바르지 않습니다.",
	"min":      "입력값이 너무 짧습니다.",
	"max":      "입력값이 너무 깁니다.",
	"oneof":    "허용되지 않는 값입니다.",
	"numeric":  "숫자만 입력해 주세요.",
	"gte":      "허용 범위를 벗어났습니다.",
	"lte":      "허용 범위를 벗어났습니다.",
}

// FieldErrors flattens validator errors into field -> message, keyed by the
// struct field name.
func FieldErrors(err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}
	for _, fe := range verrs {
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = "입력값을 확인해 주세요."
		}
		out[fe.Field()] = msg
	}
	return out
}

// ValidateStruct runs v over s and reports the first failing field, in
// field-name order, as a ValidationError.
func ValidateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	fields := FieldErrors(err)
	if len(fields) == 0 {
		return NewValidationError("", err.Error())
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return NewValidationError(names[0], fields[names[0]])
}
