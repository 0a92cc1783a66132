// Package validation 请求参数校验：自定义规则注册与错误翻译
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	pkgerrors "github.com/Tuns2000/Campusfix-sub000/pkg/errors"
)

// MsgInvalidInput 校验失败时的总体提示
const MsgInvalidInput = "Ошибка валидации"

var phonePattern = regexp.MustCompile(`^\+?[0-9\s\-()]{5,20}$`)

// Setup 在 gin 默认校验器上注册自定义规则
func Setup() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin 校验引擎不是 validator/v10")
	}
	return Register(v)
}

// New 独立的校验器实例（tag 与 gin 一致为 binding），用于单元测试
func New() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	if err := Register(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Register 注册自定义规则、字段名与部分更新类型
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(fieldName)

	rules := map[string]validator.Func{
		"password": isPassword,
		"isodate":  isISODate,
		"phone":    isPhone,
		"notblank": validators.NotBlank,
		"textmin":  hasTextMin,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("注册校验规则 %s 失败: %w", tag, err)
		}
	}

	v.RegisterCustomTypeFunc(optionalValue, dto.Optional[string]{})
	v.RegisterStructValidation(rejectNulls,
		dto.UpdateDefectRequest{},
		dto.UpdateProjectRequest{},
		dto.UpdateStageRequest{},
	)
	return nil
}

// 错误中使用 json / form 标签名
func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

func optionalValue(field reflect.Value) interface{} {
	if o, ok := field.Interface().(interface{ ValidationValue() interface{} }); ok {
		return o.ValidationValue()
	}
	return nil
}

func rejectNulls(sl validator.StructLevel) {
	nc, ok := sl.Current().Interface().(dto.NullChecker)
	if !ok {
		return
	}
	for _, name := range nc.NullViolations() {
		sl.ReportError(nil, name, name, "notnull", "")
	}
}

// ── 自定义规则 ──

// 至少 8 位，同时包含大小写字母、数字与特殊字符
func isPassword(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if utf8.RuneCountInString(s) < 8 {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && lower && digit && special
}

func isISODate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != len(dto.DateLayout) {
		return false
	}
	_, err := time.Parse(dto.DateLayout, s)
	return err == nil
}

func isPhone(fl validator.FieldLevel) bool {
	return phonePattern.MatchString(fl.Field().String())
}

// 去掉首尾空白后的最小字符数，与服务层 TrimSpace 后入库的值一致
func hasTextMin(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= n
}

// ── 错误翻译 ──

// Translate 把绑定/校验错误转换为字段级错误列表
// 返回 false 表示 err 不属于请求参数错误
func Translate(err error) ([]pkgerrors.FieldError, bool) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]pkgerrors.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, pkgerrors.FieldError{Field: fe.Field(), Message: message(fe)})
		}
		return out, true
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []pkgerrors.FieldError{{Field: typeErr.Field, Message: "Неверный тип значения"}}, true
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return []pkgerrors.FieldError{{Field: "body", Message: "Некорректный JSON"}}, true
	}

	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return []pkgerrors.FieldError{{Field: "query", Message: "Неверный формат числа"}}, true
	}

	return nil, false
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Обязательное поле"
	case "notnull":
		return "Поле не может быть null"
	case "notblank":
		return "Поле не может быть пустым"
	case "textmin":
		return "Минимальная длина: " + fe.Param()
	case "email":
		return "Некорректный email"
	case "uuid", "uuid4":
		return "Некорректный идентификатор"
	case "isodate":
		return "Дата должна быть в формате YYYY-MM-DD"
	case "password":
		return "Пароль должен содержать не менее 8 символов, заглавные и строчные буквы, цифры и спецсимволы"
	case "phone":
		return "Некорректный номер телефона"
	case "oneof":
		return "Допустимые значения: " + strings.ReplaceAll(fe.Param(), "'", "")
	case "min":
		if fe.Kind() == reflect.String {
			return "Минимальная длина: " + fe.Param()
		}
		return "Минимальное значение: " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "Максимальная длина: " + fe.Param()
		}
		return "Максимальное значение: " + fe.Param()
	default:
		return "Некорректное значение"
	}
}
