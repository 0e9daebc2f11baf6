package nostd

import (
	"fmt"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// CustomValidator echo请求参数校验器
type CustomValidator struct {
	Validator *validator.Validate

	trans ut.Translator
}

// TransInit 初始化校验错误信息翻译器
func (cv *CustomValidator) TransInit() error {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)

	trans, ok := uni.GetTranslator("en")
	if !ok {
		return fmt.Errorf("translator not found")
	}
	cv.trans = trans

	return entranslations.RegisterDefaultTranslations(cv.Validator, trans)
}

// Validate 实现 echo.Validator 接口
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.Validator.Struct(i); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && cv.trans != nil {
			for _, e := range errs {
				return fmt.Errorf("%s", e.Translate(cv.trans))
			}
		}
		return err
	}
	return nil
}
