package quiz

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/quizroom/core"
)

var (
	questionTypeTag  = "questiontype"
	questionTypeText = "type must be one of: multiple_choice, true_false, identification"
)

// InitValidators registers the quiz validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(questionTypeTag, questionTypeValidation)
	core.RegisterCustomTranslation(validate, translator, questionTypeTag, questionTypeText)
}

func questionTypeValidation(fl validator.FieldLevel) bool {
	return core.ContainsString(QuestionTypes, fl.Field().String())
}
