package assignment

import (
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/zuberi/fizikia/core"
)

var (
	minOptionsTag  = "minoptions"
	minOptionsText = "multiple choice questions need at least 2 options"

	answerInOptionsTag  = "answerinoptions"
	answerInOptionsText = "correct answer must be one of the options"

	numericAnswerTag  = "numericanswer"
	numericAnswerText = "correct answer must be a number"

	noOptionsTag  = "nooptions"
	noOptionsText = "text questions cannot have options"

	noAnswerTag  = "noanswer"
	noAnswerText = "text questions are graded manually and cannot have a correct answer"

	opensBeforeDueTag  = "opensbeforedue"
	opensBeforeDueText = "opens_at must be before due_at"
)

// InitValidators registers assignment validators and their translations.
// It must be called once at startup.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(assignmentStructValidation, NewAssignment{}, UpdateAssignment{})
	core.RegisterCustomTranslation(validate, translator, minOptionsTag, minOptionsText)
	core.RegisterCustomTranslation(validate, translator, answerInOptionsTag, answerInOptionsText)
	core.RegisterCustomTranslation(validate, translator, numericAnswerTag, numericAnswerText)
	core.RegisterCustomTranslation(validate, translator, noOptionsTag, noOptionsText)
	core.RegisterCustomTranslation(validate, translator, noAnswerTag, noAnswerText)
	core.RegisterCustomTranslation(validate, translator, opensBeforeDueTag, opensBeforeDueText)
}

// assignmentStructValidation does struct level validation on assignment input structs.
func assignmentStructValidation(sl validator.StructLevel) {
	switch a := sl.Current().Interface().(type) {
	case NewAssignment:
		validateWindow(a.OpensAt, a.DueAt, sl)
		validateQuestions(a.Questions, sl)
	case UpdateAssignment:
		validateWindow(a.OpensAt, a.DueAt, sl)
		if a.Questions != nil {
			validateQuestions(a.Questions, sl)
		}
	}
}

func validateWindow(opensAt, dueAt *time.Time, sl validator.StructLevel) {
	if opensAt != nil && dueAt != nil && !opensAt.Before(*dueAt) {
		sl.ReportError(opensAt, "opens_at", "OpensAt", opensBeforeDueTag, "")
	}
}

func validateQuestions(questions []NewQuestion, sl validator.StructLevel) {
	for i, q := range questions {
		if field, tag := questionKindRules(q); tag != "" {
			sl.ReportError(q, fmt.Sprintf("questions[%d].%s", i, field), "Questions", tag, "")
		}
	}
}
