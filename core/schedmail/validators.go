package schedmail

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/zuberi/fizikia/core"
)

var (
	futureSendAtTag  = "futuresendat"
	futureSendAtText = "send_at must be in the future"
)

// InitValidators registers scheduled email validators and their translations.
// It must be called once at startup.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(scheduledEmailStructValidation, NewScheduledEmail{}, UpdateScheduledEmail{})
	core.RegisterCustomTranslation(validate, translator, futureSendAtTag, futureSendAtText)
}

// scheduledEmailStructValidation does struct level validation on scheduled email input structs.
func scheduledEmailStructValidation(sl validator.StructLevel) {
	switch e := sl.Current().Interface().(type) {
	case NewScheduledEmail:
		validateSendAt(&e.SendAt, sl)
	case UpdateScheduledEmail:
		validateSendAt(e.SendAt, sl)
	}
}

func validateSendAt(sendAt *time.Time, sl validator.StructLevel) {
	if sendAt != nil && !sendAt.IsZero() && !sendAt.After(time.Now()) {
		sl.ReportError(sendAt, "send_at", "SendAt", futureSendAtTag, "")
	}
}
