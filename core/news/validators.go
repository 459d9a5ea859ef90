package news

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/vocsite/chuo/core"
)

var (
	statusTag  = "newsstatus"
	statusText = "status must be one of: published, draft"

	categoryTag  = "newscategory"
	categoryText = "invalid category"
)

// InitValidators registers the news-specific validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)

	_ = validate.RegisterValidation(categoryTag, categoryValidation)
	core.RegisterCustomTranslation(validate, translator, categoryTag, categoryText)
}

func statusValidation(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case StatusPublished, StatusDraft:
		return true
	}
	return false
}

func categoryValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, cat := range Categories {
		if val == cat {
			return true
		}
	}
	return false
}
