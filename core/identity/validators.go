package identity

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/smartlearn/core"
)

var (
	signUpRoleTag  = "signuprole"
	signUpRoleText = "{0} must be one of STUDENT or TEACHER"

	planTag  = "plan"
	planText = "{0} must be one of DAILY, WEEKLY or MONTHLY"
)

// InitValidators registers the identity validators on `validate`.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(signUpRoleTag, signUpRoleValidation)
	core.RegisterCustomTranslation(validate, translator, signUpRoleTag, signUpRoleText)

	_ = validate.RegisterValidation(planTag, planValidation)
	core.RegisterCustomTranslation(validate, translator, planTag, planText)
}

func signUpRoleValidation(fl validator.FieldLevel) bool {
	role := Role(strings.ToUpper(fl.Field().String()))
	for _, r := range SignUpRoles {
		if role == r {
			return true
		}
	}
	return false
}

func planValidation(fl validator.FieldLevel) bool {
	_, ok := ParsePlan(fl.Field().String())
	return ok
}
