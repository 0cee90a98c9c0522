package security

import (
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/domain"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/port"
)

const (
	defaultMinPasswordLength   = 10
	defaultMinCharacterClasses = 3
	defaultMinZxcvbnScore      = 3
)

// PasswordPolicy validates new passwords against length, character class,
// user-input and zxcvbn strength rules.
type PasswordPolicy struct {
	MinLength   int
	MinClasses  int
	MinStrength int
}

// NewPasswordPolicy returns the policy applied at registration.
func NewPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:   defaultMinPasswordLength,
		MinClasses:  defaultMinCharacterClasses,
		MinStrength: defaultMinZxcvbnScore,
	}
}

// Validate checks password in the context of the account it is chosen for.
func (p *PasswordPolicy) Validate(password string, ctx domain.PasswordContext) error {
	inputs := make([]string, 0, 3)
	if ctx.Username != "" {
		inputs = append(inputs, ctx.Username)
	}
	if ctx.Email != "" {
		inputs = append(inputs, ctx.Email)
	}
	if ctx.Phone != nil && *ctx.Phone != "" {
		inputs = append(inputs, *ctx.Phone)
	}

	return NewPasswordValidator(
		MinLengthRule(p.MinLength),
		CharacterClassesRule(p.MinClasses),
		NotContainingRule(inputs...),
		StrengthRule(p.MinStrength, inputs...),
	).Validate(password)
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)
