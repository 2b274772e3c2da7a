// Package challenge builds the ChallengeStatus a newly claimed field is
// assigned, picking the right protocol for the field type and minting
// fresh random tokens the way core.NewOnChainChallenge does for the
// identity as a whole.
//
// This mirrors the role Boulder's RA plays when it calls its PolicyAuthority
// to decide which challenges a new Authorization should carry, except here
// the policy is fixed per field type rather than configurable per CA.
package challenge

import "github.com/w3f/registrar-verifier/core"

// New builds the ChallengeStatus for a freshly claimed field, given the
// registrar's own contact field for that field type (where the user must
// send their response).
func New(userField core.IdentityField, registrarField core.RegistrarField) (core.ChallengeStatus, error) {
	switch userField.Type {
	case core.FieldTypeDisplayName:
		return core.NewCheckDisplayName(), nil

	case core.FieldTypeEmail:
		msg, err := core.NewExpectedMessage()
		if err != nil {
			return core.ChallengeStatus{}, err
		}
		msgBack, err := core.NewExpectedMessage()
		if err != nil {
			return core.ChallengeStatus{}, err
		}
		return core.NewBackAndForth(userField, registrarField, msg, msgBack), nil

	case core.FieldTypeTwitter, core.FieldTypeMatrix:
		msg, err := core.NewExpectedMessage()
		if err != nil {
			return core.ChallengeStatus{}, err
		}
		return core.NewExpectMessage(userField, registrarField, msg), nil

	case core.FieldTypeLegalName, core.FieldTypeWeb, core.FieldTypePGPFingerprint,
		core.FieldTypeImage, core.FieldTypeAdditional:
		return core.NewUnsupported(), nil

	default:
		return core.NewUnsupported(), nil
	}
}

// NewFieldStatus builds the full FieldStatus - field plus freshly assigned
// challenge - for a claimed field. This is the entry point callers
// (adapters.BuildIdentityState, when turning a judgement request into an
// IdentityState) actually use.
func NewFieldStatus(userField core.IdentityField, registrarField core.RegistrarField) (core.FieldStatus, error) {
	ch, err := New(userField, registrarField)
	if err != nil {
		return core.FieldStatus{}, err
	}
	return core.NewFieldStatus(userField, ch), nil
}
