// Copyright 2024 W3F Registrar Verifier Authors.
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package rules holds the pure transition functions that decide how a
// field's ChallengeStatus responds to a stimulus: a provided message, or a
// display-name similarity result. Nothing here touches the manager's maps
// or does I/O - the dispatch mirrors the switch-on-challenge-type shape
// ValidationAuthority.validateChallenge uses to pick a validation method
// per Boulder challenge type, except here the outcome is a value, not a
// side effect.
package rules

import "github.com/w3f/registrar-verifier/core"

// ChangeKind discriminates the notification a committed transition
// produces. A transition that produces no ChangeKind (ok == false from
// Apply*) means "no change, suppress notification."
type ChangeKind string

const (
	// ChangeVerificationValid fires when this transition makes a field
	// fully verified.
	ChangeVerificationValid ChangeKind = "verification_valid"
	// ChangeVerificationInvalid fires on a definitive mismatch. The field
	// remains eligible for retry.
	ChangeVerificationInvalid ChangeKind = "verification_invalid"
	// ChangeBackAndForthExpected fires when the first leg of an email
	// BackAndForth passes, but the second leg is still pending.
	ChangeBackAndForthExpected ChangeKind = "back_and_forth_expected"
)

// Change describes one committed transition, named after the field type it
// happened on. It carries no payload beyond that because the caller
// already has the updated core.FieldStatus in hand.
type Change struct {
	Kind  ChangeKind
	Field core.IdentityFieldType
}

// ApplyMessage is R1-R5: the response of a field's challenge to an inbound
// ProvidedMessage. ok is false when the stimulus produced no change -
// either the field was already fully verified (R1), both BackAndForth legs
// were already valid (R5), or the challenge kind does not consume message
// stimuli at all (CheckDisplayName, Unsupported - R7).
func ApplyMessage(current core.FieldStatus, msg core.ProvidedMessage) (updated core.FieldStatus, change Change, ok bool) {
	if current.IsValid() {
		return current, Change{}, false
	}

	ch := current.Challenge
	switch ch.Kind {
	case core.KindExpectMessage:
		if _, matched := ch.ExpectedMessage.Contains(msg); matched {
			ch.Status = core.Valid
			return withChallenge(current, ch), Change{Kind: ChangeVerificationValid, Field: current.Field.Type}, true
		}
		ch.Status = core.Invalid
		return withChallenge(current, ch), Change{Kind: ChangeVerificationInvalid, Field: current.Field.Type}, true

	case core.KindBackAndForth:
		if ch.FirstCheckStatus != core.Valid {
			if _, matched := ch.ExpectedMessage.Contains(msg); matched {
				ch.FirstCheckStatus = core.Valid
				return withChallenge(current, ch), Change{Kind: ChangeBackAndForthExpected, Field: current.Field.Type}, true
			}
			ch.FirstCheckStatus = core.Invalid
			return withChallenge(current, ch), Change{Kind: ChangeVerificationInvalid, Field: current.Field.Type}, true
		}
		if ch.SecondCheckStatus != core.Valid {
			if _, matched := ch.ExpectedMessageBack().Contains(msg); matched {
				ch.SecondCheckStatus = core.Valid
				return withChallenge(current, ch), Change{Kind: ChangeVerificationValid, Field: current.Field.Type}, true
			}
			ch.SecondCheckStatus = core.Invalid
			return withChallenge(current, ch), Change{Kind: ChangeVerificationInvalid, Field: current.Field.Type}, true
		}
		// Both legs already valid; current.IsValid() above should have
		// already caught this, but a BackAndForth can only reach here if
		// its own IsValid() logic and this dispatch ever disagree.
		return current, Change{}, false

	default:
		// CheckDisplayName and Unsupported do not respond to message
		// stimuli.
		return current, Change{}, false
	}
}

// ApplyDisplayNameResult is R6: the response of a CheckDisplayName
// challenge to a similarity scan. An empty violations list is success; a
// non-empty one is a definitive, retryable failure that records the
// offending names for display back to the submitter.
func ApplyDisplayNameResult(current core.FieldStatus, violations []core.DisplayName) (updated core.FieldStatus, change Change, ok bool) {
	if current.IsValid() {
		return current, Change{}, false
	}
	if current.Challenge.Kind != core.KindCheckDisplayName {
		return current, Change{}, false
	}

	ch := current.Challenge
	if len(violations) == 0 {
		ch.Status = core.Valid
		ch.Similarities = nil
		return withChallenge(current, ch), Change{Kind: ChangeVerificationValid, Field: current.Field.Type}, true
	}
	ch.Status = core.Invalid
	ch.Similarities = violations
	return withChallenge(current, ch), Change{Kind: ChangeVerificationInvalid, Field: current.Field.Type}, true
}

func withChallenge(fs core.FieldStatus, ch core.ChallengeStatus) core.FieldStatus {
	fs.Challenge = ch
	return fs
}
