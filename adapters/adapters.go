// Copyright 2024 W3F Registrar Verifier Authors.
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package adapters normalizes the raw payloads each transport hands the
// registrar into the uniform core.ExternalMessage the manager consumes.
// This mirrors how the original email adapter reduced a fetched message
// down to its first whitespace-delimited token before handing it to the
// rest of the pipeline, generalized here to every token on every line so
// a single utterance can carry more than one candidate match.
package adapters

import (
	"strings"

	"github.com/w3f/registrar-verifier/core"
)

// Tokenize splits a raw message body into the ordered list of candidate
// ProvidedMessageParts the matching rules test against: every
// whitespace-delimited token, across every line, with empty tokens
// dropped.
func Tokenize(body string) core.ProvidedMessage {
	fields := strings.Fields(body)
	parts := make(core.ProvidedMessage, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, core.ProvidedMessagePart(f))
	}
	return parts
}

// NormalizeMatrix builds the ExternalMessage for a Matrix room message.
// sender is the user's Matrix ID, the same field_address value the user
// must have claimed on their judgement request.
func NormalizeMatrix(sender, body string) core.ExternalMessage {
	return core.ExternalMessage{
		Origin:       core.OriginMatrix,
		FieldAddress: sender,
		Message:      Tokenize(body),
	}
}

// NormalizeTwitter builds the ExternalMessage for a Twitter mention or DM.
// handle is the sending account's handle.
func NormalizeTwitter(handle, body string) core.ExternalMessage {
	return core.ExternalMessage{
		Origin:       core.OriginTwitter,
		FieldAddress: handle,
		Message:      Tokenize(body),
	}
}

// NormalizeEmail builds the ExternalMessage for a fetched mail message.
// from is the sender's address as claimed on the judgement request.
func NormalizeEmail(from, body string) core.ExternalMessage {
	return core.ExternalMessage{
		Origin:       core.OriginEmail,
		FieldAddress: from,
		Message:      Tokenize(body),
	}
}
