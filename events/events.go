// Copyright 2024 W3F Registrar Verifier Authors.
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package events translates the pure outcomes the rules package computes
// into the wire-facing events described in the design: FieldStatusVerified,
// DisplayNamePersisted, and Notification. This is the same kind of
// proto-shaped translation layer grpc.RegistrationAuthorityServerWrapper
// does between core types and wire requests, except the destination here
// is core.EventSink rather than a gRPC response.
package events

import (
	"fmt"

	"github.com/w3f/registrar-verifier/core"
	"github.com/w3f/registrar-verifier/rules"
)

// UpdateKind extends rules.ChangeKind with the one identity-level change -
// NewIdentityInserted - that VerificationRules never produces, because it
// isn't a field transition.
type UpdateKind string

const (
	UpdateNewIdentityInserted  UpdateKind = "new_identity_inserted"
	UpdateVerificationValid    UpdateKind = "verification_valid"
	UpdateVerificationInvalid  UpdateKind = "verification_invalid"
	UpdateBackAndForthExpected UpdateKind = "back_and_forth_expected"
)

// Update is the notification-worthy fact of a single committed manager
// operation. Field is the zero value for NewIdentityInserted, which has no
// associated field.
type Update struct {
	Kind       UpdateKind
	NetAddress core.NetworkAddress
	Field      core.IdentityFieldType
}

// FromChange lifts a rules.Change, produced by ApplyMessage or
// ApplyDisplayNameResult, into the Update the manager publishes.
func FromChange(addr core.NetworkAddress, c rules.Change) Update {
	var kind UpdateKind
	switch c.Kind {
	case rules.ChangeVerificationValid:
		kind = UpdateVerificationValid
	case rules.ChangeVerificationInvalid:
		kind = UpdateVerificationInvalid
	case rules.ChangeBackAndForthExpected:
		kind = UpdateBackAndForthExpected
	}
	return Update{Kind: kind, NetAddress: addr, Field: c.Field}
}

// NewIdentityInserted builds the Update emitted the first time an address
// is seen by insert_identity.
func NewIdentityInserted(addr core.NetworkAddress) Update {
	return Update{Kind: UpdateNewIdentityInserted, NetAddress: addr}
}

// Notification renders an Update as the severity level and human-readable
// text a subscriber sees. Text is intentionally plain - it is a log line
// and UI toast, not a machine-parsed payload.
func (u Update) Notification() (core.NotificationLevel, string) {
	switch u.Kind {
	case UpdateNewIdentityInserted:
		return core.LevelInfo, fmt.Sprintf("identity registered: %s/%s", u.NetAddress.Network, u.NetAddress.Address)
	case UpdateVerificationValid:
		return core.LevelSuccess, fmt.Sprintf("%s/%s: %s verified", u.NetAddress.Network, u.NetAddress.Address, u.Field)
	case UpdateVerificationInvalid:
		return core.LevelWarn, fmt.Sprintf("%s/%s: %s verification failed", u.NetAddress.Network, u.NetAddress.Address, u.Field)
	case UpdateBackAndForthExpected:
		return core.LevelInfo, fmt.Sprintf("%s/%s: %s awaiting reply token", u.NetAddress.Network, u.NetAddress.Address, u.Field)
	default:
		return core.LevelInfo, ""
	}
}

// Publish fires the appropriate core.EventSink callbacks for a committed
// field transition: the raw FieldStatusVerified record, followed by the
// human-facing Notification derived from upd.
func Publish(sink core.EventSink, upd Update, status core.FieldStatus) {
	if sink == nil {
		return
	}
	sink.FieldStatusVerified(upd.NetAddress, status)
	level, text := upd.Notification()
	if text != "" {
		sink.Notify(level, text)
	}
}

// PublishIdentityInserted fires the Notification for a brand-new identity.
// There is no FieldStatus to report yet, so it skips FieldStatusVerified.
func PublishIdentityInserted(sink core.EventSink, addr core.NetworkAddress) {
	if sink == nil {
		return
	}
	upd := NewIdentityInserted(addr)
	level, text := upd.Notification()
	sink.Notify(level, text)
}

// PublishDisplayNamePersisted fires DisplayNamePersisted once a name has
// been accepted and recorded in the registry.
func PublishDisplayNamePersisted(sink core.EventSink, addr core.NetworkAddress, name core.DisplayName) {
	if sink == nil {
		return
	}
	sink.DisplayNamePersisted(addr, name)
}
