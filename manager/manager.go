// Copyright 2024 W3F Registrar Verifier Authors.
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package manager holds IdentityManager, the state machine that owns every
// in-flight identity, with every operation (reads included) serialized
// under one mutex: its fields, its
// reverse index from claimed field to address, its display-name registry,
// and its on-chain challenges. It is the struct-with-injected-dependencies
// (clock, logger, stats scope) that ra.RegistrationAuthorityImpl is for
// Boulder, generalized from certificate issuance to identity judgement.
package manager

import (
	"sync"

	"github.com/jmhodges/clock"

	"github.com/w3f/registrar-verifier/core"
	"github.com/w3f/registrar-verifier/displayname"
	"github.com/w3f/registrar-verifier/errors"
	"github.com/w3f/registrar-verifier/events"
	"github.com/w3f/registrar-verifier/log"
	"github.com/w3f/registrar-verifier/metrics"
	"github.com/w3f/registrar-verifier/rules"
)

// IdentityManager holds the four maps described in the design and applies
// every mutation under a single exclusive lock, so no two mutators ever
// interleave on the same identity - the property the concurrency model
// requires regardless of whether it's implemented with a mutex or an actor.
type IdentityManager struct {
	mu sync.Mutex

	identities      map[core.NetworkAddress]map[core.IdentityFieldType]core.FieldStatus
	lookupAddresses map[core.IdentityField]map[core.NetworkAddress]struct{}
	displayNames    map[core.NetworkAddress]core.DisplayName
	onChain         map[core.NetworkAddress]core.OnChainChallenge

	engine *displayname.Engine
	sink   core.EventSink

	clk   clock.Clock
	log   log.Logger
	stats metrics.Scope
}

// New builds an empty IdentityManager. limit is the display-name
// similarity threshold handed to the DisplayNameEngine; sink may be nil,
// in which case committed mutations simply aren't published anywhere
// (useful for tests that only care about the returned values).
func New(limit float64, sink core.EventSink, clk clock.Clock, logger log.Logger, stats metrics.Scope) *IdentityManager {
	return &IdentityManager{
		identities:      make(map[core.NetworkAddress]map[core.IdentityFieldType]core.FieldStatus),
		lookupAddresses: make(map[core.IdentityField]map[core.NetworkAddress]struct{}),
		displayNames:    make(map[core.NetworkAddress]core.DisplayName),
		onChain:         make(map[core.NetworkAddress]core.OnChainChallenge),
		engine:          displayname.New(limit),
		sink:            sink,
		clk:             clk,
		log:             logger,
		stats:           stats,
	}
}

func (m *IdentityManager) addToIndex(f core.IdentityField, addr core.NetworkAddress) {
	set, ok := m.lookupAddresses[f]
	if !ok {
		set = make(map[core.NetworkAddress]struct{})
		m.lookupAddresses[f] = set
	}
	set[addr] = struct{}{}
}

func (m *IdentityManager) removeFromIndex(f core.IdentityField, addr core.NetworkAddress) {
	set, ok := m.lookupAddresses[f]
	if !ok {
		return
	}
	delete(set, addr)
	if len(set) == 0 {
		delete(m.lookupAddresses, f)
	}
}

// InsertIdentity upserts an identity. A brand-new address is inserted
// wholesale and fires NewIdentityInserted. An existing address is
// reconciled in place: fields dropped from the new submission are removed,
// fields whose claimed value changed are replaced (resetting their
// challenge and reverse-index entry), and fields whose value is unchanged
// are left untouched so accumulated verification progress survives. The
// on-chain challenge is never rotated on reconciliation.
func (m *IdentityManager) InsertIdentity(identity core.IdentityState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.identities[identity.NetAddress]
	if !ok {
		fields := make(map[core.IdentityFieldType]core.FieldStatus, len(identity.Fields))
		for t, fs := range identity.Fields {
			fields[t] = fs
			m.addToIndex(fs.Field, identity.NetAddress)
		}
		m.identities[identity.NetAddress] = fields
		m.onChain[identity.NetAddress] = identity.OnChainChallenge
		events.PublishIdentityInserted(m.sink, identity.NetAddress)
		m.stats.Inc("identities_inserted", 1)
		m.debugf("inserted new identity %s/%s with %d fields", identity.NetAddress.Network, identity.NetAddress.Address, len(fields))
		return
	}

	m.debugf("reconciling existing identity %s/%s", identity.NetAddress.Network, identity.NetAddress.Address)

	for t, fs := range existing {
		if _, stillPresent := identity.Fields[t]; !stillPresent {
			m.removeFromIndex(fs.Field, identity.NetAddress)
			delete(existing, t)
		}
	}
	for t, newFS := range identity.Fields {
		oldFS, had := existing[t]
		if !had || oldFS.Field != newFS.Field {
			if had {
				m.removeFromIndex(oldFS.Field, identity.NetAddress)
			}
			existing[t] = newFS
			m.addToIndex(newFS.Field, identity.NetAddress)
		}
		// Same address: leave the existing entry, and its verification
		// progress, untouched.
	}
	m.stats.Inc("identities_reconciled", 1)
}

// UpdateField applies msg to the given field of addr's identity through
// rules.ApplyMessage and commits the result, publishing it like
// VerifyMessage does but for one known address only. It takes a message,
// not a pre-computed FieldStatus: there is no way to hand it a status
// computed elsewhere and have it checked against the rules.
func (m *IdentityManager) UpdateField(addr core.NetworkAddress, field core.IdentityFieldType, msg core.ProvidedMessage) (rules.Change, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.identities[addr]
	if !ok {
		return rules.Change{}, false, errors.UnknownNetworkAddressError("no identity registered for %v", addr)
	}
	current, ok := fields[field]
	if !ok {
		return rules.Change{}, false, errors.UnknownFieldError("identity %v has no %s field", addr, field)
	}

	updated, change, changed := rules.ApplyMessage(current, msg)
	if !changed {
		return rules.Change{}, false, nil
	}
	fields[field] = updated
	upd := events.FromChange(addr, change)
	events.Publish(m.sink, upd, updated)
	m.stats.Inc("field_transitions", 1)
	return change, true, nil
}

// VerifyMessage locates every address that claimed field via the reverse
// index and applies ApplyMessage to each in turn, fanning out to all of
// them rather than stopping at the first - a single inbound message from a
// shared Matrix room or Twitter handle legitimately proves control for
// every identity that claimed it. Returns the change for each address that
// actually transitioned, in the (unordered) iteration order of the index.
func (m *IdentityManager) VerifyMessage(field core.IdentityField, provided core.ProvidedMessage) []AddressChange {
	m.mu.Lock()
	defer m.mu.Unlock()

	addrs := m.lookupAddresses[field]
	if len(addrs) == 0 {
		return nil
	}

	var results []AddressChange
	for addr := range addrs {
		fields := m.identities[addr]
		current, ok := fields[field.Type]
		if !ok || current.Field != field {
			continue
		}
		updated, change, changed := rules.ApplyMessage(current, provided)
		if !changed {
			continue
		}
		fields[field.Type] = updated
		upd := events.FromChange(addr, change)
		events.Publish(m.sink, upd, updated)
		m.stats.Inc("field_transitions", 1)
		results = append(results, AddressChange{NetAddress: addr, Change: change})
	}
	return results
}

// AddressChange pairs a committed rules.Change with the identity it
// happened on, the shape VerifyMessage's fan-out returns.
type AddressChange struct {
	NetAddress core.NetworkAddress
	Change     rules.Change
}

// VerifyDisplayName runs the DisplayNameEngine against every currently
// persisted display name and applies R6 to the address's
// CheckDisplayName field. It fails, rather than returning no change, when
// the address has no display-name field or that field isn't a
// CheckDisplayName challenge.
func (m *IdentityManager) VerifyDisplayName(addr core.NetworkAddress, name core.DisplayName) (rules.Change, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.identities[addr]
	if !ok {
		return rules.Change{}, false, errors.UnknownNetworkAddressError("no identity registered for %v", addr)
	}
	current, ok := fields[core.FieldTypeDisplayName]
	if !ok {
		return rules.Change{}, false, errors.UnknownFieldError("identity %v has no display_name field", addr)
	}
	if current.Challenge.Kind != core.KindCheckDisplayName {
		return rules.Change{}, false, errors.ChallengeMismatchError("display_name field for %v does not carry a CheckDisplayName challenge", addr)
	}

	existing := make([]core.DisplayName, 0, len(m.displayNames))
	for _, n := range m.displayNames {
		existing = append(existing, n)
	}
	violations := m.engine.Violations(name, existing)

	updated, change, changed := rules.ApplyDisplayNameResult(current, violations)
	if !changed {
		return rules.Change{}, false, nil
	}
	fields[core.FieldTypeDisplayName] = updated
	upd := events.FromChange(addr, change)
	events.Publish(m.sink, upd, updated)
	m.stats.Inc("display_name_checks", 1)
	return change, true, nil
}

// PersistDisplayName records name as addr's registered display name. It
// requires addr to hold a display_name field whose entry is present in the
// reverse index (InsertIdentity puts it there); otherwise it fails with
// PersistBeforeVerify. It does not check that VerifyDisplayName has run or
// succeeded, nor that name equals the claimed display name.
func (m *IdentityManager) PersistDisplayName(addr core.NetworkAddress, name core.DisplayName) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.identities[addr]
	if !ok {
		return errors.UnknownNetworkAddressError("no identity registered for %v", addr)
	}
	fs, ok := fields[core.FieldTypeDisplayName]
	if !ok {
		return errors.PersistBeforeVerifyError("identity %v has no display_name field to persist against", addr)
	}
	if _, indexed := m.lookupAddresses[fs.Field]; !indexed {
		return errors.PersistBeforeVerifyError("display_name field for %v is not in the reverse index", addr)
	}

	m.displayNames[addr] = name
	events.PublishDisplayNamePersisted(m.sink, addr, name)
	m.stats.Inc("display_names_persisted", 1)
	return nil
}

// CheckRemark is R8: it compares text against addr's on-chain challenge by
// equality, not substring. A match is the signal to the outer pipeline
// that on-chain proof of key ownership is complete; CheckRemark itself
// makes no state change, since the on-chain challenge is not a field-level
// transition.
func (m *IdentityManager) CheckRemark(addr core.NetworkAddress, text string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	challenge, ok := m.onChain[addr]
	if !ok {
		return false, errors.UnknownNetworkAddressError("no identity registered for %v", addr)
	}
	return challenge.MatchesRemark(text), nil
}

// IsFullyVerified reports whether every field of addr's identity has
// passed its challenge.
func (m *IdentityManager) IsFullyVerified(addr core.NetworkAddress) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.identities[addr]
	if !ok {
		return false, errors.UnknownNetworkAddressError("no identity registered for %v", addr)
	}
	for _, fs := range fields {
		if !fs.IsValid() {
			return false, nil
		}
	}
	return true, nil
}

// ExportState returns a snapshot of every identity currently held. Each
// IdentityState is cloned so the caller cannot observe, or corrupt, the
// manager's live maps.
func (m *IdentityManager) ExportState() []core.IdentityState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]core.IdentityState, 0, len(m.identities))
	for addr, fields := range m.identities {
		out = append(out, core.IdentityState{
			NetAddress:       addr,
			OnChainChallenge: m.onChain[addr],
			Fields:           fields,
		}.Clone())
	}
	return out
}

// LookupFullState returns a snapshot of one identity.
func (m *IdentityManager) LookupFullState(addr core.NetworkAddress) (core.IdentityState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.identities[addr]
	if !ok {
		return core.IdentityState{}, errors.UnknownNetworkAddressError("no identity registered for %v", addr)
	}
	return core.IdentityState{
		NetAddress:       addr,
		OnChainChallenge: m.onChain[addr],
		Fields:           fields,
	}.Clone(), nil
}

// Contains reports whether identity's address is currently registered.
func (m *IdentityManager) Contains(addr core.NetworkAddress) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.identities[addr]
	return ok
}

// GetOnChainChallenge returns the on-chain challenge tag assigned to addr.
func (m *IdentityManager) GetOnChainChallenge(addr core.NetworkAddress) (core.OnChainChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	challenge, ok := m.onChain[addr]
	if !ok {
		return "", errors.UnknownNetworkAddressError("no identity registered for %v", addr)
	}
	return challenge, nil
}

func (m *IdentityManager) debugf(format string, args ...interface{}) {
	if m.log == nil {
		return
	}
	m.log.Debugf(format, args...)
}
