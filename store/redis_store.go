// Copyright 2024 W3F Registrar Verifier Authors.
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package store implements core.Store over Redis, the same go-redis client
// the teacher module already lists as a direct dependency. It plays the
// role SQLStorageAuthority plays for Boulder - a struct wrapping one
// backend client, with the same persistence keys the design calls for:
// pending_identities/<address>, matrix_rooms/<pubkey>, and
// processed_email_ids/<id>.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/w3f/registrar-verifier/core"
	"github.com/w3f/registrar-verifier/errors"
)

const (
	pendingIdentityPrefix = "pending_identities/"
	matrixRoomPrefix      = "matrix_rooms/"
	processedEmailPrefix  = "processed_email_ids/"
)

// RedisStore persists IdentityManager's recoverable state: the pending
// identities rehydrated on restart, the opaque Matrix room IDs, and the
// processed-email dedup markers the design says adapters (not the core)
// own but the core must tolerate being replayed against.
type RedisStore struct {
	client *redis.Client
}

var _ core.Store = (*RedisStore)(nil)

// New wraps an already-configured *redis.Client.
func New(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func pendingIdentityKey(addr core.NetworkAddress) string {
	return fmt.Sprintf("%s%s:%s", pendingIdentityPrefix, addr.Network, addr.Address)
}

// GetPendingIdentity fetches and decodes one identity's persisted state.
func (s *RedisStore) GetPendingIdentity(ctx context.Context, addr core.NetworkAddress) (core.IdentityState, error) {
	raw, err := s.client.Get(ctx, pendingIdentityKey(addr)).Bytes()
	if err == redis.Nil {
		return core.IdentityState{}, errors.UnknownNetworkAddressError("no persisted state for %v", addr)
	}
	if err != nil {
		return core.IdentityState{}, fmt.Errorf("store: fetching pending identity %v: %w", addr, err)
	}
	var state core.IdentityState
	if err := json.Unmarshal(raw, &state); err != nil {
		return core.IdentityState{}, fmt.Errorf("store: decoding pending identity %v: %w", addr, err)
	}
	return state, nil
}

// ListPendingIdentities scans every persisted identity. It is used once, at
// startup, to rehydrate the in-memory manager - the registry is not
// expected to be large enough to need cursor-based pagination beyond what
// Scan already provides.
func (s *RedisStore) ListPendingIdentities(ctx context.Context) ([]core.IdentityState, error) {
	var states []core.IdentityState
	iter := s.client.Scan(ctx, 0, pendingIdentityPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			return nil, fmt.Errorf("store: fetching %s during scan: %w", iter.Val(), err)
		}
		var state core.IdentityState
		if err := json.Unmarshal(raw, &state); err != nil {
			return nil, fmt.Errorf("store: decoding %s during scan: %w", iter.Val(), err)
		}
		states = append(states, state)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("store: scanning pending identities: %w", err)
	}
	return states, nil
}

// GetMatrixRoom returns the opaque Matrix room id previously recorded for
// pubkey.
func (s *RedisStore) GetMatrixRoom(ctx context.Context, pubkey string) (string, error) {
	roomID, err := s.client.Get(ctx, matrixRoomPrefix+pubkey).Result()
	if err == redis.Nil {
		return "", errors.UnknownFieldError("no matrix room recorded for %s", pubkey)
	}
	if err != nil {
		return "", fmt.Errorf("store: fetching matrix room for %s: %w", pubkey, err)
	}
	return roomID, nil
}

// PutPendingIdentity persists the full current state of an identity,
// overwriting whatever was there before.
func (s *RedisStore) PutPendingIdentity(ctx context.Context, state core.IdentityState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: encoding pending identity %v: %w", state.NetAddress, err)
	}
	if err := s.client.Set(ctx, pendingIdentityKey(state.NetAddress), raw, 0).Err(); err != nil {
		return fmt.Errorf("store: storing pending identity %v: %w", state.NetAddress, err)
	}
	return nil
}

// DeletePendingIdentity removes a persisted identity, e.g. once judgement
// is complete and the outer pipeline has moved it to durable on-chain
// storage.
func (s *RedisStore) DeletePendingIdentity(ctx context.Context, addr core.NetworkAddress) error {
	if err := s.client.Del(ctx, pendingIdentityKey(addr)).Err(); err != nil {
		return fmt.Errorf("store: deleting pending identity %v: %w", addr, err)
	}
	return nil
}

// PutMatrixRoom records the room id a Matrix adapter has opened for
// pubkey, opaque to the core.
func (s *RedisStore) PutMatrixRoom(ctx context.Context, pubkey, roomID string) error {
	if err := s.client.Set(ctx, matrixRoomPrefix+pubkey, roomID, 0).Err(); err != nil {
		return fmt.Errorf("store: storing matrix room for %s: %w", pubkey, err)
	}
	return nil
}

// MarkMessageProcessed records id as handled and reports whether it had
// already been marked - the dedup check that makes adapter re-delivery
// safe. SetNX makes the check-and-set atomic across concurrent adapters.
func (s *RedisStore) MarkMessageProcessed(ctx context.Context, id string) (bool, error) {
	set, err := s.client.SetNX(ctx, processedEmailPrefix+id, 1, 0).Result()
	if err != nil {
		return false, fmt.Errorf("store: marking message %s processed: %w", id, err)
	}
	return !set, nil
}
