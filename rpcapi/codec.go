// Copyright 2024 W3F Registrar Verifier Authors.
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package rpcapi exposes the manager's notification stream over gRPC, so
// external subscribers (a status dashboard, an audit log shipper) can
// watch judgement progress without polling the store. There is no .proto
// definition backing this service - registrar-verifier has no shared
// wire-format requirement with another language the way Boulder's
// core/proto and ra/proto do - so the service is registered directly
// against a grpc.ServiceDesc and carries plain Go structs over a JSON
// codec instead of generated protobuf messages.
package rpcapi

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
