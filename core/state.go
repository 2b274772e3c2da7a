package core

// IdentityState is the authoritative unit of identity truth inside the
// core: one network address, its on-chain ownership challenge, and the
// per-field-type challenge status of every field claimed on its judgement
// request.
type IdentityState struct {
	NetAddress       NetworkAddress                    `json:"net_address"`
	OnChainChallenge OnChainChallenge                  `json:"on_chain_challenge"`
	Fields           map[IdentityFieldType]FieldStatus `json:"fields"`
}

// Clone returns a deep-enough copy of the identity state for safe export
// outside the manager's lock: the Fields map is copied, but individual
// FieldStatus values are plain data and safe to share by value.
func (s IdentityState) Clone() IdentityState {
	fields := make(map[IdentityFieldType]FieldStatus, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	return IdentityState{
		NetAddress:       s.NetAddress,
		OnChainChallenge: s.OnChainChallenge,
		Fields:           fields,
	}
}

// IsFullyVerified reports whether every field in the identity has passed
// its challenge.
func (s IdentityState) IsFullyVerified() bool {
	for _, fs := range s.Fields {
		if !fs.IsValid() {
			return false
		}
	}
	return true
}
