package adapters

import (
	"fmt"

	"github.com/w3f/registrar-verifier/challenge"
	"github.com/w3f/registrar-verifier/core"
)

// NormalizeRemark builds the RemarkFound event for a chain-watcher
// observation of a remark extrinsic. text is passed through verbatim -
// on-chain challenge matching is exact equality, not substring, so no
// tokenization applies here.
func NormalizeRemark(addr core.NetworkAddress, text string) core.RemarkFound {
	return core.RemarkFound{NetAddress: addr, Text: text}
}

// BuildIdentityState turns a freshly observed on-chain judgement request -
// an address plus the raw field values it self-claims - into the
// core.IdentityState InsertIdentity expects, picking each field's challenge
// protocol via challenge.NewFieldStatus the way a chain-watcher adapter's
// intake path does before handing the result to the manager.
func BuildIdentityState(addr core.NetworkAddress, claimed map[core.IdentityFieldType]core.IdentityField, registrar map[core.IdentityFieldType]core.RegistrarField) (core.IdentityState, error) {
	onChain, err := core.NewOnChainChallenge()
	if err != nil {
		return core.IdentityState{}, fmt.Errorf("adapters: minting on-chain challenge for %v: %w", addr, err)
	}

	fields := make(map[core.IdentityFieldType]core.FieldStatus, len(claimed))
	for fieldType, userField := range claimed {
		status, err := challenge.NewFieldStatus(userField, registrar[fieldType])
		if err != nil {
			return core.IdentityState{}, fmt.Errorf("adapters: building challenge for %v %s: %w", addr, fieldType, err)
		}
		fields[fieldType] = status
	}

	return core.IdentityState{
		NetAddress:       addr,
		Fields:           fields,
		OnChainChallenge: onChain,
	}, nil
}
