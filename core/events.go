package core

// ExternalOrigin identifies which transport adapter delivered an
// ExternalMessage.
type ExternalOrigin string

// The three transports the registrar listens on for interactive challenge
// responses.
const (
	OriginMatrix  ExternalOrigin = "matrix"
	OriginEmail   ExternalOrigin = "email"
	OriginTwitter ExternalOrigin = "twitter"
)

// FieldType maps an origin to the IdentityFieldType it corresponds to.
// Returns the empty IdentityFieldType for an unrecognized origin.
func (o ExternalOrigin) FieldType() IdentityFieldType {
	switch o {
	case OriginMatrix:
		return FieldTypeMatrix
	case OriginEmail:
		return FieldTypeEmail
	case OriginTwitter:
		return FieldTypeTwitter
	default:
		return ""
	}
}

// ExternalMessage is the uniform shape every transport adapter normalizes
// its inbound traffic into before handing it to the manager.
type ExternalMessage struct {
	Origin       ExternalOrigin  `json:"origin"`
	FieldAddress string          `json:"field_address"`
	Message      ProvidedMessage `json:"message"`
}

// Field reconstructs the IdentityField this message claims to be a
// response for, so the manager's reverse index can be consulted directly.
func (m ExternalMessage) Field() IdentityField {
	return IdentityField{Type: m.Origin.FieldType(), Value: m.FieldAddress}
}

// DisplayNameSubmitted is the inbound event carrying a candidate display
// name for an identity already on file.
type DisplayNameSubmitted struct {
	NetAddress  NetworkAddress `json:"net_address"`
	DisplayName DisplayName    `json:"display_name"`
}

// RemarkFound is the inbound event the chain-watcher emits when it
// observes a remark extrinsic that might carry an on-chain challenge.
type RemarkFound struct {
	NetAddress NetworkAddress `json:"net_address"`
	Text       string         `json:"text"`
}

// IdentityInserted is the inbound event carrying a freshly submitted
// judgement request, from whatever source watches for them.
type IdentityInserted struct {
	Identity IdentityState `json:"identity"`
}
