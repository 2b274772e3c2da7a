package core

import "context"

// StateReader are the read-only methods any persistence backend for
// pending identities must support. Split from StateWriter for the same
// reason Boulder splits StorageGetter from StorageAdder: callers that only
// ever read (e.g. a status page) can depend on the narrower interface.
type StateReader interface {
	GetPendingIdentity(ctx context.Context, addr NetworkAddress) (IdentityState, error)
	ListPendingIdentities(ctx context.Context) ([]IdentityState, error)
	GetMatrixRoom(ctx context.Context, pubkey string) (string, error)
}

// StateWriter are the write/update methods a persistence backend exposes.
type StateWriter interface {
	PutPendingIdentity(ctx context.Context, state IdentityState) error
	DeletePendingIdentity(ctx context.Context, addr NetworkAddress) error
	PutMatrixRoom(ctx context.Context, pubkey, roomID string) error
	MarkMessageProcessed(ctx context.Context, id string) (alreadyProcessed bool, err error)
}

// Store is the external KV persistence layer described in the design: it
// rehydrates pending identities on restart and deduplicates re-delivered
// adapter messages. It is divided into StateReader and StateWriter for the
// same privilege-separation reason Boulder's StorageAuthority is.
type Store interface {
	StateReader
	StateWriter
}

// EventSink receives the events the manager emits on every committed
// mutation - the seam the durable event log and the RPC broadcaster both
// implement.
type EventSink interface {
	FieldStatusVerified(netAddress NetworkAddress, status FieldStatus)
	DisplayNamePersisted(netAddress NetworkAddress, name DisplayName)
	Notify(level NotificationLevel, text string)
}

// NotificationLevel mirrors the three severities a Notification can carry.
type NotificationLevel string

// The three notification severities.
const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarn    NotificationLevel = "warn"
)
