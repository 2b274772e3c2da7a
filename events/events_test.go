package events

import (
	"testing"

	"github.com/w3f/registrar-verifier/core"
	"github.com/w3f/registrar-verifier/rules"
)

type recordingSink struct {
	fieldCalls  []core.FieldStatus
	notifyLevel []core.NotificationLevel
	notifyText  []string
	persisted   []core.DisplayName
}

func (r *recordingSink) FieldStatusVerified(_ core.NetworkAddress, status core.FieldStatus) {
	r.fieldCalls = append(r.fieldCalls, status)
}
func (r *recordingSink) DisplayNamePersisted(_ core.NetworkAddress, name core.DisplayName) {
	r.persisted = append(r.persisted, name)
}
func (r *recordingSink) Notify(level core.NotificationLevel, text string) {
	r.notifyLevel = append(r.notifyLevel, level)
	r.notifyText = append(r.notifyText, text)
}

func TestPublishEmitsStatusThenNotification(t *testing.T) {
	sink := &recordingSink{}
	addr := core.NetworkAddress{Network: core.NetworkPolkadot, Address: "alice"}
	status := core.NewFieldStatus(core.NewTwitter("@alice"), core.NewUnsupported())
	upd := FromChange(addr, rules.Change{Kind: rules.ChangeVerificationValid, Field: core.FieldTypeTwitter})

	Publish(sink, upd, status)

	if len(sink.fieldCalls) != 1 {
		t.Fatalf("expected one FieldStatusVerified call, got %d", len(sink.fieldCalls))
	}
	if len(sink.notifyText) != 1 || sink.notifyLevel[0] != core.LevelSuccess {
		t.Fatalf("expected one success notification, got %v/%v", sink.notifyLevel, sink.notifyText)
	}
}

func TestPublishInvalidIsWarn(t *testing.T) {
	sink := &recordingSink{}
	addr := core.NetworkAddress{Network: core.NetworkKusama, Address: "bob"}
	status := core.NewFieldStatus(core.NewEmail("bob@example.com"), core.NewUnsupported())
	upd := FromChange(addr, rules.Change{Kind: rules.ChangeVerificationInvalid, Field: core.FieldTypeEmail})

	Publish(sink, upd, status)

	if sink.notifyLevel[0] != core.LevelWarn {
		t.Fatalf("expected warn level, got %v", sink.notifyLevel[0])
	}
}

func TestPublishIdentityInsertedSkipsFieldStatus(t *testing.T) {
	sink := &recordingSink{}
	addr := core.NetworkAddress{Network: core.NetworkPolkadot, Address: "alice"}

	PublishIdentityInserted(sink, addr)

	if len(sink.fieldCalls) != 0 {
		t.Fatalf("expected no FieldStatusVerified calls, got %d", len(sink.fieldCalls))
	}
	if len(sink.notifyText) != 1 || sink.notifyLevel[0] != core.LevelInfo {
		t.Fatalf("expected one info notification, got %v/%v", sink.notifyLevel, sink.notifyText)
	}
}

func TestPublishDisplayNamePersisted(t *testing.T) {
	sink := &recordingSink{}
	addr := core.NetworkAddress{Network: core.NetworkPolkadot, Address: "eve"}

	PublishDisplayNamePersisted(sink, addr, core.DisplayName("Zephyr"))

	if len(sink.persisted) != 1 || sink.persisted[0] != core.DisplayName("Zephyr") {
		t.Fatalf("expected persisted=[Zephyr], got %v", sink.persisted)
	}
}

func TestPublishNilSinkIsNoOp(t *testing.T) {
	addr := core.NetworkAddress{Network: core.NetworkPolkadot, Address: "alice"}
	Publish(nil, NewIdentityInserted(addr), core.FieldStatus{})
	PublishIdentityInserted(nil, addr)
	PublishDisplayNamePersisted(nil, addr, core.DisplayName("x"))
}
