package session

import (
	"context"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-cartsync/pkg/errors"
)

// Provider yields the EngineState mutations apply to.
type Provider interface {
	Active() *EngineState
}

// Notifier receives engine side effects. The coordinator implements it.
type Notifier interface {
	// StateChanged signals that the active state was mutated.
	StateChanged(ctx context.Context)
	// Notice surfaces a soft message for the user.
	Notice(ctx context.Context, notice Notice)
	// Unauthorized signals that the commerce API rejected the session.
	Unauthorized(ctx context.Context, err error)
}

// Notice is a user-facing message.
type Notice struct {
	Level   enums.NoticeLevel `json:"level"`
	Code    pkgerrors.Code    `json:"code,omitempty"`
	Message string            `json:"message"`
	Subject string            `json:"subject,omitempty"`
}

// Notice codes that are not errors.
const (
	CodeAlreadyPresent pkgerrors.Code = "ALREADY_PRESENT"
	CodeRemoteSkipped  pkgerrors.Code = "REMOTE_SKIPPED"
)

// NoticeFromError builds the notice shown when a remote call for subject failed.
func NoticeFromError(err error, subject string) Notice {
	code := pkgerrors.CodeOf(err)
	meta := pkgerrors.MetadataFor(code)
	level := enums.NoticeLevelError
	if meta.Soft {
		level = enums.NoticeLevelWarning
	}
	return Notice{Level: level, Code: code, Message: meta.PublicMessage, Subject: subject}
}

// EventType distinguishes observer events.
type EventType string

const (
	EventStateChanged EventType = "state_changed"
	EventNotice       EventType = "notice"
)

// Event is delivered to coordinator subscribers.
type Event struct {
	Type   EventType       `json:"type"`
	Phase  enums.SyncPhase `json:"phase"`
	State  Snapshot        `json:"state"`
	Notice *Notice         `json:"notice,omitempty"`
}

// Nop is a Notifier that drops everything.
type Nop struct{}

func (Nop) StateChanged(context.Context)        {}
func (Nop) Notice(context.Context, Notice)      {}
func (Nop) Unauthorized(context.Context, error) {}
