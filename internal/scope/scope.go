// Package scope resolves raw transport identifiers into the canonical chat
// scope used to key sessions and trips. Resolution is a pure function with no
// side effects.
package scope

import (
	"fmt"

	"github.com/wanderlog/wanderbot/internal/errs"
)

// ChatKind is the kind of chat a message arrived from.
type ChatKind string

const (
	KindPrivate    ChatKind = "private"
	KindGroup      ChatKind = "group"
	KindSupergroup ChatKind = "supergroup"
)

// ChatScope identifies one isolated conversation context. Sessions are keyed
// by (UserID, ChatID); trips are owned by ChatID so that all members of a
// group chat share trip state.
type ChatScope struct {
	UserID int64
	ChatID int64
	Kind   ChatKind
}

// IsPrivate reports whether the scope is a direct chat with a single user.
func (s ChatScope) IsPrivate() bool { return s.Kind == KindPrivate }

// String renders the scope for logging.
func (s ChatScope) String() string {
	return fmt.Sprintf("%s/%d:%d", s.Kind, s.ChatID, s.UserID)
}

// Resolve normalizes a raw (user id, chat id, chat kind) tuple. For private
// chats the chat id is forced to the user id, which is the invariant the
// legacy-data backfill relies on.
func Resolve(userID, chatID int64, kind string) (ChatScope, error) {
	if userID <= 0 {
		return ChatScope{}, &errs.InvalidScopeError{Reason: fmt.Sprintf("user id %d is not a valid identifier", userID)}
	}

	var k ChatKind
	switch ChatKind(kind) {
	case KindPrivate:
		k = KindPrivate
	case KindGroup:
		k = KindGroup
	case KindSupergroup:
		k = KindSupergroup
	default:
		return ChatScope{}, &errs.InvalidScopeError{Reason: fmt.Sprintf("unknown chat kind %q", kind)}
	}

	if k == KindPrivate {
		chatID = userID
	} else if chatID == 0 {
		return ChatScope{}, &errs.InvalidScopeError{Reason: "chat id is required for group chats"}
	}

	return ChatScope{UserID: userID, ChatID: chatID, Kind: k}, nil
}
