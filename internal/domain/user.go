package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a registered ledger participant.
//
// Balance is a cached projection of the transaction log. It is overwritten
// by every balance recomputation and can be rebuilt from scratch at any time.
type User struct {
	ID int64

	// ChatID is the bot's private chat with the user, used for notifications.
	ChatID int64

	// TelegramID is the stable numeric identifier of the Telegram account.
	TelegramID int64

	// Username without the leading @. Looked up case-insensitively.
	Username string

	DisplayName  string
	LanguageCode string

	Balance   decimal.Decimal
	CreatedAt time.Time
}

// Mention returns the @-prefixed username, falling back to the display name
// for users without one.
func (u *User) Mention() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.DisplayName
}
