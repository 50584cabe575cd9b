package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.AuthorizationMessenger = (*Messenger)(nil)

// Messenger delivers authorization URLs as a Telegram message with an
// "Authorize" button. In a private chat the chat ID equals the user ID.
type Messenger struct {
	client  *Client
	timeout time.Duration
}

// NewMessenger creates a messenger. timeout is quoted to the user.
func NewMessenger(client *Client, timeout time.Duration) *Messenger {
	return &Messenger{client: client, timeout: timeout}
}

// SendAuthorizationRequest implements driven.AuthorizationMessenger.
func (m *Messenger) SendAuthorizationRequest(ctx context.Context, userID domain.UserID, authorizationURL string) error {
	markup := &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{{
			{Text: "Authorize", URL: authorizationURL},
		}},
	}
	if err := m.client.SendMessage(ctx, int64(userID), AuthorizationPrompt(m.timeout), markup); err != nil {
		return fmt.Errorf("send authorization request: %w", err)
	}
	return nil
}

// AuthorizationPrompt is the text accompanying the Authorize button.
func AuthorizationPrompt(timeout time.Duration) string {
	minutes := int(timeout.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("Please authorize in our app with your google account.\nYou have %d %s.", minutes, unit)
}
