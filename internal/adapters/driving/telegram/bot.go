package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	tg "github.com/custodia-labs/drivelink/internal/adapters/driven/telegram"
	"github.com/custodia-labs/drivelink/internal/core/domain"
	"github.com/custodia-labs/drivelink/internal/core/ports/driving"
)

// Replies sent to users.
const (
	replyHelp = "I keep your Google Drive connected.\n\n" +
		"/login - connect your Google account\n" +
		"/status - show the connection state\n" +
		"/logout - disconnect your Google account"
	replyAuthorized      = "Your Google account is connected."
	replyInProgress      = "Authorization is already in progress. Use the button sent above."
	replyFailed          = "Authentication failed.\nTry again later."
	replyLoggedOut       = "Your Google account has been disconnected."
	replyNotAuthorized   = "Your Google account is not connected. Send /login to connect it."
	replyInternalFailure = "Something went wrong. Try again later."
)

// BotAPI is the part of the Bot API the update loop uses.
type BotAPI interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]tg.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, markup *tg.InlineKeyboardMarkup) error
}

// Bot receives chat commands by long polling and drives the
// SessionAuthenticator. Each authorization runs in its own goroutine so a
// waiting user never blocks the update loop.
type Bot struct {
	api    BotAPI
	auth   driving.SessionAuthenticator
	logger *slog.Logger

	pollTimeout  time.Duration
	errorBackoff time.Duration

	mu       sync.Mutex
	inflight map[domain.UserID]struct{}
	wg       sync.WaitGroup
}

// BotConfig holds dependencies for the Bot.
type BotConfig struct {
	API           BotAPI
	Authenticator driving.SessionAuthenticator
	Logger        *slog.Logger
	PollTimeout   time.Duration // default: 30s
	ErrorBackoff  time.Duration // default: 3s
}

// NewBot creates a new Bot.
func NewBot(cfg BotConfig) *Bot {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}

	errorBackoff := cfg.ErrorBackoff
	if errorBackoff <= 0 {
		errorBackoff = 3 * time.Second
	}

	return &Bot{
		api:          cfg.API,
		auth:         cfg.Authenticator,
		logger:       logger,
		pollTimeout:  pollTimeout,
		errorBackoff: errorBackoff,
		inflight:     make(map[domain.UserID]struct{}),
	}
}

// Run polls for updates until ctx is cancelled, then waits for in-flight
// authorizations to observe the cancellation.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("bot started", "poll_timeout", b.pollTimeout)
	defer func() {
		b.wg.Wait()
		b.logger.Info("bot stopped")
	}()

	var offset int64
	for {
		updates, err := b.api.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Warn("failed to get updates", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(b.errorBackoff):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			b.HandleUpdate(ctx, u)
		}
	}
}

// HandleUpdate dispatches a single update.
func (b *Bot) HandleUpdate(ctx context.Context, u tg.Update) {
	msg := u.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return
	}
	// Credentials are personal; only private chats are served.
	if msg.Chat.Type != "" && msg.Chat.Type != "private" {
		return
	}

	userID := domain.UserID(msg.From.ID)
	switch command(msg.Text) {
	case "/start", "/login":
		b.handleLogin(ctx, userID)
	case "/logout":
		b.handleLogout(ctx, userID)
	case "/status":
		b.handleStatus(ctx, userID)
	default:
		b.reply(ctx, userID, replyHelp)
	}
}

// command extracts "/cmd" from "/cmd@botname args".
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd)
}

func (b *Bot) handleLogin(ctx context.Context, userID domain.UserID) {
	if !b.claim(userID) {
		b.reply(ctx, userID, replyInProgress)
		return
	}

	b.spawn(func() {
		defer b.release(userID)

		cred, err := b.auth.Authenticate(ctx, userID)
		switch {
		case err != nil:
			b.authenticateFailed(ctx, userID, err)
		case cred != nil:
			b.reply(ctx, userID, connectedReply(cred))
		default:
			b.authorize(ctx, userID)
		}
	})
}

// spawn runs fn off the update loop; Authenticate may call the provider.
func (b *Bot) spawn(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

func (b *Bot) authenticateFailed(ctx context.Context, userID domain.UserID, err error) {
	if ctx.Err() != nil {
		return
	}
	b.logger.Error("authenticate failed", "user_id", userID, "error", err)
	b.reply(ctx, userID, replyInternalFailure)
}

func (b *Bot) authorize(ctx context.Context, userID domain.UserID) {
	cred, err := b.auth.StartAuthorization(ctx, userID)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return
	case err != nil:
		b.logger.Error("authorization failed", "user_id", userID, "error", err)
		b.reply(ctx, userID, replyFailed)
	case cred == nil:
		b.reply(ctx, userID, replyFailed)
	default:
		b.reply(ctx, userID, connectedReply(cred))
	}
}

func (b *Bot) handleLogout(ctx context.Context, userID domain.UserID) {
	if err := b.auth.Revoke(ctx, userID); err != nil {
		b.logger.Error("revoke failed", "user_id", userID, "error", err)
		b.reply(ctx, userID, replyInternalFailure)
		return
	}
	b.reply(ctx, userID, replyLoggedOut)
}

func (b *Bot) handleStatus(ctx context.Context, userID domain.UserID) {
	if b.isInflight(userID) {
		b.reply(ctx, userID, replyInProgress)
		return
	}

	b.spawn(func() {
		cred, err := b.auth.Authenticate(ctx, userID)
		switch {
		case err != nil:
			b.authenticateFailed(ctx, userID, err)
		case cred == nil:
			b.reply(ctx, userID, replyNotAuthorized)
		default:
			b.reply(ctx, userID, connectedReply(cred))
		}
	})
}

func connectedReply(cred *domain.Credential) string {
	if cred.Account == "" {
		return replyAuthorized
	}
	return "Your Google account " + cred.Account + " is connected."
}

func (b *Bot) reply(ctx context.Context, userID domain.UserID, text string) {
	if err := b.api.SendMessage(ctx, int64(userID), text, nil); err != nil {
		b.logger.Warn("failed to send reply", "user_id", userID, "error", err)
	}
}

// claim marks an authorization in flight for userID; false if one already is.
func (b *Bot) claim(userID domain.UserID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, busy := b.inflight[userID]; busy {
		return false
	}
	b.inflight[userID] = struct{}{}
	return true
}

func (b *Bot) release(userID domain.UserID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inflight, userID)
}

func (b *Bot) isInflight(userID domain.UserID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, busy := b.inflight[userID]
	return busy
}
