package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/picmigrate/picmigrate/internal/models"
)

// Notifier sends optional Telegram messages for batch completion and
// authorization expiry. A zero-value Notifier is disabled and every method is
// a no-op.
type Notifier struct {
	token  string
	chatID int64
}

// NewNotifier creates a notifier. Empty token or zero chat ID disables it.
func NewNotifier(token string, chatID int64) *Notifier {
	return &Notifier{token: strings.TrimSpace(token), chatID: chatID}
}

// Enabled reports whether messages will actually be sent.
func (n *Notifier) Enabled() bool {
	return n != nil && n.token != "" && n.chatID != 0
}

// BatchFinished sends the final tally of a migration run.
func (n *Notifier) BatchFinished(b *models.BatchResult) {
	if !n.Enabled() || b == nil {
		return
	}
	n.send(formatBatch(b))
}

// AccountDisconnected warns that an account needs re-authorization.
func (n *Notifier) AccountDisconnected(account string) {
	if !n.Enabled() {
		return
	}
	n.send(fmt.Sprintf("⚠️ Bling account *%s* is no longer authenticated. Re-authorize it before the next migration.", account))
}

func (n *Notifier) send(text string) {
	bot, err := tgbotapi.NewBotAPI(n.token)
	if err != nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "Markdown"
	_, _ = bot.Send(msg)
}

func formatBatch(b *models.BatchResult) string {
	var sb strings.Builder
	if b.Succeeded == b.Total {
		fmt.Fprintf(&sb, "✅ Migration finished: all %d SKUs migrated.\n", b.Total)
	} else {
		fmt.Fprintf(&sb, "Migration finished: %d/%d SKUs migrated.\n", b.Succeeded, b.Total)
	}
	for _, r := range b.Results {
		if r.Outcome.Success() {
			continue
		}
		fmt.Fprintf(&sb, "• %s: %s\n", r.SKU, r.Outcome)
	}
	return sb.String()
}
