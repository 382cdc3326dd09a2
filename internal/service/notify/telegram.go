package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ZigmaPulse/internal/domain/models"
	applogger "ZigmaPulse/pkg/logger"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts new signals to one chat.
type TelegramNotifier struct {
	api    sender
	chatID int64
	logger *applogger.Logger
}

func NewTelegramNotifier(token string, chatID int64, l *applogger.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	if l == nil {
		l = applogger.Nop()
	}
	l.Info("notify.telegram connected", applogger.String("username", api.Self.UserName))
	return &TelegramNotifier{api: api, chatID: chatID, logger: l}, nil
}

// NotifySignal sends one Markdown message per signal.
func (n *TelegramNotifier) NotifySignal(ctx context.Context, source string, s models.Signal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, FormatSignal(source, s))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// FormatSignal renders the alert body. N/A fields are left out.
func FormatSignal(source string, s models.Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s* (%s%%)\n", actionIcon(s.Action), escape(s.Action), escape(s.Confidence))
	fmt.Fprintf(&b, "%s\n", escape(s.Market))
	fmt.Fprintf(&b, "Exposure: %s%%", escape(s.Exposure))
	for _, kv := range [][2]string{
		{"Edge", s.EffectiveEdge},
		{"Conviction", s.Conviction},
		{"Market", s.MarketOdds},
		{"Zigma", s.ZigmaOdds},
		{"Liquidity", s.Liquidity},
	} {
		if kv[1] != "" && kv[1] != models.NotAvailable {
			fmt.Fprintf(&b, "\n%s: %s", kv[0], escape(kv[1]))
		}
	}
	fmt.Fprintf(&b, "\n_%s · %s_", escape(source), escape(s.Timestamp))
	return b.String()
}

func actionIcon(action string) string {
	switch {
	case strings.Contains(action, "YES"):
		return "🟢"
	case strings.Contains(action, "NO"):
		return "🔴"
	default:
		return "⚪"
	}
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escape(s string) string { return markdownEscaper.Replace(s) }
