package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ZigmaPulse/internal/domain/models"
	applogger "ZigmaPulse/pkg/logger"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func sampleSignal() models.Signal {
	s := models.NewSignal("Will BTC hit 100k?", "m1", "BUY YES", "72", "3.5", "2025-01-01T00:00:00Z")
	s.EffectiveEdge = "4.2%"
	return *s
}

func TestFormatSignal(t *testing.T) {
	out := FormatSignal("agent_1", sampleSignal())
	assert.Contains(t, out, "🟢 *BUY YES* (72%)")
	assert.Contains(t, out, "Exposure: 3.5%")
	assert.Contains(t, out, "Edge: 4.2%")
	assert.NotContains(t, out, "Liquidity")
	assert.Contains(t, out, "agent\\_1")
}

func TestNotifySignal(t *testing.T) {
	fs := &fakeSender{}
	n := &TelegramNotifier{api: fs, chatID: 42, logger: applogger.Nop()}
	require.NoError(t, n.NotifySignal(context.Background(), "agent", sampleSignal()))
	require.Len(t, fs.sent, 1)
	msg, ok := fs.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdown, msg.ParseMode)

	fs.err = errors.New("flood")
	assert.Error(t, n.NotifySignal(context.Background(), "agent", sampleSignal()))
}
