package notify

import (
	"fmt"
	"strings"

	"detailing/internal/domain"
	"detailing/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// NewBot connects to the Bot API and checks the token.
func NewBot(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// TelegramNotifier posts booking lifecycle events to operator chats.
type TelegramNotifier struct {
	bot     domain.TelegramSender
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewTelegramNotifier(bot domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, logger: logger}
}

// Subscribe attaches the notifier to every booking event on bus.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	bus.SubscribeAll(events.BookingEventTypes, n.Handle)
}

// Handle formats the event and sends it to each chat. Send failures are logged
// per chat and never returned, so one dead chat cannot block the rest.
func (n *TelegramNotifier) Handle(event *events.Event) error {
	payload, err := event.DecodeBooking()
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	text := FormatBookingMessage(event.Type, payload)
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error().Err(err).
				Int64("chat_id", chatID).
				Int64("booking_id", payload.BookingID).
				Str("event", event.Type).
				Msg("Telegram notification failed")
		}
	}
	return nil
}

var eventTitles = map[string]string{
	events.EventBookingCreated:   "🆕 New booking",
	events.EventBookingConfirmed: "✅ Booking confirmed",
	events.EventBookingStarted:   "🚗 Job started",
	events.EventBookingCompleted: "🏁 Job completed",
	events.EventBookingCancelled: "❌ Booking cancelled",
}

// FormatBookingMessage renders a booking event as Telegram Markdown.
func FormatBookingMessage(eventType string, p events.BookingEventPayload) string {
	title, ok := eventTitles[eventType]
	if !ok {
		title = eventType
	}
	esc := func(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s) }

	var b strings.Builder
	fmt.Fprintf(&b, "*%s* #%d\n", esc(title), p.BookingID)
	fmt.Fprintf(&b, "📅 %s %s\n", esc(p.Date), esc(p.Time))
	fmt.Fprintf(&b, "👤 %s", esc(p.CustomerName))
	if p.Phone != "" {
		fmt.Fprintf(&b, " (%s)", esc(p.Phone))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "📍 %s\n", esc(p.Postcode))
	fmt.Fprintf(&b, "🧽 %s, %s", esc(p.ServiceType), esc(p.VehicleSize))
	if len(p.AddOns) > 0 {
		fmt.Fprintf(&b, " + %s", esc(strings.Join(p.AddOns, ", ")))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "💷 £%.2f", p.TotalPrice)
	if p.PrevStatus != "" {
		fmt.Fprintf(&b, "\nStatus: %s → %s", esc(p.PrevStatus), esc(p.Status))
	}
	if p.NeedsReview {
		b.WriteString("\n⚠️ Postcode outside travel zones, check the travel fee")
	}
	return b.String()
}
