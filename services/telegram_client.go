package services

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"fieldops_backend/dashboard"
	"fieldops_backend/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Messenger отправляет операторские уведомления
type Messenger interface {
	Send(ctx context.Context, text string) error
}

// TelegramClient отправляет уведомления в чат Telegram
type TelegramClient struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *log.Logger
}

// TelegramOptions настройки клиента Telegram
type TelegramOptions struct {
	BotToken string
	ChatID   int64

	// APIEndpoint шаблон адреса Bot API, по умолчанию tgbotapi.APIEndpoint
	APIEndpoint string

	HTTPClient *http.Client
	Logger     *log.Logger
}

// NewTelegramClient создает новый экземпляр Telegram клиента
func NewTelegramClient(opts TelegramOptions) (*TelegramClient, error) {
	if opts.BotToken == "" {
		return nil, fmt.Errorf("Telegram не настроен: пустой токен бота")
	}
	if opts.ChatID == 0 {
		return nil, fmt.Errorf("Telegram не настроен: не указан chat ID")
	}

	endpoint := opts.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	// Создаем Bot API клиент
	bot, err := tgbotapi.NewBotAPIWithClient(opts.BotToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram бота: %w", err)
	}

	// В продакшене отключаем debug
	bot.Debug = false

	logger.Printf("✅ Telegram бот авторизован: %s", bot.Self.UserName)

	return &TelegramClient{bot: bot, chatID: opts.ChatID, logger: logger}, nil
}

// Send отправляет HTML-сообщение в настроенный чат
func (tc *TelegramClient) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(tc.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := tc.bot.Send(msg); err != nil {
		return fmt.Errorf("ошибка отправки сообщения: %w", err)
	}
	return nil
}

// LogMessenger пишет уведомления в лог, когда Telegram не настроен
type LogMessenger struct {
	Logger *log.Logger
}

// Send пишет сообщение в лог
func (lm LogMessenger) Send(_ context.Context, text string) error {
	logger := lm.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("📨 Уведомление: %s", text)
	return nil
}

// FormatIncidentAlert формирует текст оповещения о новом инциденте
func FormatIncidentAlert(incident models.Incident, location *time.Location) string {
	if location == nil {
		location = time.UTC
	}

	incidentType := string(incident.Type)
	if incidentType == "" {
		incidentType = string(models.IncidentTypeUnknown)
	}

	var b strings.Builder
	b.WriteString("🚨 <b>Новый инцидент</b>\n\n")
	fmt.Fprintf(&b, "<b>Тип:</b> %s\n", html.EscapeString(incidentType))
	fmt.Fprintf(&b, "<b>Дата:</b> %s\n", incident.Date.In(location).Format("02.01.2006 15:04"))
	if incident.RegionID != nil {
		fmt.Fprintf(&b, "<b>Регион:</b> %s\n", html.EscapeString(*incident.RegionID))
	}
	if incident.Description != "" {
		fmt.Fprintf(&b, "<b>Описание:</b> %s\n", html.EscapeString(incident.Description))
	}
	if incident.Latitude != 0 || incident.Longitude != 0 {
		fmt.Fprintf(&b, "<b>Координаты:</b> %.5f, %.5f\n", incident.Latitude, incident.Longitude)
	}
	return b.String()
}

// FormatDigest формирует текст ежедневной сводки
func FormatDigest(stats dashboard.Stats, day time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Сводка за %s</b>\n\n", day.Format("02.01.2006"))
	fmt.Fprintf(&b, "Отчетов: %d\n", stats.ReportCount)
	fmt.Fprintf(&b, "Инцидентов: %d\n", stats.IncidentCount)
	fmt.Fprintf(&b, "Рабочих: %d\n", stats.WorkerCount)
	fmt.Fprintf(&b, "Техники: %d (операторов %d)\n", stats.EquipmentCount, stats.OperatorCount)
	fmt.Fprintf(&b, "Топливо: %.2f\n", stats.TotalFuel)

	if len(stats.FuelByType) > 0 {
		b.WriteString("\n<b>Топливо по типам:</b>\n")
		for _, bucket := range stats.FuelByType {
			fmt.Fprintf(&b, "• %s: %.2f\n", html.EscapeString(bucket.Type), bucket.Amount)
		}
	}
	if len(stats.IncidentsByType) > 0 {
		b.WriteString("\n<b>Инциденты по типам:</b>\n")
		for _, bucket := range stats.IncidentsByType {
			fmt.Fprintf(&b, "• %s: %d\n", html.EscapeString(bucket.Type), bucket.Count)
		}
	}
	return b.String()
}
