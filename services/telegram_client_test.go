package services

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"fieldops_backend/models"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123:test-token"

func setupTelegramMock(t *testing.T) *http.Client {
	t.Helper()
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder("POST", "https://api.telegram.org/bot"+testBotToken+"/getMe",
		httpmock.NewStringResponder(http.StatusOK,
			`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"FieldOps","username":"fieldops_bot"}}`))
	return client
}

func TestTelegramClient_Send(t *testing.T) {
	client := setupTelegramMock(t)

	var sentText, sentChat string
	httpmock.RegisterResponder("POST", "https://api.telegram.org/bot"+testBotToken+"/sendMessage",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			sentText = req.PostForm.Get("text")
			sentChat = req.PostForm.Get("chat_id")
			return httpmock.NewStringResponse(http.StatusOK,
				`{"ok":true,"result":{"message_id":10,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`), nil
		})

	tc, err := NewTelegramClient(TelegramOptions{BotToken: testBotToken, ChatID: 42, HTTPClient: client})
	require.NoError(t, err)

	require.NoError(t, tc.Send(context.Background(), "<b>hello</b>"))
	assert.Equal(t, "<b>hello</b>", sentText)
	assert.Equal(t, "42", sentChat)
	assert.Equal(t, 1, httpmock.GetCallCountInfo()["POST https://api.telegram.org/bot"+testBotToken+"/sendMessage"])
}

func TestTelegramClient_SendError(t *testing.T) {
	client := setupTelegramMock(t)
	httpmock.RegisterResponder("POST", "https://api.telegram.org/bot"+testBotToken+"/sendMessage",
		httpmock.NewStringResponder(http.StatusOK,
			`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))

	tc, err := NewTelegramClient(TelegramOptions{BotToken: testBotToken, ChatID: 42, HTTPClient: client})
	require.NoError(t, err)

	err = tc.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestNewTelegramClient_NotConfigured(t *testing.T) {
	_, err := NewTelegramClient(TelegramOptions{})
	assert.Error(t, err)

	_, err = NewTelegramClient(TelegramOptions{BotToken: testBotToken})
	assert.Error(t, err)
}

func TestFormatIncidentAlert(t *testing.T) {
	region := "north"
	text := FormatIncidentAlert(models.Incident{
		ID:          "i1",
		Date:        time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC),
		RegionID:    &region,
		Description: "pipe <cut>",
	}, time.UTC)

	assert.Contains(t, text, "Unknown")
	assert.Contains(t, text, "15.06.2024 10:30")
	assert.Contains(t, text, "pipe &lt;cut&gt;")
	assert.False(t, strings.Contains(text, "Координаты"))
}
