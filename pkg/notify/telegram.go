package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TelegramNotifier delivers user-facing messages over the Telegram Bot
// API. Delivery is best-effort; callers log failures and move on.
type TelegramNotifier struct {
	apiURL   string
	botToken string
	client   *http.Client
}

// Config holds configuration for the Telegram notifier
type Config struct {
	APIURL   string
	BotToken string
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config Config) *TelegramNotifier {
	return &TelegramNotifier{
		apiURL:   config.APIURL,
		botToken: config.BotToken,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// sendMessageRequest is the Bot API sendMessage request body
type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// sendMessageResponse is the subset of the Bot API response we read
type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends a text message to the given chat
func (n *TelegramNotifier) Notify(chatID int64, text string) error {
	body := sendMessageRequest{
		ChatID: chatID,
		Text:   text,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiURL, n.botToken)
	resp, err := n.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read telegram response: %w", err)
	}

	var sendResp sendMessageResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return fmt.Errorf("failed to parse telegram response: %w", err)
	}

	if !sendResp.OK {
		return fmt.Errorf("telegram rejected message: %s", sendResp.Description)
	}

	return nil
}
