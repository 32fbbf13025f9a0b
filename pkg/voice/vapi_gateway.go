package voice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// VAPIGateway places AI wake-up calls via the VAPI outbound call API
type VAPIGateway struct {
	apiURL    string
	apiKey    string
	serverURL string // Base URL VAPI posts call results back to
	client    *http.Client

	maxDurationSeconds    int
	silenceTimeoutSeconds int
}

// Config holds configuration for the VAPI gateway
type Config struct {
	APIURL                string
	APIKey                string
	ServerURL             string
	MaxDurationSeconds    int
	SilenceTimeoutSeconds int
}

// NewVAPIGateway creates a new VAPI gateway client
func NewVAPIGateway(config Config) *VAPIGateway {
	maxDuration := config.MaxDurationSeconds
	if maxDuration == 0 {
		maxDuration = 180
	}
	silenceTimeout := config.SilenceTimeoutSeconds
	if silenceTimeout == 0 {
		silenceTimeout = 30
	}

	return &VAPIGateway{
		apiURL:                config.APIURL,
		apiKey:                config.APIKey,
		serverURL:             config.ServerURL,
		maxDurationSeconds:    maxDuration,
		silenceTimeoutSeconds: silenceTimeout,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CallRequest describes one wake-up call to place
type CallRequest struct {
	Phone          string
	Destination    string
	Mode           string // "bus" or "train"
	TripID         string
	UserTelegramID int64
	Attempt        int
	MaxAttempts    int
}

// confirmationPhrases is the fixed lexicon the assistant hangs up on
// and the orchestrator later matches transcripts against
var confirmationPhrases = []string{
	"i'm awake",
	"i am awake",
	"yes i'm up",
	"okay i'm ready",
}

// customer is the callee section of a VAPI call request
type customer struct {
	Number string `json:"number"`
}

// modelMessage is one system/user message in the assistant model config
type modelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type modelConfig struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Messages []modelMessage `json:"messages"`
}

type voiceConfig struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

type transcriberConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Language string `json:"language"`
}

// assistantConfig is the transient assistant definition sent per call
type assistantConfig struct {
	FirstMessage          string            `json:"firstMessage"`
	Model                 modelConfig       `json:"model"`
	Voice                 voiceConfig       `json:"voice"`
	EndCallMessage        string            `json:"endCallMessage"`
	EndCallPhrases        []string          `json:"endCallPhrases"`
	SilenceTimeoutSeconds int               `json:"silenceTimeoutSeconds"`
	MaxDurationSeconds    int               `json:"maxDurationSeconds"`
	Transcriber           transcriberConfig `json:"transcriber"`
	ServerURL             string            `json:"serverUrl"`
	ServerMessages        []string          `json:"serverMessages"`
}

// CallMetadata rides along with the call and comes back on every
// webhook, carrying everything needed to route the result
type CallMetadata struct {
	TripID         string `json:"trip_id"`
	Attempt        int    `json:"attempt"`
	Destination    string `json:"destination"`
	UserTelegramID int64  `json:"user_telegram_id"`
}

// placeCallRequest is the VAPI outbound call request body
type placeCallRequest struct {
	PhoneNumberID *string         `json:"phoneNumberId"`
	Customer      customer        `json:"customer"`
	Assistant     assistantConfig `json:"assistant"`
	Metadata      CallMetadata    `json:"metadata"`
}

// placeCallResponse is the VAPI outbound call response body
type placeCallResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PlaceCall places one wake-up call and returns the vendor call ID
func (g *VAPIGateway) PlaceCall(req CallRequest) (string, error) {
	formattedPhone, err := FormatPhoneForVAPI(req.Phone)
	if err != nil {
		return "", fmt.Errorf("invalid phone number: %w", err)
	}

	body := placeCallRequest{
		PhoneNumberID: nil, // outbound without an owned number
		Customer:      customer{Number: formattedPhone},
		Assistant: assistantConfig{
			FirstMessage: FirstMessage(req.Destination, req.Attempt),
			Model: modelConfig{
				Provider: "openai",
				Model:    "gpt-4",
				Messages: []modelMessage{
					{Role: "system", Content: SystemPrompt(req)},
				},
			},
			Voice: voiceConfig{
				Provider: "azure",
				VoiceID:  "en-IN-NeerjaNeural",
			},
			EndCallMessage:        "Have a safe journey! Goodbye.",
			EndCallPhrases:        confirmationPhrases,
			SilenceTimeoutSeconds: g.silenceTimeoutSeconds,
			MaxDurationSeconds:    g.maxDurationSeconds,
			Transcriber: transcriberConfig{
				Provider: "deepgram",
				Model:    "nova-2",
				Language: "en-IN",
			},
			ServerURL:      fmt.Sprintf("%s/webhooks/voice", g.serverURL),
			ServerMessages: []string{"end-of-call-report", "status-update"},
		},
		Metadata: CallMetadata{
			TripID:         req.TripID,
			Attempt:        req.Attempt,
			Destination:    req.Destination,
			UserTelegramID: req.UserTelegramID,
		},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal call request: %w", err)
	}

	url := fmt.Sprintf("%s/call", g.apiURL)
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create call request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send call request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read call response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("call placement rejected: status %d: %s", resp.StatusCode, string(respBody))
	}

	var callResp placeCallResponse
	if err := json.Unmarshal(respBody, &callResp); err != nil {
		return "", fmt.Errorf("failed to parse call response: %w", err)
	}

	if callResp.ID == "" {
		return "", fmt.Errorf("call placement returned no call id: %s", callResp.Message)
	}

	return callResp.ID, nil
}

// FirstMessage builds the opening line the assistant speaks, escalating
// with the attempt number
func FirstMessage(destination string, attempt int) string {
	switch {
	case attempt == 1:
		return fmt.Sprintf("Hello! This is your WakeMe travel wake-up call. You are approaching %s. Are you awake?", destination)
	case attempt == 2:
		return fmt.Sprintf("Wake up! This is your second call. You're approaching %s. Please confirm you're awake!", destination)
	default:
		return fmt.Sprintf("URGENT! This is your final wake-up call! You will miss %s if you don't wake up now!", destination)
	}
}

// urgencyTier maps the attempt number to the assistant's tone
func urgencyTier(attempt int) string {
	switch {
	case attempt == 1:
		return "friendly and calm"
	case attempt == 2:
		return "firm but polite"
	default:
		return "urgent and very insistent"
	}
}

// SystemPrompt builds the assistant system prompt for one call attempt
func SystemPrompt(req CallRequest) string {
	urgency := urgencyTier(req.Attempt)

	return fmt.Sprintf(`You are a travel wake-up assistant. Your job is to wake up a traveler.

CONTEXT:
- Traveler destination: %s
- Travel mode: %s
- Call attempt: %d of %d

YOUR MISSION:
Wake up the traveler and get CLEAR verbal confirmation they are awake. Be %s.

RULES:
1. Speak clearly in Indian English
2. Be %s but always polite
3. Don't hang up until you hear: "I'm awake", "Yes I'm up", or similar
4. If they mumble or say "hmm", that's NOT confirmation
5. Keep asking until you get clear confirmation
6. Provide helpful info: destination, arrival time
7. Maximum 2-3 minutes, then end
8. If user is angry, apologize and end

ACCEPTABLE CONFIRMATIONS:
- "I'm awake"
- "Yes, I'm up"
- "Okay, I'm ready"
- Clear, coherent speech confirming they're awake

NOT ACCEPTABLE:
- Mumbling, grunts, "hmm", "uh"
- Unclear sounds
- No response

END CALL WHEN:
- Clear confirmation received
- User gets angry (apologize first)
- 2-3 minutes passed

Speak naturally, be helpful, ensure they're truly awake before ending.`,
		req.Destination, req.Mode, req.Attempt, req.MaxAttempts, urgency, urgency)
}

var nonDigitRegex = regexp.MustCompile(`[^0-9+]`)

// FormatPhoneForVAPI converts a phone number to E.164 with the Indian
// country code.
// Input: "9876543210" or "919876543210" or "+91 98765 43210"
// Output: "+919876543210"
func FormatPhoneForVAPI(phone string) (string, error) {
	cleaned := nonDigitRegex.ReplaceAllString(phone, "")

	if strings.HasPrefix(cleaned, "+91") && len(cleaned) == 13 {
		return cleaned, nil
	}
	if strings.HasPrefix(cleaned, "91") && len(cleaned) == 12 {
		return "+" + cleaned, nil
	}
	if len(cleaned) == 10 {
		return "+91" + cleaned, nil
	}

	return "", fmt.Errorf("unrecognized phone number format: %q", phone)
}
