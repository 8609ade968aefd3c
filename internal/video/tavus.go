// Package video proxies the Tavus conversational-video API. The client
// owns credential checks, personalization context and the translation of
// upstream status codes into actionable messages; everything else about
// the conversation lives on the Tavus side.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/safetylearn/safetylearn-web/config"
	"github.com/safetylearn/safetylearn-web/internal/logger"
)

type Client struct {
	apiKey     string
	replicaID  string
	personaID  string
	baseURL    string
	logger     *logger.Log
	httpClient *http.Client
}

// ConversationRequest starts or continues a personalized video conversation.
type ConversationRequest struct {
	UserInput      string `json:"user_input"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserName       string `json:"user_name,omitempty"`
	UserAge        int    `json:"user_age,omitempty"`
}

// Conversation is the upstream conversation handle.
type Conversation struct {
	ConversationURL string `json:"conversation_url"`
	ConversationID  string `json:"conversation_id"`
	Status          string `json:"status"`
}

type apiRequest struct {
	ReplicaID      string `json:"replica_id"`
	PersonaID      string `json:"persona_id"`
	UserInput      string `json:"user_input"`
	ConversationID string `json:"conversation_id,omitempty"`
	Context        string `json:"context,omitempty"`
}

func NewClient(cfg *config.TavusConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("TAVUS_API_KEY is not configured")
	}
	if cfg.ReplicaID == "" {
		return nil, fmt.Errorf("TAVUS_REPLICA_ID is not configured")
	}
	if cfg.PersonaID == "" {
		return nil, fmt.Errorf("TAVUS_PERSONA_ID is not configured")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://tavusapi.com"
	}

	return &Client{
		apiKey:    cfg.APIKey,
		replicaID: cfg.ReplicaID,
		personaID: cfg.PersonaID,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger.New(),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}, nil
}

// CreateConversation starts (or continues) a conversation with the
// configured replica and persona.
func (c *Client) CreateConversation(ctx context.Context, req ConversationRequest) (*Conversation, error) {
	input := strings.TrimSpace(req.UserInput)
	if input == "" {
		return nil, fmt.Errorf("user_input is required and cannot be empty")
	}

	body := apiRequest{
		ReplicaID:      c.replicaID,
		PersonaID:      c.personaID,
		UserInput:      input,
		ConversationID: req.ConversationID,
		Context:        personalizationContext(req.UserName, req.UserAge),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conversation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/conversations", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("User-Agent", "SafetyLearn-Platform/1.0")

	c.logger.Debug("Creating Tavus CVI conversation")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tavus request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tavus response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s", statusMessage(resp.StatusCode, respBody))
	}

	var conversation Conversation
	if err := json.Unmarshal(respBody, &conversation); err != nil {
		return nil, fmt.Errorf("failed to parse tavus response: %w", err)
	}
	if conversation.ConversationURL == "" {
		return nil, fmt.Errorf("tavus returned no conversation url")
	}
	if conversation.Status == "" {
		conversation.Status = "created"
	}

	c.logger.Infof("Tavus conversation created: %s", conversation.ConversationID)
	return &conversation, nil
}

// personalizationContext builds the context string sent with the
// conversation: name, age, and per-bucket language guidance.
func personalizationContext(name string, age int) string {
	var parts []string
	if name != "" {
		parts = append(parts, fmt.Sprintf("The user's name is %s", name))
	}
	if age > 0 {
		parts = append(parts, fmt.Sprintf("The user is %d years old", age))
		switch {
		case age >= 5 && age <= 10:
			parts = append(parts, "Please use simple, child-friendly language appropriate for young children")
		case age >= 11 && age <= 15:
			parts = append(parts, "Please use clear, educational language appropriate for pre-teens")
		case age >= 16 && age <= 19:
			parts = append(parts, "Please use professional but friendly language appropriate for young adults")
		}
	}
	return strings.Join(parts, ". ")
}

// statusMessage translates upstream status codes into actionable messages,
// appending JSON error details when the body carries them.
func statusMessage(status int, body []byte) string {
	var msg string
	switch {
	case status == http.StatusUnauthorized:
		msg = "Invalid access token. Please check your TAVUS_API_KEY configuration."
	case status == http.StatusForbidden:
		msg = "Access forbidden. Please verify your Tavus account permissions and API key."
	case status == http.StatusNotFound:
		msg = "Tavus API endpoint not found. Please check your replica ID and persona ID."
	case status == http.StatusTooManyRequests:
		msg = "Rate limit exceeded. Please try again in a few moments."
	case status >= 500:
		msg = "Tavus service temporarily unavailable. Please try again later."
	default:
		msg = fmt.Sprintf("Tavus CVI API error: %d", status)
	}

	if len(body) > 0 {
		var parsed struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
			msg += " Details: " + parsed.Message
		} else {
			msg += " Details: " + string(body)
		}
	}
	return msg
}
