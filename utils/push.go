package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PushMessage is one Expo push notification.
type PushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

type expoResponse struct {
	Data []struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// PushClient posts notifications to the Expo push service.
type PushClient struct {
	url    string
	client *http.Client
}

func NewPushClient(url string) *PushClient {
	return &PushClient{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// IsExpoToken reports whether token looks like an Expo push token.
func IsExpoToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}

func (c *PushClient) Send(ctx context.Context, msg PushMessage) error {
	if msg.Sound == "" {
		msg.Sound = "default"
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach expo: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expo push error (%d): %s", resp.StatusCode, string(body))
	}

	var parsed expoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("failed to parse expo response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return fmt.Errorf("expo push error: %s", parsed.Errors[0].Message)
	}
	for _, ticket := range parsed.Data {
		if ticket.Status == "error" {
			return fmt.Errorf("expo push ticket error: %s", ticket.Message)
		}
	}
	return nil
}
