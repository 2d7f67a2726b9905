package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APISender posts the message to a transactional-email HTTP endpoint as
// JSON with a bearer token. The payload shape follows the common
// personalizations/content/attachments convention.
type APISender struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewAPISender(url, token string) *APISender {
	return &APISender{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

type apiAddress struct {
	Email string `json:"email"`
}

type apiPersonalization struct {
	To []apiAddress `json:"to"`
}

type apiContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type apiAttachment struct {
	Content     string `json:"content"` // base64
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition"`
}

type apiPayload struct {
	Personalizations []apiPersonalization `json:"personalizations"`
	From             apiAddress           `json:"from"`
	Subject          string               `json:"subject"`
	Content          []apiContent         `json:"content"`
	Attachments      []apiAttachment      `json:"attachments,omitempty"`
}

func (s *APISender) Send(ctx context.Context, msg Message) error {
	to := make([]apiAddress, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, apiAddress{Email: addr})
	}

	payload := apiPayload{
		Personalizations: []apiPersonalization{{To: to}},
		From:             apiAddress{Email: msg.From},
		Subject:          msg.Subject,
		Content:          []apiContent{{Type: "text/plain", Value: msg.Body}},
	}
	if msg.Attachment.Filename != "" {
		mimeType := msg.Attachment.MIMEType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		payload.Attachments = []apiAttachment{{
			Content:     base64.StdEncoding.EncodeToString(msg.Attachment.Content),
			Type:        mimeType,
			Filename:    msg.Attachment.Filename,
			Disposition: "attachment",
		}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &SendError{Transport: "api", Err: fmt.Errorf("marshaling payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return &SendError{Transport: "api", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Token)

	resp, err := s.Client.Do(req)
	if err != nil {
		return &SendError{Transport: "api", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		diag, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &SendError{
			Transport: "api",
			Err:       fmt.Errorf("provider returned %s: %s", resp.Status, string(diag)),
		}
	}
	return nil
}
