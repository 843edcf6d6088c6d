package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/career-coach/internal/errs"
	"github.com/wolfman30/career-coach/internal/events"
	"github.com/wolfman30/career-coach/internal/session"
)

var clientTracer = otel.Tracer("coach.internal.channels.whatsapp.client")

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v18.0"
	defaultHTTPTimeout  = 10 * time.Second
)

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	accessToken   string
	phoneNumberID string
	graphAPIBase  string
	httpClient    *http.Client
}

// NewClient creates a Graph API client. phoneNumberID is used when neither
// the reply nor the request session names a business number.
func NewClient(accessToken, phoneNumberID string) *Client {
	return &Client{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		graphAPIBase:  defaultGraphAPIBase,
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// SetGraphAPIBase overrides the Graph API base URL.
func (c *Client) SetGraphAPIBase(base string) {
	if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
		c.graphAPIBase = base
	}
}

// Ready reports whether the client has credentials.
func (c *Client) Ready() bool {
	return c != nil && c.accessToken != ""
}

// Send delivers reply as a text, button or list message and returns the
// provider message id. Exactly one HTTP request is made; there is no retry.
func (c *Client) Send(ctx context.Context, reply events.OutboundReply) (string, error) {
	switch reply.Kind {
	case events.ReplyButtonMenu:
		return c.SendButtons(ctx, reply.ChannelID, reply.Target, reply.Text, reply.Options)
	case events.ReplyListMenu:
		return c.SendList(ctx, reply.ChannelID, reply.Target, reply.Text, reply.MenuButton, reply.MenuTitle, reply.Options)
	default:
		return c.SendText(ctx, reply.ChannelID, reply.Target, reply.Text)
	}
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, phoneNumberID, to, text string) (string, error) {
	return c.send(ctx, phoneNumberID, sendRequest{
		To:   to,
		Type: "text",
		Text: &sendText{Body: text},
	})
}

// SendButtons sends an interactive reply-button message. Options beyond the
// provider limit are passed through as given.
func (c *Client) SendButtons(ctx context.Context, phoneNumberID, to, text string, options []events.Option) (string, error) {
	buttons := make([]sendButton, 0, len(options))
	for _, opt := range options {
		buttons = append(buttons, sendButton{Type: "reply", Reply: sendChoice{ID: opt.ID, Title: opt.Label}})
	}
	return c.send(ctx, phoneNumberID, sendRequest{
		To:   to,
		Type: "interactive",
		Interactive: &sendInteractive{
			Type:   "button",
			Body:   sendBody{Text: text},
			Action: sendAction{Buttons: buttons},
		},
	})
}

// SendList sends an interactive list message with one section.
func (c *Client) SendList(ctx context.Context, phoneNumberID, to, text, button, sectionTitle string, options []events.Option) (string, error) {
	rows := make([]sendRow, 0, len(options))
	for _, opt := range options {
		rows = append(rows, sendRow{ID: opt.ID, Title: opt.Label, Description: opt.Description})
	}
	if button == "" {
		button = "Choose"
	}
	return c.send(ctx, phoneNumberID, sendRequest{
		To:   to,
		Type: "interactive",
		Interactive: &sendInteractive{
			Type: "list",
			Body: sendBody{Text: text},
			Action: sendAction{
				Button:   button,
				Sections: []sendSection{{Title: sectionTitle, Rows: rows}},
			},
		},
	})
}

func (c *Client) send(ctx context.Context, phoneNumberID string, req sendRequest) (string, error) {
	if !c.Ready() {
		return "", errs.NotInitialized("whatsapp client")
	}
	if phoneNumberID == "" {
		phoneNumberID = session.ChannelID(ctx, c.phoneNumberID)
	}
	if phoneNumberID == "" {
		return "", errs.NotInitialized("whatsapp phone number id")
	}
	if strings.TrimSpace(req.To) == "" {
		return "", fmt.Errorf("whatsapp: recipient required")
	}
	req.MessagingProduct = "whatsapp"
	req.RecipientType = "individual"

	ctx, span := clientTracer.Start(ctx, "whatsapp.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("coach.phone_number_id", phoneNumberID),
		attribute.String("coach.message_type", req.Type),
	)

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp: marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.graphAPIBase, phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("whatsapp: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return "", errs.Downstream("whatsapp: send message", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errs.Downstream("whatsapp: read response", err)
	}

	var sendResp SendResponse
	_ = json.Unmarshal(respBody, &sendResp)
	if sendResp.Error != nil {
		err := fmt.Errorf("API error %d: %s", sendResp.Error.Code, sendResp.Error.Message)
		span.RecordError(err)
		return "", errs.Downstream("whatsapp", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		span.RecordError(err)
		return "", errs.Downstream("whatsapp", err)
	}
	if len(sendResp.Messages) == 0 || sendResp.Messages[0].ID == "" {
		err := fmt.Errorf("accepted without a message id: %s", strings.TrimSpace(string(respBody)))
		span.RecordError(err)
		return "", errs.Downstream("whatsapp", err)
	}
	return sendResp.Messages[0].ID, nil
}
