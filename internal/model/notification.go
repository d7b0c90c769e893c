package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Subject discriminates notification bodies.
type Subject string

const (
	// SubjectOrderCreated is published when an order is placed.
	SubjectOrderCreated Subject = "ORDER_CREATED"
	// SubjectOrderStatusUpdated is published when an order changes status.
	SubjectOrderStatusUpdated Subject = "ORDER_STATUS_UPDATED"
)

// Notification is a decoded queue message body.
// Implementations: OrderCreated, OrderStatusUpdated, UnknownNotification.
type Notification interface {
	Subject() Subject
	Text() string
}

// OrderSnapshot is the order state carried in an order notification, when
// the message text is the order encoded as JSON.
type OrderSnapshot struct {
	ID          FlexString `json:"id"`
	UserID      FlexString `json:"userId"`
	ProductName string     `json:"productName,omitempty"`
	Quantity    int        `json:"quantity,omitempty"`
	TotalAmount FlexString `json:"totalAmount,omitempty"`
	Status      string     `json:"status,omitempty"`
}

// FlexString holds a JSON string or number as text. Order ids arrive as
// numbers from some publishers and as strings from others.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())

	return nil
}

// OrderCreated is the ORDER_CREATED notification.
type OrderCreated struct {
	Message string
	Order   *OrderSnapshot
}

// Subject returns SubjectOrderCreated.
func (OrderCreated) Subject() Subject { return SubjectOrderCreated }

// Text returns the message text as published.
func (n OrderCreated) Text() string { return n.Message }

// OrderStatusUpdated is the ORDER_STATUS_UPDATED notification.
type OrderStatusUpdated struct {
	Message string
	Order   *OrderSnapshot
}

// Subject returns SubjectOrderStatusUpdated.
func (OrderStatusUpdated) Subject() Subject { return SubjectOrderStatusUpdated }

// Text returns the message text as published.
func (n OrderStatusUpdated) Text() string { return n.Message }

// UnknownNotification carries any subject this service does not handle.
type UnknownNotification struct {
	RawSubject string
	Message    string
}

// Subject returns the subject exactly as received.
func (n UnknownNotification) Subject() Subject { return Subject(n.RawSubject) }

// Text returns the message text as published.
func (n UnknownNotification) Text() string { return n.Message }

// envelope is the wire shape. Field matching is case-insensitive, so SNS
// envelopes ({"Subject": ..., "Message": ...}) decode as well.
type envelope struct {
	Subject *string         `json:"subject"`
	Message json.RawMessage `json:"message"`
}

// DecodeNotification decodes a queue message body. Malformed input yields a
// *DecodeError, never a panic.
func DecodeNotification(body string) (Notification, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, &DecodeError{Reason: "empty body"}
	}

	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return nil, &DecodeError{Reason: "body is not a JSON object", Err: err}
	}

	if env.Subject == nil {
		return nil, &DecodeError{Reason: "missing subject"}
	}

	text, err := messageText(env.Message)
	if err != nil {
		return nil, err
	}

	switch Subject(*env.Subject) {
	case SubjectOrderCreated:
		return OrderCreated{Message: text, Order: parseOrder(text)}, nil
	case SubjectOrderStatusUpdated:
		return OrderStatusUpdated{Message: text, Order: parseOrder(text)}, nil
	default:
		return UnknownNotification{RawSubject: *env.Subject, Message: text}, nil
	}
}

// EncodeNotification builds a message body in the form DecodeNotification reads.
func EncodeNotification(subject Subject, message string) (string, error) {
	b, err := json.Marshal(struct {
		Subject Subject `json:"subject"`
		Message string  `json:"message"`
	}{Subject: subject, Message: message})
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// messageText returns the message as text. A JSON string is unquoted; an
// embedded object or array is kept as its JSON text.
func messageText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", &DecodeError{Reason: "message is not a valid string", Err: err}
		}
		return s, nil
	}

	return string(raw), nil
}

func parseOrder(text string) *OrderSnapshot {
	if !strings.HasPrefix(strings.TrimSpace(text), "{") {
		return nil
	}

	var order OrderSnapshot
	if err := json.Unmarshal([]byte(text), &order); err != nil {
		return nil
	}
	if order.ID == "" && order.UserID == "" && order.Status == "" {
		return nil
	}

	return &order
}

// OrderNotification is a recorded order-lifecycle notification.
type OrderNotification struct {
	MessageID  string     `json:"message_id"`
	Subject    Subject    `json:"subject"`
	OrderID    *string    `json:"order_id"`
	UserID     *uuid.UUID `json:"user_id"`
	Status     *string    `json:"status"`
	Message    string     `json:"message"`
	ReceivedAt time.Time  `json:"received_at"`
}

// DeadLetter is a message removed from the queue after exhausting its receives.
type DeadLetter struct {
	MessageID    string    `json:"message_id"`
	Body         string    `json:"body"`
	Reason       string    `json:"reason"`
	ReceiveCount int       `json:"receive_count"`
	CreatedAt    time.Time `json:"created_at"`
}
