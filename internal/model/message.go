package model

import "time"

// MessageStatus tracks SMS delivery.
type MessageStatus string

const (
	MessagePending MessageStatus = "pending"
	MessageSent    MessageStatus = "sent"
	MessageFailed  MessageStatus = "failed"
)

// MessageType classifies why a message was sent.
type MessageType string

const (
	MessageNotification MessageType = "notification"
	MessageReminder     MessageType = "reminder"
	MessageAlert        MessageType = "alert"
)

// Message is an outbound SMS and its delivery state.
type Message struct {
	ID          string        `json:"id"`
	To          string        `json:"to"`
	Content     string        `json:"content"`
	Type        MessageType   `json:"message_type"`
	Status      MessageStatus `json:"status"`
	ProviderSID string        `json:"provider_sid,omitempty"`
	Error       string        `json:"error,omitempty"`
	SendTime    time.Time     `json:"send_time"`
}
