package network

import (
	"encoding/json"
	"fmt"
)

const (
	MsgTypeHeartbeat     = 1
	MsgTypeHello         = 2
	MsgTypeWelcome       = 3
	MsgTypeJoinChannel   = 101
	MsgTypeLeaveChannel  = 102
	MsgTypeChatMessage   = 201
	MsgTypeNotification  = 301
	MsgTypeDirectMessage = 302
	MsgTypeError         = 401
)

// Hello identifies the connection's user; it must precede any chat packet.
type Hello struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Welcome answers Hello with the session id and the user's direct channel.
type Welcome struct {
	SessionID     string `json:"session_id"`
	DirectChannel string `json:"direct_channel"`
}

type ChannelRequest struct {
	Channel string `json:"channel"`
}

// ChatMessage is sent by clients and relayed to everyone in the channel.
type ChatMessage struct {
	Channel string `json:"channel"`
	UserID  string `json:"user_id,omitempty"`
	Name    string `json:"name,omitempty"`
	Text    string `json:"text"`
}

// Notification is game or lobby output. Color and Kind are style hints.
type Notification struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
	Color   string `json:"color,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

// Encode marshals a payload for Send.
func Encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if len(data) > MaxPayload {
		return nil, ErrPacketTooLarge
	}
	return data, nil
}

// Decode unmarshals a packet body into v.
func Decode(p *Packet, v interface{}) error {
	if err := json.Unmarshal(p.Data, v); err != nil {
		return fmt.Errorf("decode packet %d: %w", p.MsgID, err)
	}
	return nil
}
