package network

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestEncodeDecodePacket(t *testing.T) {
	raw, err := EncodePacket(MsgTypeChatMessage, []byte(`{"text":"approve"}`))
	if err != nil {
		t.Fatalf("EncodePacket failed: %v", err)
	}
	if !bytes.Equal(raw[:4], []byte{0, 201, 0, 18}) {
		t.Errorf("unexpected header % x", raw[:4])
	}

	p, err := DecodePacket(raw)
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	if p.MsgID != MsgTypeChatMessage || p.Length != 18 || string(p.Data) != `{"text":"approve"}` {
		t.Errorf("unexpected packet %+v", p)
	}

	var msg ChatMessage
	if err := Decode(p, &msg); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.Text != "approve" {
		t.Errorf("expected text approve, got %q", msg.Text)
	}
}

func TestDecodePacket_Short(t *testing.T) {
	if _, err := DecodePacket([]byte{0, 1}); !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("expected ErrShortBuffer for a truncated header, got %v", err)
	}
	if _, err := DecodePacket([]byte{0, 1, 0, 5, 'a'}); !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("expected ErrShortBuffer for a truncated body, got %v", err)
	}
}

func TestEncodePacket_TooLarge(t *testing.T) {
	if _, err := EncodePacket(MsgTypeNotification, make([]byte, MaxPayload+1)); !errors.Is(err, ErrPacketTooLarge) {
		t.Errorf("expected ErrPacketTooLarge, got %v", err)
	}
}
