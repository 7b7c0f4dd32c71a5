package main

import (
	"bufio"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/websocket"

	"github.com/wfunc/avalon/network"
)

type Config struct {
	Addr      string        `env:"AVALON_ADDR"      envDefault:"localhost:8080"`
	UserID    string        `env:"AVALON_USER_ID,required"`
	Name      string        `env:"AVALON_NAME"`
	Channel   string        `env:"AVALON_CHANNEL"   envDefault:"general"`
	Heartbeat time.Duration `env:"AVALON_HEARTBEAT" envDefault:"20s"`
}

// send encodes a payload and writes one framed packet.
func send(c *websocket.Conn, msgID uint16, v interface{}) error {
	data, err := network.Encode(v)
	if err != nil {
		return err
	}
	packet, err := network.EncodePacket(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func render(packet *network.Packet) string {
	switch packet.MsgID {
	case network.MsgTypeChatMessage:
		var m network.ChatMessage
		if network.Decode(packet, &m) == nil {
			return fmt.Sprintf("[%s] %s: %s", m.Channel, m.Name, m.Text)
		}
	case network.MsgTypeNotification, network.MsgTypeDirectMessage:
		var n network.Notification
		if network.Decode(packet, &n) == nil {
			return fmt.Sprintf("[%s] %s", n.Channel, n.Message)
		}
	case network.MsgTypeWelcome:
		var w network.Welcome
		if network.Decode(packet, &w) == nil {
			return fmt.Sprintf("connected as session %s, whisper with /dm", w.SessionID)
		}
	case network.MsgTypeError:
		var e network.ErrorMessage
		if network.Decode(packet, &e) == nil {
			return "error: " + e.Message
		}
	case network.MsgTypeHeartbeat, network.MsgTypeJoinChannel, network.MsgTypeLeaveChannel:
		return ""
	}
	return fmt.Sprintf("(ID: %d) %s", packet.MsgID, packet.Data)
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Name == "" {
		cfg.Name = cfg.UserID
	}
	direct := "dm:" + cfg.UserID

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: cfg.Addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			packet, err := network.DecodePacket(message)
			if err != nil {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			if line := render(packet); line != "" {
				fmt.Println(line)
			}
		}
	}()

	if err := send(c, network.MsgTypeHello, network.Hello{UserID: cfg.UserID, Name: cfg.Name}); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}
	if err := send(c, network.MsgTypeJoinChannel, network.ChannelRequest{Channel: cfg.Channel}); err != nil {
		log.Fatalf("Join failed: %v", err)
	}

	lines := make(chan string)
	go func() {
		reader := bufio.NewScanner(os.Stdin)
		for reader.Scan() {
			lines <- reader.Text()
		}
		close(lines)
	}()

	log.Printf("Joined #%s. Type `play avalon` to open a game, `/dm <text>` to answer privately.", cfg.Channel)

	heartbeat := time.NewTicker(cfg.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			return
		case <-heartbeat.C:
			if err := send(c, network.MsgTypeHeartbeat, nil); err != nil {
				log.Println("Write error:", err)
				return
			}
		case text, ok := <-lines:
			if !ok {
				return
			}
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			channel := cfg.Channel
			if rest, found := strings.CutPrefix(text, "/dm "); found {
				channel, text = direct, rest
			}
			if err := send(c, network.MsgTypeChatMessage, network.ChatMessage{Channel: channel, Text: text}); err != nil {
				log.Println("Write error:", err)
				return
			}
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
