package discord

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	gatewayWriteTimeout = 3 * time.Second

	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opHello          = 10
	opHeartbeatACK   = 11
	defaultGatewayWS = "wss://gateway.discord.gg/?v=9&encoding=json"
)

// MessageHandler receives the raw chat events the correlation engine consumes.
type MessageHandler interface {
	OnMessageCreate(msg Message)
	OnMessageUpdate(msg Message)
}

// GatewayConfig configures the bot gateway session.
type GatewayConfig struct {
	BotToken string
	// WSURL overrides the gateway endpoint, for tests.
	WSURL string
}

// Gateway maintains the Discord gateway websocket session and forwards
// MESSAGE_CREATE / MESSAGE_UPDATE dispatches. Connection management (identify,
// heartbeat, reconnect with backoff) stays here; the engine only ever sees
// Message values.
type Gateway struct {
	cfg     GatewayConfig
	handler MessageHandler
	dialer  websocket.Dialer
}

func NewGateway(cfg GatewayConfig, handler MessageHandler) *Gateway {
	if cfg.WSURL == "" {
		cfg.WSURL = defaultGatewayWS
	}
	return &Gateway{
		cfg:     cfg,
		handler: handler,
		dialer:  websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

type gatewayFrame struct {
	Op   int             `json:"op"`
	Seq  *int64          `json:"s,omitempty"`
	Type string          `json:"t,omitempty"`
	Data json.RawMessage `json:"d,omitempty"`
}

type helloPayload struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// Run keeps the session alive until ctx is cancelled, reconnecting with
// exponential backoff after failures.
func (g *Gateway) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := g.session(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("gateway session ended: %v, reconnecting in %s", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (g *Gateway) session(ctx context.Context) error {
	// sessCtx ends with this call so the reader goroutine cannot outlive the
	// session it reads for.
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, _, err := g.dialer.DialContext(ctx, g.cfg.WSURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	hello, err := g.readFrame(conn)
	if err != nil {
		return err
	}
	if hello.Op != opHello {
		return errors.New("gateway did not start with hello")
	}
	var hp helloPayload
	if err := json.Unmarshal(hello.Data, &hp); err != nil {
		return err
	}

	if err := g.writeFrame(conn, gatewayFrame{Op: opIdentify, Data: g.identifyPayload()}); err != nil {
		return err
	}

	var lastSeq int64
	frames := make(chan gatewayFrame)
	readErr := make(chan error, 1)
	go func() {
		for {
			frame, err := g.readFrame(conn)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- frame:
			case <-sessCtx.Done():
				return
			}
		}
	}()

	heartbeat := time.NewTicker(time.Duration(hp.HeartbeatInterval) * time.Millisecond)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(gatewayWriteTimeout))
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-heartbeat.C:
			seq, _ := json.Marshal(lastSeq)
			if err := g.writeFrame(conn, gatewayFrame{Op: opHeartbeat, Data: seq}); err != nil {
				return err
			}
		case frame := <-frames:
			if frame.Seq != nil {
				lastSeq = *frame.Seq
			}
			switch frame.Op {
			case opDispatch:
				g.dispatch(frame)
			case opHeartbeatACK:
			case opHeartbeat:
				seq, _ := json.Marshal(lastSeq)
				if err := g.writeFrame(conn, gatewayFrame{Op: opHeartbeat, Data: seq}); err != nil {
					return err
				}
			}
		}
	}
}

func (g *Gateway) dispatch(frame gatewayFrame) {
	switch frame.Type {
	case "MESSAGE_CREATE", "MESSAGE_UPDATE":
	default:
		return
	}
	var msg Message
	if err := json.Unmarshal(frame.Data, &msg); err != nil {
		log.Printf("gateway: undecodable %s payload: %v", frame.Type, err)
		return
	}
	if frame.Type == "MESSAGE_CREATE" {
		g.handler.OnMessageCreate(msg)
	} else {
		g.handler.OnMessageUpdate(msg)
	}
}

func (g *Gateway) identifyPayload() json.RawMessage {
	payload, _ := json.Marshal(map[string]any{
		"token": g.cfg.BotToken,
		// GUILDS + GUILD_MESSAGES + MESSAGE_CONTENT
		"intents": 1<<0 | 1<<9 | 1<<15,
		"properties": map[string]string{
			"os":      "linux",
			"browser": "mjbridge",
			"device":  "mjbridge",
		},
	})
	return payload
}

func (g *Gateway) readFrame(conn *websocket.Conn) (gatewayFrame, error) {
	var frame gatewayFrame
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return frame, err
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return frame, err
	}
	return frame, nil
}

func (g *Gateway) writeFrame(conn *websocket.Conn, frame gatewayFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(gatewayWriteTimeout))
	return conn.WriteJSON(frame)
}
