// Package ws serves client sessions over websocket.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/voxel-client/internal/hub"
	"github.com/DoyleJ11/voxel-client/internal/protocol"
	"github.com/DoyleJ11/voxel-client/internal/world"
)

const (
	helloTimeout = 5 * time.Second
	readTimeout  = 30 * time.Second
	writeTimeout = 3 * time.Second
	outboxSize   = 64
	readLimit    = 64 << 10
)

func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("world")
		if code == "" {
			http.Error(w, "missing world", http.StatusBadRequest)
			return
		}
		wd := h.Get(code)
		if wd == nil {
			http.Error(w, "world not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debug("accept", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(readLimit)

		hello, err := readHello(r.Context(), conn)
		if err != nil {
			log.Debug("handshake", zap.Error(err))
			writeError(r.Context(), conn, "expected hello")
			return
		}

		clientID := uuid.NewString()
		clog := log.With(zap.String("world", code), zap.String("client_id", clientID), zap.String("name", hello.Name))

		welcome, err := protocol.Encode(protocol.MsgWelcome, protocol.Welcome{
			V:        protocol.Version,
			ClientID: clientID,
			TickHz:   wd.TickHz(),
		})
		if err != nil {
			clog.Error("encode welcome", zap.Error(err))
			return
		}
		if err := write(r.Context(), conn, welcome); err != nil {
			return
		}
		if hello.V != protocol.Version {
			// the client rejects our welcome and hangs up
			clog.Info("protocol mismatch", zap.Int("client_version", hello.V))
			return
		}

		out := make(chan []byte, outboxSize)
		if !wd.Send(world.Join{ClientID: clientID, Name: hello.Name, Outbox: out}) {
			conn.Close(websocket.StatusGoingAway, "world closed")
			return
		}
		defer wd.Send(world.Leave{ClientID: clientID})

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for frame := range out {
				if err := write(writeCtx, conn, frame); err != nil {
					clog.Debug("write", zap.Error(err))
					conn.CloseNow()
					return
				}
			}
			// the world is done with us
			conn.Close(websocket.StatusNormalClosure, "world closed")
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					clog.Info("client disconnected")
				default:
					clog.Info("connection lost", zap.Error(err))
				}
				return
			}

			msg, reply, ok := toWorldMsg(clientID, data)
			if !ok {
				writeError(r.Context(), conn, "bad message")
				continue
			}
			if msg == nil {
				continue
			}
			wd.Send(msg)
			if reply != nil {
				go awaitSpawn(r.Context(), conn, reply, clog)
			}
		}
	}
}

// toWorldMsg turns a client frame into a world message. A ping only resets
// the read deadline, so it yields no message.
func toWorldMsg(clientID string, data []byte) (world.Msg, chan error, bool) {
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		return nil, nil, false
	}
	switch env.T {
	case protocol.MsgSpawn:
		s, err := protocol.DecodePayload[protocol.Spawn](env)
		if err != nil {
			return nil, nil, false
		}
		reply := make(chan error, 1)
		return world.Spawn{ClientID: clientID, Character: s.Character, Race: s.Race, Weapon: s.Weapon, Reply: reply}, reply, true
	case protocol.MsgDespawn:
		return world.Despawn{ClientID: clientID}, nil, true
	case protocol.MsgInput:
		in, err := protocol.DecodePayload[protocol.Input](env)
		if err != nil {
			return nil, nil, false
		}
		return world.Input{ClientID: clientID, MoveDir: mgl32.Vec2(in.MoveDir)}, nil, true
	case protocol.MsgChat:
		c, err := protocol.DecodePayload[protocol.Chat](env)
		if err != nil {
			return nil, nil, false
		}
		return world.Chat{ClientID: clientID, Text: c.Text}, nil, true
	case protocol.MsgPing:
		return nil, nil, true
	default:
		return nil, nil, false
	}
}

func awaitSpawn(ctx context.Context, conn *websocket.Conn, reply <-chan error, log *zap.Logger) {
	select {
	case err := <-reply:
		if err != nil {
			log.Info("spawn rejected", zap.Error(err))
			writeError(ctx, conn, "spawn rejected: "+err.Error())
		}
	case <-ctx.Done():
	}
}

func readHello(ctx context.Context, conn *websocket.Conn) (protocol.Hello, error) {
	ctx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		return protocol.Hello{}, err
	}
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		return protocol.Hello{}, err
	}
	if env.T != protocol.MsgHello {
		return protocol.Hello{}, errors.New("first frame is not hello")
	}
	return protocol.DecodePayload[protocol.Hello](env)
}

func write(ctx context.Context, conn *websocket.Conn, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	frame, err := protocol.Encode(protocol.MsgError, protocol.Error{Error: msg})
	if err != nil {
		return
	}
	_ = write(ctx, conn, frame)
}
