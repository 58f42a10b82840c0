package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/voxel-client/internal/hub"
	"github.com/DoyleJ11/voxel-client/internal/journal"
)

const (
	codeLen      = 6
	defaultChatN = 50
	maxChatN     = 500
)

// ChatLog serves stored chat history.
type ChatLog interface {
	Recent(ctx context.Context, world string, n int) ([]journal.Entry, error)
}

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, codeLen)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func CreateWorld(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var code string
		for {
			c, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			if h.Get(c) == nil {
				code = c
				break
			}
			log.Debug("collision on code, regenerating", zap.String("code", c))
		}

		if h.Ensure(code) == nil {
			http.Error(w, "failed to create world", http.StatusServiceUnavailable)
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

func ListWorlds(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []string, 1)
		if !h.Send(hub.ListWorlds{Reply: reply}) {
			http.Error(w, "server stopping", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Worlds []string `json:"worlds"`
		}{Worlds: <-reply})
	}
}

type chatLine struct {
	From string    `json:"from,omitempty"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

func RecentChat(h *hub.Hub, chat ChatLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if h.Get(code) == nil {
			http.Error(w, "world not found", http.StatusNotFound)
			return
		}
		n := defaultChatN
		if v := r.URL.Query().Get("n"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed <= 0 || parsed > maxChatN {
				http.Error(w, "bad n", http.StatusBadRequest)
				return
			}
			n = parsed
		}

		entries, err := chat.Recent(r.Context(), code, n)
		if err != nil {
			http.Error(w, "failed to read chat", http.StatusInternalServerError)
			return
		}
		lines := make([]chatLine, 0, len(entries))
		for _, e := range entries {
			lines = append(lines, chatLine{From: e.From, Text: e.Text, At: e.At})
		}
		writeJSON(w, http.StatusOK, struct {
			Lines []chatLine `json:"lines"`
		}{Lines: lines})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
