package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Exemplo: servidor que imita users.get e groups.isMember da API do VK para
// rodar o gateway localmente (VK_API_URL=http://localhost:8081).
//
// Ids numéricos existem; "0" não existe. Ids não numéricos em groups.isMember
// devolvem o erro 100 como a API real. Pares membros vêm de
// FAKE_VK_MEMBERS="usuario:grupo,usuario:grupo".
func main() {
	logger := zap.Must(zap.NewDevelopment())
	defer func() { _ = logger.Sync() }()

	members := parseMembers(os.Getenv("FAKE_VK_MEMBERS"))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/users.get", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("user_ids")
		logger.Info("users.get", zap.String("user_ids", id))
		if id == "0" || id == "" {
			writeJSON(w, map[string]any{"response": []any{}})
			return
		}
		writeJSON(w, map[string]any{"response": []map[string]any{{
			"id":         id,
			"first_name": "First" + id,
			"last_name":  "Last" + id,
			"nickname":   "Nick" + id,
		}}})
	})
	r.Get("/groups.isMember", func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		groupID := r.URL.Query().Get("group_id")
		logger.Info("groups.isMember", zap.String("user_id", userID), zap.String("group_id", groupID))
		if _, err := strconv.Atoi(userID); err != nil {
			writeJSON(w, map[string]any{"error": map[string]any{
				"error_code":     100,
				"error_msg":      "One of the parameters specified was missing or invalid: user_id not integer",
				"request_params": []any{},
			}})
			return
		}
		flag := 0
		if members[userID+":"+groupID] {
			flag = 1
		}
		writeJSON(w, map[string]any{"response": flag})
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("fake vk listening", zap.String("addr", addr), zap.Int("members", len(members)))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func parseMembers(raw string) map[string]bool {
	out := make(map[string]bool)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if strings.Count(pair, ":") == 1 {
			out[pair] = true
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
