package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/comigor/stockagent-go/internal/agent"
	"github.com/comigor/stockagent-go/internal/config"
	"github.com/comigor/stockagent-go/internal/llm"
	"github.com/comigor/stockagent-go/internal/logger"
	"github.com/comigor/stockagent-go/pkg/tools"
)

type chatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

type chatResponse struct {
	ThreadID string `json:"thread_id"`
	Content  string `json:"content"`
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}
	return req, true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		return
	}
	logger.SetLevel(cfg.Log.Level)

	llmClient := llm.NewClient(cfg.LLM)

	registry := tools.NewRegistry()
	registry.Register(tools.NewStockPriceTool())
	registry.Register(tools.NewCalculatorTool())
	tools.RegisterMCPServers(context.Background(), registry, cfg.MCPServers)
	logger.L.Info("tools registered", "tools", registry.Names())

	agentInstance := agent.New(llmClient, cfg, registry)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeChatRequest(w, r)
		if !ok {
			return
		}
		content, err := agentInstance.Process(r.Context(), req.ThreadID, req.Message)
		if err != nil {
			logger.L.Error("process error", "error", err, "thread_id", req.ThreadID)
			http.Error(w, "failed to process request", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(chatResponse{ThreadID: req.ThreadID, Content: content}); err != nil {
			logger.L.Warn("response encode error", "error", err)
		}
	})

	mux.HandleFunc("POST /chat/stream", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeChatRequest(w, r)
		if !ok {
			return
		}
		fragments, err := agentInstance.Stream(r.Context(), req.ThreadID, req.Message)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Thread-ID", req.ThreadID)
		flusher, _ := w.(http.Flusher)
		for fragment := range fragments {
			if _, err := fmt.Fprint(w, fragment); err != nil {
				logger.L.Warn("stream write error", "error", err)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	})

	mux.HandleFunc("POST /clear", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		agentInstance.Clear(req.ThreadID)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting server", "address", serverAddr)
	if err := http.ListenAndServe(serverAddr, mux); err != nil {
		logger.L.Error("failed to start server", "error", err)
	}
}
