package http

import (
	"net/http"
	"time"

	"fintrack/internal/core"
)

type chatResponse struct {
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// handleChat always answers with 200 once the message is present. The
// engine itself replies with the sign-in prompt to anonymous callers.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	message := p.Get("message")
	if message == "" {
		UnprocessableEntityError("message is required").Write(w)
		return
	}
	reply := s.deps.Chat.Respond(r.Context(), sessionFrom(r.Context()), message)
	NewResponse().JSON(chatResponse{
		Message:   message,
		Response:  reply,
		Timestamp: time.Now().UTC(),
	}).Write(w)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	history := s.deps.Chat.History(r.Context(), sessionFrom(r.Context()))
	if history == nil {
		history = []core.ChatMessage{}
	}
	NewResponse().JSON(history).Write(w)
}
