package gateway

import (
	"fmt"
	"net/http"

	"github.com/junoproject/juno/internal/personality"
	"github.com/junoproject/juno/internal/store"
)

// handlePersonalitySave stores the setup-screen config and queues a
// first in-character greeting so the assistant introduces itself.
func (s *Server) handlePersonalitySave(w http.ResponseWriter, r *http.Request) {
	var p personality.Personality
	if err := decodeJSON(r, &p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.Name == "" {
		p.Name = "Assistant"
	}
	if err := s.personality.Save(p); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	if err := s.memory.SetPreference(ctx, "assistant_name", p.Name); err != nil {
		s.logger.Error("assistant name preference failed", "error", err)
	}

	profile := p.Profile
	if profile == "" {
		profile = "balanced"
	}
	if _, err := s.store.Add(ctx, store.AddTask{
		Title: "Compose greeting as " + p.Name,
		Description: fmt.Sprintf("Your name is %s. Personality: %s. "+
			"Write a warm in-character first greeting (2-3 sentences). "+
			"Save it to workspace as 'greeting.txt'.", p.Name, profile),
		Type:     store.TypePrepare,
		Priority: "high",
	}); err != nil {
		s.logger.Error("greeting task insert failed", "error", err)
	}

	writeJSON(w, map[string]string{"status": "saved", "name": p.Name})
}

func (s *Server) handlePersonalityGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.personality.Get())
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	presets, err := personality.Presets()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"presets": presets})
}
