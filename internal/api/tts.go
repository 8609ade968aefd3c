package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/safetylearn/safetylearn-web/internal/auth"
	"github.com/safetylearn/safetylearn-web/internal/models"
	"github.com/safetylearn/safetylearn-web/internal/tts"
)

type TTSHandler struct {
	ttsClient tts.Tts
}

type TTSRequest struct {
	Text     string          `json:"text"`
	AgeGroup models.AgeGroup `json:"age_group"`
}

func NewTTSHandler(ttsClient tts.Tts) *TTSHandler {
	return &TTSHandler{ttsClient: ttsClient}
}

// POST /api/v1/tts/speak - Generate and stream TTS audio
func (th *TTSHandler) SpeakText(w http.ResponseWriter, r *http.Request) {
	var req TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Text == "" {
		http.Error(w, "Text is required", http.StatusBadRequest)
		return
	}

	group := req.AgeGroup
	if !group.IsValid() {
		// Fall back to the signed-in user's bucket.
		manager := auth.ManagerFromContext(r.Context())
		if user := manager.CurrentUser(r.Context()); user != nil {
			group = user.AgeGroup
		} else {
			group = models.AgeGroupMid
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	audioData, err := th.ttsClient.GenerateAudio(ctx, req.Text, group)
	if err != nil {
		http.Error(w, "Failed to generate TTS: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Stream MP3 audio to browser
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache")

	if _, err := w.Write(audioData); err != nil {
		http.Error(w, "Failed to stream audio", http.StatusInternalServerError)
		return
	}
}

func RegisterTTSRoutes(r *mux.Router, ttsClient tts.Tts) {
	if ttsClient == nil {
		return
	}

	th := NewTTSHandler(ttsClient)
	r.HandleFunc("/tts/speak", th.SpeakText).Methods("POST")
}
