package tts

import (
	"context"

	"github.com/safetylearn/safetylearn-web/config"
	"github.com/safetylearn/safetylearn-web/internal/models"
)

type Tts interface {
	Name() string
	// GenerateAudio renders text as MP3 with a voice suited to the age group.
	GenerateAudio(ctx context.Context, text string, group models.AgeGroup) ([]byte, error)
}

// NewTts builds the configured TTS client, falling back to the dummy when
// disabled or unconfigured.
func NewTts(cfg *config.TtsConfig) (Tts, error) {
	if cfg == nil || !cfg.Enabled {
		return NewDummyTts(), nil
	}

	switch cfg.Type {
	case "google":
		return NewWebGoogleTTSClient(cfg)
	default:
		return NewDummyTts(), nil
	}
}
