package tts

import (
	"context"
	"fmt"

	"github.com/safetylearn/safetylearn-web/internal/logger"
	"github.com/safetylearn/safetylearn-web/internal/models"
)

type DummyTts struct {
}

func NewDummyTts() *DummyTts {
	return &DummyTts{}
}

func (d *DummyTts) GenerateAudio(_ context.Context, text string, _ models.AgeGroup) ([]byte, error) {
	logger.New().Debug("no tts configured. ignoring TTS request")
	return nil, fmt.Errorf("text-to-speech is not configured")
}

func (d *DummyTts) Name() string {
	return "dummy"
}
