package tts

import (
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	"github.com/safetylearn/safetylearn-web/config"
	"github.com/safetylearn/safetylearn-web/internal/logger"
	"github.com/safetylearn/safetylearn-web/internal/models"
)

type WebGoogleTTS struct {
	client *texttospeech.Client
	logger *logger.Log
}

func NewWebGoogleTTSClient(cfg *config.TtsConfig) (*WebGoogleTTS, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google TTS client: %w", err)
	}

	return &WebGoogleTTS{
		client: client,
		logger: logger.New(),
	}, nil
}

// GenerateAudio renders a lesson or chat reply as MP3. Voice and pacing
// track the age group: slower and brighter for young children, a neutral
// adult voice for teens.
func (g *WebGoogleTTS) GenerateAudio(ctx context.Context, text string, group models.AgeGroup) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	// Square brackets mark stage directions in lesson scripts, skip them.
	cleanText := strings.ReplaceAll(text, "[", "")
	cleanText = strings.ReplaceAll(cleanText, "]", "")

	voiceName := voiceForAgeGroup(group)

	req := &ttspb.SynthesizeSpeechRequest{
		Input: &ttspb.SynthesisInput{
			InputSource: &ttspb.SynthesisInput_Text{Text: cleanText},
		},
		Voice: &ttspb.VoiceSelectionParams{
			LanguageCode: extractLanguageCode(voiceName),
			Name:         voiceName,
		},
		AudioConfig: &ttspb.AudioConfig{
			AudioEncoding:   ttspb.AudioEncoding_MP3,
			SpeakingRate:    speakingRateForAgeGroup(group),
			Pitch:           pitchForAgeGroup(group),
			VolumeGainDb:    0.0,
			SampleRateHertz: 22050,
		},
	}

	g.logger.Debugf("Generating Google TTS audio with voice %s for age group %s", voiceName, group)

	resp, err := g.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	if len(resp.AudioContent) == 0 {
		return nil, fmt.Errorf("empty audio content received from Google TTS")
	}

	g.logger.Debugf("Generated %d bytes of MP3 audio", len(resp.AudioContent))
	return resp.AudioContent, nil
}

func (g *WebGoogleTTS) Name() string {
	return "Google Cloud Text-to-Speech (Web)"
}

func (g *WebGoogleTTS) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Extract language code from voice name (e.g., "en-US-Standard-F" -> "en-US")
func extractLanguageCode(voiceName string) string {
	parts := strings.Split(voiceName, "-")
	if len(parts) >= 2 {
		return fmt.Sprintf("%s-%s", parts[0], parts[1])
	}
	return "en-US"
}

func voiceForAgeGroup(group models.AgeGroup) string {
	switch group {
	case models.AgeGroupYoung:
		return "en-US-Standard-F"
	case models.AgeGroupMid:
		return "en-US-Standard-C"
	case models.AgeGroupTeen:
		return "en-US-Standard-D"
	default:
		return "en-US-Standard-C"
	}
}

func speakingRateForAgeGroup(group models.AgeGroup) float64 {
	switch group {
	case models.AgeGroupYoung:
		return 0.85
	case models.AgeGroupMid:
		return 0.95
	default:
		return 1.0
	}
}

func pitchForAgeGroup(group models.AgeGroup) float64 {
	switch group {
	case models.AgeGroupYoung:
		return 2.0
	case models.AgeGroupMid:
		return 0.5
	default:
		return 0.0
	}
}
