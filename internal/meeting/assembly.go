package meeting

import (
	"context"
	"fmt"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
)

// AssemblyAI transcribes recordings with automatic chapter detection.
type AssemblyAI struct {
	client *aai.Client
}

// NewAssemblyAI creates a Transcriber backed by AssemblyAI.
func NewAssemblyAI(apiKey string) (*AssemblyAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("AssemblyAI API key is required")
	}
	return &AssemblyAI{client: aai.NewClient(apiKey)}, nil
}

// Transcribe submits the recording URL and waits for the finished transcript.
func (a *AssemblyAI) Transcribe(ctx context.Context, audioURL string) (*Transcript, error) {
	transcript, err := a.client.Transcripts.TranscribeFromURL(ctx, audioURL, &aai.TranscriptOptionalParams{
		AutoChapters: aai.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("transcribing audio: %w", err)
	}

	result := &Transcript{Text: aai.ToString(transcript.Text)}
	for _, ch := range transcript.Chapters {
		result.Chapters = append(result.Chapters, Chapter{
			Headline: aai.ToString(ch.Headline),
			Gist:     aai.ToString(ch.Gist),
			Summary:  aai.ToString(ch.Summary),
			StartMS:  aai.ToInt64(ch.Start),
			EndMS:    aai.ToInt64(ch.End),
		})
	}
	return result, nil
}
