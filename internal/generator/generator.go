// Package generator turns a vibe (free text, images, or both) into a named
// list of song candidates using a chat-completions model.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/sakif/vibelist/internal/apperror"
	"github.com/sakif/vibelist/internal/model"
)

// CandidateMultiplier oversizes the candidate list relative to the requested
// track count, so the catalog resolver has slack for misses and duplicates.
const CandidateMultiplier = 2

const systemPrompt = `You are a music expert AI that creates Spotify playlists based on vibes, moods, and emotions. Your job is to analyze the user's input and generate a curated list of real, existing songs that match the described vibe.

Rules:
1. Only suggest REAL songs that exist on Spotify. Do not make up songs.
2. Ensure variety - mix popular and lesser-known tracks. No two songs by the same artist in a row.
3. Match the emotional tone, energy level, and atmosphere of the described vibe.
4. Generate a creative, evocative playlist name that captures the vibe.
5. Return your response as valid JSON with this exact structure:
{
  "playlist_name": "string",
  "songs": [
    { "title": "string", "artist": "string" }
  ]
}
6. Do NOT include any markdown formatting, code blocks, or explanations. Return ONLY the JSON object.`

// Result is the model's answer after validation.
type Result struct {
	PlaylistName string        `json:"playlist_name"`
	Songs        []model.Track `json:"songs"`
}

// Request carries one generation call's inputs. ImageURLs must be fetchable
// by the model provider (public URLs or data URIs). ExcludeTracks lists songs
// a regeneration must not repeat.
type Request struct {
	Text          string
	ImageURLs     []string
	TrackCount    int
	ExcludeTracks []model.Track
}

type Generator struct {
	client *resty.Client
	model  string
	logger *slog.Logger
}

func New(baseURL, apiKey, modelName string, logger *slog.Logger) *Generator {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")
	return &Generator{client: client, model: modelName, logger: logger}
}

// chat-completions wire types, multimodal user content included.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate asks the model for TrackCount*CandidateMultiplier candidates and
// a playlist name. Provider failures and malformed model output both come
// back as generation errors so callers treat them uniformly.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	userPrompt := buildUserPrompt(req)

	var userContent any = userPrompt
	if len(req.ImageURLs) > 0 {
		parts := []contentPart{{Type: "text", Text: userPrompt}}
		for _, u := range req.ImageURLs {
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: u}})
		}
		userContent = parts
	}

	body := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature: 0.9,
		MaxTokens:   2000,
	}
	body.ResponseFormat.Type = "json_object"

	var out chatResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		g.logger.Error("model provider call failed", "error", err)
		return nil, apperror.Generation("could not reach the model provider")
	}
	if resp.IsError() {
		g.logger.Error("model provider returned error",
			"status", resp.StatusCode(), "body", resp.String())
		return nil, apperror.Generation(fmt.Sprintf("model provider returned status %d", resp.StatusCode()))
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return nil, apperror.Generation("model returned no content")
	}

	result, err := parseResult(out.Choices[0].Message.Content)
	if err != nil {
		g.logger.Error("model returned unparseable content", "error", err)
		return nil, apperror.Generation("model returned an invalid response, please try again")
	}
	return result, nil
}

func buildUserPrompt(req Request) string {
	candidateCount := req.TrackCount * CandidateMultiplier
	hasText := strings.TrimSpace(req.Text) != ""
	hasImages := len(req.ImageURLs) > 0

	var prompt string
	switch {
	case hasText && hasImages:
		prompt = fmt.Sprintf("Analyze these images along with this vibe description and generate %d song candidates for a playlist that matches. Description: %q\n\nThe final playlist should have %d songs, but give me %d candidates so I can filter.",
			candidateCount, req.Text, req.TrackCount, candidateCount)
	case hasImages:
		prompt = fmt.Sprintf("Analyze these images and generate %d song candidates for a playlist that matches their vibe, mood, colors, and atmosphere. The final playlist should have %d songs, but give me %d candidates so I can filter.",
			candidateCount, req.TrackCount, candidateCount)
	default:
		prompt = fmt.Sprintf("Generate %d song candidates for a playlist based on this vibe:\n\n%q\n\nThe final playlist should have %d songs, but give me %d candidates so I can filter.",
			candidateCount, req.Text, req.TrackCount, candidateCount)
	}

	if len(req.ExcludeTracks) > 0 {
		entries := make([]string, 0, len(req.ExcludeTracks))
		for _, t := range req.ExcludeTracks {
			entries = append(entries, fmt.Sprintf("%q by %s", sanitize(t.Title), sanitize(t.Artist)))
		}
		prompt += fmt.Sprintf("\n\nIMPORTANT: Do NOT include any of these songs: %s. Generate completely different songs.",
			strings.Join(entries, ", "))
	}
	return prompt
}

var controlChars = regexp.MustCompile(`[\x00-\x1f]`)

// sanitize strips control characters from exclusion entries so a stored
// title cannot inject extra prompt lines.
func sanitize(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, " "))
}

var (
	fenceOpen  = regexp.MustCompile("(?i)^```(?:json)?\\s*\n?")
	fenceClose = regexp.MustCompile("(?i)\n?```\\s*$")
)

// parseResult strips markdown fences the model sometimes adds despite
// instructions, then decodes and validates the JSON payload.
func parseResult(content string) (*Result, error) {
	cleaned := fenceOpen.ReplaceAllString(strings.TrimSpace(content), "")
	cleaned = strings.TrimSpace(fenceClose.ReplaceAllString(cleaned, ""))

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("decoding model output: %w", err)
	}
	if strings.TrimSpace(result.PlaylistName) == "" {
		return nil, fmt.Errorf("model output missing playlist name")
	}
	if len(result.Songs) == 0 {
		return nil, fmt.Errorf("model output contains no songs")
	}
	for i, s := range result.Songs {
		if strings.TrimSpace(s.Title) == "" {
			return nil, fmt.Errorf("model output song %d missing title", i)
		}
	}
	return &result, nil
}
