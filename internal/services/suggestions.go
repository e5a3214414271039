package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DefaultSuggestionPrompt is used when the caller sends no prompt.
const DefaultSuggestionPrompt = "Create a list of three open-ended and engaging questions formatted as a single string. " +
	"Each question should be separated by '||'. These questions are for an anonymous social messaging platform, " +
	"like Qooh.me, and should be suitable for a diverse audience. Avoid personal or sensitive topics, focusing " +
	"instead on universal themes that encourage playful and lighthearted interaction. The questions should be " +
	"sarcastic, witty, or humorously thought-provoking while maintaining a friendly and positive tone. For example, " +
	"your output should be structured like this: 'If laziness were an Olympic sport, what medal would you win?||" +
	"What's a life skill you thought you'd never need but totally do?||If your pet could talk, what embarrassing " +
	"story would it tell about you?'. Ensure the questions are funny, clever, and encourage entertaining and " +
	"imaginative responses."

var (
	ErrSuggestionsDisabled = errors.New("suggestions: no api key configured")
	ErrNoSupportedModel    = errors.New("suggestions: no supported gemini model for this key")
)

// preferredModels is searched in order before any looser match.
var preferredModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5",
	"gemini-2.0-flash",
	"gemini-2.0",
	"gemini-1.5-flash",
	"gemini-1.5",
}

// Suggester turns a prompt into suggestion text.
type Suggester interface {
	Suggest(ctx context.Context, prompt string) (string, error)
}

// GeminiSuggester relays prompts to the Gemini API. The model is chosen per
// request from whatever the key can list.
type GeminiSuggester struct {
	client *genai.Client
	log    *logrus.Logger
}

// NewGeminiSuggester returns a suggester that always fails with
// ErrSuggestionsDisabled when apiKey is empty.
func NewGeminiSuggester(ctx context.Context, apiKey string, log *logrus.Logger) (*GeminiSuggester, error) {
	s := &GeminiSuggester{log: log}
	if apiKey == "" {
		log.Warn("⚠️  GOOGLE_API_KEY is not set; message suggestions are disabled")
		return s, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	s.client = client
	return s, nil
}

func (s *GeminiSuggester) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *GeminiSuggester) Suggest(ctx context.Context, prompt string) (string, error) {
	if s.client == nil {
		return "", ErrSuggestionsDisabled
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultSuggestionPrompt
	}

	available, err := s.listModels(ctx)
	if err != nil {
		// Listing is best-effort; an empty list ends in ErrNoSupportedModel.
		s.log.WithError(err).Warn("Failed to list Gemini models")
	}
	name := pickModel(available)
	if name == "" {
		return "", ErrNoSupportedModel
	}

	resp, err := s.client.GenerativeModel(name).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", name, err)
	}
	return responseText(resp), nil
}

func (s *GeminiSuggester) listModels(ctx context.Context) ([]string, error) {
	var names []string
	it := s.client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return names, err
		}
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}

// pickModel returns the first preferred model present, else any flash model,
// else any gemini model, else "".
func pickModel(available []string) string {
	set := make(map[string]struct{}, len(available))
	for _, m := range available {
		set[m] = struct{}{}
	}
	for _, m := range preferredModels {
		if _, ok := set[m]; ok {
			return m
		}
	}
	for _, m := range available {
		if strings.Contains(m, "flash") {
			return m
		}
	}
	for _, m := range available {
		if strings.HasPrefix(m, "gemini-") {
			return m
		}
	}
	return ""
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		// First candidate only
		break
	}
	return b.String()
}
