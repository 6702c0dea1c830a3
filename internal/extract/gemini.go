package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/agencyhq/warroom/modules/structure/domain/action"
)

const buildPrompt = `You are the parser for an agency-structure provisioning system.
Convert natural language instructions for building an insurance agency structure
into a JSON object the system can execute.

Supported actions:
1. INITIALIZE: {"agencies": [{"name": "Name", "emoji": "EMOJI", "is_main": boolean}]} - create agency roles/categories.
2. MAP: {"downline": "A", "upline": "B"} - hierarchy mapping.
3. WIPE: {} - complete channel/category deletion.
4. CREATE_MAIN_STRUCTURE: {} - build the base server skeleton.
5. DEPLOY_ONBOARDING: {} - deploy the role portal.

Rules:
- Return ONLY a JSON object with an "actions" array.
- Pick a single relevant emoji for each agency.
- If the user mentions a "main" or "top" agency, set is_main: true.
- ALWAYS include CREATE_MAIN_STRUCTURE before INITIALIZE unless the user explicitly says not to.
- If the user says "wipe" or "start fresh", include the WIPE action FIRST.
- Parse hierarchy relationships like "X under Y" or "X -> Y" or "X reports to Y" into MAP actions.

User instruction: %q`

// GeminiExtractor implements Extractor over the Gemini API.
type GeminiExtractor struct {
	client *genai.Client
	model  string
	log    *logrus.Logger
}

func NewGeminiExtractor(ctx context.Context, apiKey, model string, log *logrus.Logger) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("extract: Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("extract: create Gemini client: %w", err)
	}
	return &GeminiExtractor{client: client, model: model, log: log}, nil
}

func (g *GeminiExtractor) generate(ctx context.Context, prompt string, jsonResponse bool) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	var config *genai.GenerateContentConfig
	if jsonResponse {
		config = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", err
	}
	return result.Text(), nil
}

func (g *GeminiExtractor) ParseBuildCommand(ctx context.Context, text string) ([]action.Action, error) {
	raw, err := g.generate(ctx, fmt.Sprintf(buildPrompt, text), true)
	if err != nil {
		g.log.WithError(err).Warn("extract: build command parse failed")
		return nil, ErrUnparsable
	}
	return DecodeActionList([]byte(StripFences(raw)))
}

func (g *GeminiExtractor) MainAgencyName(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(
		"Extract the name of the main insurance agency from this text. Return JUST the name as a plain string.\n\nUser input: %q", text)
	raw, err := g.generate(ctx, prompt, false)
	if err != nil {
		g.log.WithError(err).Warn("extract: main agency name failed")
		return "", ErrUnparsable
	}
	name := strings.TrimSpace(StripFences(raw))
	if name == "" {
		return "", ErrUnparsable
	}
	return name, nil
}

func (g *GeminiExtractor) SubAgencyNames(ctx context.Context, text string) ([]string, error) {
	prompt := fmt.Sprintf(
		"Extract a list of sub-agencies from this text. Return as a JSON array of strings.\n\nUser input: %q", text)
	raw, err := g.generate(ctx, prompt, true)
	if err != nil {
		g.log.WithError(err).Warn("extract: sub-agency names failed")
		return nil, ErrUnparsable
	}
	var names []string
	if err := json.Unmarshal([]byte(StripFences(raw)), &names); err != nil {
		// The model occasionally returns a bare string for a single agency.
		single := strings.TrimSpace(StripFences(raw))
		if single == "" {
			return nil, ErrUnparsable
		}
		return []string{strings.Trim(single, `"`)}, nil
	}
	return names, nil
}

func (g *GeminiExtractor) HierarchyPairs(ctx context.Context, text string) ([]HierarchyPair, error) {
	prompt := fmt.Sprintf(
		"Analyze the hierarchy described. Return a JSON array of objects like {\"downline\": \"A\", \"upline\": \"B\"}.\n\nUser input: %q", text)
	raw, err := g.generate(ctx, prompt, true)
	if err != nil {
		g.log.WithError(err).Warn("extract: hierarchy pairs failed")
		return nil, ErrUnparsable
	}
	var pairs []HierarchyPair
	if err := json.Unmarshal([]byte(StripFences(raw)), &pairs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	return pairs, nil
}

var _ Extractor = (*GeminiExtractor)(nil)
