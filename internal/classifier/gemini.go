package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/antonholmquist/jason"

	"github.com/safecity/safecity-go/internal/conf"
	"github.com/safecity/safecity-go/internal/errors"
	"github.com/safecity/safecity-go/internal/httpclient"
	"github.com/safecity/safecity-go/internal/threat"
)

const textPromptTemplate = `You are the "Safe City" AI analysis system.
Analyze the following text for violence or weapon usage in a city environment.
Classify into one of three levels:
- SAFE: Normal conversation, no threats.
- VIOLENCE: Verbal abuse, physical threats, fighting words.
- WEAPON: Explicit mention of using guns, knives, bombs, or armed assault.

Text: %q

Return JSON.`

const framePrompt = "You are the Safe City visual surveillance AI. Analyze this image frame. " +
	"Is there visible violence (fighting) or a weapon (gun, knife)? " +
	"Return JSON with 'level' (SAFE, VIOLENCE, WEAPON) and 'reason'."

// GeminiProvider classifies text and frames through the Google generative
// language REST API. The response is constrained to a JSON object with a
// three-valued level enum plus a free-text reason.
type GeminiProvider struct {
	client   *httpclient.Client
	endpoint string
	model    string
	apiKey   string
}

// NewGeminiProvider builds a provider from settings. The API key must be
// configured; without it every call fails (and the Client facade turns that
// into the fallback level).
func NewGeminiProvider(settings *conf.Settings, client *httpclient.Client) *GeminiProvider {
	return &GeminiProvider{
		client:   client,
		endpoint: settings.Classifier.Endpoint,
		model:    settings.Classifier.Model,
		apiKey:   settings.Classifier.APIKey,
	}
}

// request/response shapes for the generateContent call. Only the fields we
// send or read are modeled; the rest of the provider response is navigated
// leniently with jason.
type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiRequest struct {
	Contents []struct {
		Parts []geminiPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig map[string]any `json:"generationConfig"`
}

func newGeminiRequest(parts ...geminiPart) geminiRequest {
	req := geminiRequest{
		GenerationConfig: map[string]any{
			"responseMimeType": "application/json",
			"responseSchema": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"level": map[string]any{
						"type": "STRING",
						"enum": []string{
							string(threat.LevelSafe),
							string(threat.LevelViolence),
							string(threat.LevelWeapon),
						},
					},
					"reason": map[string]any{"type": "STRING"},
				},
				"required": []string{"level", "reason"},
			},
		},
	}
	req.Contents = make([]struct {
		Parts []geminiPart `json:"parts"`
	}, 1)
	req.Contents[0].Parts = parts
	return req
}

// ClassifyText implements Provider.
func (p *GeminiProvider) ClassifyText(ctx context.Context, text string) (Result, error) {
	prompt := fmt.Sprintf(textPromptTemplate, text)
	return p.generate(ctx, newGeminiRequest(geminiPart{Text: prompt}))
}

// ClassifyFrame implements Provider.
func (p *GeminiProvider) ClassifyFrame(ctx context.Context, frame []byte) (Result, error) {
	if len(frame) == 0 {
		return Result{}, errors.Newf("empty frame").
			Component("classifier").
			Category(errors.CategoryValidation).
			Build()
	}
	req := newGeminiRequest(
		geminiPart{InlineData: &geminiInlineData{
			MimeType: "image/jpeg",
			Data:     base64.StdEncoding.EncodeToString(frame),
		}},
		geminiPart{Text: framePrompt},
	)
	return p.generate(ctx, req)
}

func (p *GeminiProvider) generate(ctx context.Context, body geminiRequest) (Result, error) {
	if p.apiKey == "" {
		return Result{}, errors.Newf("classifier API key not configured").
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Build()
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.endpoint, p.model)
	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return Result{}, errors.New(fmt.Errorf("calling classifier: %w", err)).
			Component("classifier").
			Category(errors.CategoryNetwork).
			Context("model", p.model).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, errors.Newf("classifier returned status %d", resp.StatusCode).
			Component("classifier").
			Category(errors.CategoryHTTP).
			Context("model", p.model).
			Context("status", resp.StatusCode).
			Build()
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reading response body: %w", err)
	}

	return parseGeminiResponse(raw)
}

// parseGeminiResponse navigates candidates[0].content.parts[0].text and
// decodes the embedded JSON object.
func parseGeminiResponse(raw []byte) (Result, error) {
	root, err := jason.NewObjectFromBytes(raw)
	if err != nil {
		return Result{}, malformedResponse(fmt.Errorf("parsing response: %w", err))
	}

	candidates, err := root.GetObjectArray("candidates")
	if err != nil || len(candidates) == 0 {
		return Result{}, malformedResponse(fmt.Errorf("response has no candidates"))
	}

	parts, err := candidates[0].GetObjectArray("content", "parts")
	if err != nil || len(parts) == 0 {
		return Result{}, malformedResponse(fmt.Errorf("candidate has no content parts"))
	}

	text, err := parts[0].GetString("text")
	if err != nil {
		return Result{}, malformedResponse(fmt.Errorf("content part has no text"))
	}

	var decoded struct {
		Level  string `json:"level"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return Result{}, malformedResponse(fmt.Errorf("parsing classification JSON: %w", err))
	}

	level, err := threat.ParseLevel(decoded.Level)
	if err != nil {
		return Result{}, malformedResponse(err)
	}

	return Result{Level: level, Reason: decoded.Reason}, nil
}

func malformedResponse(err error) error {
	return errors.New(err).
		Component("classifier").
		Category(errors.CategoryClassifier).
		Build()
}
