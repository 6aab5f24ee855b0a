// Package gemini adapts the Gemini generateContent API into the
// SegmentAnalyzer port. One stateless call per clip; the orchestrator owns
// retries and failure bookkeeping.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/handarchive/video-analysis-service/internal/domain/entity"
	"github.com/handarchive/video-analysis-service/internal/domain/port"
)

type Analyzer struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	logger   *zap.Logger
}

type AnalyzerConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

func NewAnalyzer(cfg AnalyzerConfig, logger *zap.Logger) *Analyzer {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Minute
	}
	return &Analyzer{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// ---- wire types ----

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	FileData *fileData `json:"fileData,omitempty"`
	Text     string    `json:"text,omitempty"`
}

type fileData struct {
	FileURI  string `json:"fileUri"`
	MimeType string `json:"mimeType"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	TopK             int     `json:"topK"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// wireHand tolerates the model's loose typing: hand numbers arrive as numbers
// or strings, cards as null or arrays.
type wireHand struct {
	HandNumber     flexInt             `json:"handNumber"`
	Stakes         string              `json:"stakes"`
	Pot            float64             `json:"pot"`
	Board          *entity.Board       `json:"board"`
	Players        []entity.HandPlayer `json:"players"`
	Actions        []entity.HandAction `json:"actions"`
	Winners        []entity.HandWinner `json:"winners"`
	TimestampStart string              `json:"timestamp_start"`
	TimestampEnd   string              `json:"timestamp_end"`
}

type wireResult struct {
	Hands []wireHand `json:"hands"`
}

// flexInt unmarshals 3, "3" or "Hand 3" to 3.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("hand number is neither number nor string: %s", data)
	}
	digits := strings.TrimFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil // unnumbered hand, orchestrator renumbers anyway
	}
	*f = flexInt(n)
	return nil
}

// AnalyzeSegment sends one clip to the model and parses the structured
// response. Transport and parse failures come back as errors; the caller
// records them as per-segment data rather than aborting the job.
func (a *Analyzer) AnalyzeSegment(ctx context.Context, clipURI string, segment entity.TimeSegment, platform entity.Platform) (*port.SegmentAnalysis, error) {
	reqBody := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{FileData: &fileData{FileURI: clipURI, MimeType: "video/mp4"}},
				{Text: promptFor(platform)},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:      0.1,
			TopP:             0.95,
			TopK:             40,
			MaxOutputTokens:  65535,
			ResponseMimeType: "application/json",
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", a.endpoint, a.model, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call inference api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference api returned %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}
	if gr.Error != nil {
		return nil, fmt.Errorf("inference api error %d: %s", gr.Error.Code, gr.Error.Message)
	}

	text := ""
	for _, cand := range gr.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				text = p.Text
				break
			}
		}
		if text != "" {
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("empty model response for clip %s", clipURI)
	}

	hands, err := a.parseHands(text)
	if err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}

	a.logger.Debug("segment analyzed",
		zap.String("clip_uri", clipURI),
		zap.String("range", segment.Range()),
		zap.Int("hands", len(hands)),
	)

	return &port.SegmentAnalysis{Hands: hands, RawResponse: text}, nil
}

// parseHands does a best-effort structured parse: markdown fences are
// stripped, and when the raw text is not valid JSON the outermost object is
// salvaged before giving up. A missing hands array yields an empty result
// rather than an error; structurally invalid hands are dropped.
func (a *Analyzer) parseHands(text string) ([]entity.Hand, error) {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var parsed wireResult
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		first := strings.Index(clean, "{")
		last := strings.LastIndex(clean, "}")
		if first == -1 || last <= first {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		if err2 := json.Unmarshal([]byte(clean[first:last+1]), &parsed); err2 != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		a.logger.Warn("model output needed json salvage")
	}

	if parsed.Hands == nil {
		a.logger.Warn("model output has no hands array")
		return []entity.Hand{}, nil
	}

	hands := make([]entity.Hand, 0, len(parsed.Hands))
	for i, wh := range parsed.Hands {
		if wh.Players == nil {
			a.logger.Warn("dropping hand without players", zap.Int("index", i))
			continue
		}
		if wh.Board == nil {
			a.logger.Warn("dropping hand without board", zap.Int("index", i))
			continue
		}
		hands = append(hands, entity.Hand{
			HandNumber:     int(wh.HandNumber),
			Stakes:         wh.Stakes,
			Pot:            wh.Pot,
			Board:          *wh.Board,
			Players:        wh.Players,
			Actions:        wh.Actions,
			Winners:        wh.Winners,
			TimestampStart: wh.TimestampStart,
			TimestampEnd:   wh.TimestampEnd,
		})
	}
	return hands, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
