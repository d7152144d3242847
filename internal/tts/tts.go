// Package tts synthesizes narration to MP3 with Google Cloud Text-to-Speech.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/google"

	appLog "weeklybrief/internal/log"
)

const (
	DefaultEndpoint = "https://texttospeech.googleapis.com/v1"

	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

	// maxInputBytes is the per-request input limit of the API.
	maxInputBytes = 5000
	sampleRate    = 24000
)

// Voice selects what the narration sounds like.
type Voice struct {
	LanguageCode string
	Name         string
	SpeakingRate float64
}

// Client calls text:synthesize.
type Client struct {
	http     *http.Client
	endpoint string
	apiKey   string
	voice    Voice
}

// Options configure a Client. With an APIKey requests carry ?key=;
// otherwise HTTPClient must already be authorized (see NewDefaultClient).
type Options struct {
	APIKey     string
	Endpoint   string
	Voice      Voice
	HTTPClient *http.Client
}

func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.Voice.SpeakingRate <= 0 {
		opts.Voice.SpeakingRate = 0.9
	}
	return &Client{
		http:     opts.HTTPClient,
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		apiKey:   opts.APIKey,
		voice:    opts.Voice,
	}
}

// NewDefaultClient authorizes with Application Default Credentials
// (GOOGLE_APPLICATION_CREDENTIALS, gcloud login or the metadata server).
func NewDefaultClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" && opts.HTTPClient == nil {
		hc, err := google.DefaultClient(ctx, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("text-to-speech credentials: %w", err)
		}
		opts.HTTPClient = hc
	}
	return NewClient(opts), nil
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name,omitempty"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding   string  `json:"audioEncoding"`
		SpeakingRate    float64 `json:"speakingRate"`
		SampleRateHertz int     `json:"sampleRateHertz"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Synthesize returns MP3 audio for text. Text over the API input limit is
// split on sentence boundaries and the MP3 segments are concatenated.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("nothing to synthesize")
	}

	chunks := splitText(text, maxInputBytes)
	var audio bytes.Buffer
	for i, chunk := range chunks {
		b, err := c.synthesizeChunk(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("synthesize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		audio.Write(b)
	}
	appLog.Info("speech synthesized", "voice", c.voice.Name, "chunks", len(chunks), "bytes", audio.Len())
	return audio.Bytes(), nil
}

func (c *Client) synthesizeChunk(ctx context.Context, text string) ([]byte, error) {
	var req synthesizeRequest
	req.Input.Text = text
	req.Voice.LanguageCode = c.voice.LanguageCode
	req.Voice.Name = c.voice.Name
	req.AudioConfig.AudioEncoding = "MP3"
	req.AudioConfig.SpeakingRate = c.voice.SpeakingRate
	req.AudioConfig.SampleRateHertz = sampleRate

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	endpoint := c.endpoint + "/text:synthesize"
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if c.apiKey != "" {
			return nil, errors.New(strings.ReplaceAll(err.Error(), url.QueryEscape(c.apiKey), "REDACTED"))
		}
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("text-to-speech API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("text-to-speech API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out synthesizeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("text-to-speech returned no audio")
	}
	return audio, nil
}

// splitText cuts text into pieces of at most limit bytes, preferring
// sentence ends, then spaces. It never splits a UTF-8 sequence.
func splitText(text string, limit int) []string {
	var out []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], ". ")
		if cut > 0 {
			cut++ // keep the period
		} else if cut = strings.LastIndex(text[:limit], " "); cut <= 0 {
			cut = limit
			for cut > 0 && !isRuneStart(text[cut]) {
				cut--
			}
		}
		out = append(out, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
