// Package synth builds synthesis requests and interprets the server's replies.
package synth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/harunnryd/kokoroctl/pkg/errorsx"
)

const (
	DefaultVoice    = "af_heart"
	DefaultSpeed    = 1.0
	DefaultLanguage = "en-us"
)

// Params are the caller-supplied synthesis parameters. File takes precedence
// over Text when both are set.
type Params struct {
	Text       string
	File       string
	Voice      string
	Speed      float64
	Language   string
	Filename   string
	UploadToS3 bool
}

// Request is the message sent to the server. An empty Filename is left off
// the wire so the server generates one.
type Request struct {
	Text       string  `json:"text"`
	Voice      string  `json:"voice"`
	Speed      float64 `json:"speed"`
	Language   string  `json:"lang"`
	UploadToS3 bool    `json:"upload_to_s3"`
	Filename   string  `json:"filename,omitempty"`
}

// TextReader supplies request text from a file path.
type TextReader interface {
	ReadText(path string) (string, error)
}

// Build validates p and assembles a Request. It never touches the network.
func Build(p Params, r TextReader) (Request, error) {
	if p.Text == "" && p.File == "" {
		return Request{}, errorsx.New(errorsx.ReasonMissingInput, "either text or file is required")
	}

	text := p.Text
	if p.File != "" {
		if r == nil {
			r = FileReader{}
		}
		var err error
		text, err = r.ReadText(p.File)
		if err != nil {
			return Request{}, errorsx.Wrap(fmt.Errorf("read %s: %w", p.File, err), errorsx.ReasonInputRead)
		}
	}
	if text == "" {
		return Request{}, errorsx.New(errorsx.ReasonMissingInput, "text is empty")
	}

	// Zero speed means unset.
	speed := p.Speed
	if speed == 0 {
		speed = DefaultSpeed
	}

	req := Request{
		Text:       text,
		Voice:      orDefault(p.Voice, DefaultVoice),
		Speed:      speed,
		Language:   orDefault(p.Language, DefaultLanguage),
		UploadToS3: p.UploadToS3,
		Filename:   p.Filename,
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate checks the request invariants.
func (r Request) Validate() error {
	if r.Text == "" {
		return errorsx.New(errorsx.ReasonMissingInput, "text is empty")
	}
	if strings.TrimSpace(r.Voice) == "" {
		return errorsx.New(errorsx.ReasonInvalidRequest, "voice is required")
	}
	if !(r.Speed > 0) || math.IsInf(r.Speed, 1) {
		return errorsx.New(errorsx.ReasonInvalidRequest, "speed must be > 0, got %v", r.Speed)
	}
	return nil
}

// Encode serializes the request as compact UTF-8 JSON with no trailing newline.
func Encode(r Request) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("encode request: %w", err), errorsx.ReasonInvalidRequest)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
