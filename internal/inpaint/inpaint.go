// Package inpaint drives a generative image-editing backend to remove the
// masked text regions. The request carries the original image as a raw
// reference and the mask as a mask-mode reference with a small dilation, and
// asks for several independent samples in one call.
package inpaint

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BilalWohlig/labelwipe/internal/apperr"
)

// DefaultPrompt instructs removal without regenerating replacement text.
const DefaultPrompt = "Remove the text in the masked regions completely. " +
	"Fill with the surrounding packaging background only; do not generate any new text, digits or symbols."

// Config tunes the driver.
type Config struct {
	Endpoint     string
	APIKey       string
	SampleCount  int
	MaskDilation float64
	Timeout      time.Duration
}

// DefaultConfig returns the driver defaults. Inpainting is materially slower
// than detection calls, hence the long timeout.
func DefaultConfig() Config {
	return Config{
		SampleCount:  4,
		MaskDilation: 0.01,
		Timeout:      120 * time.Second,
	}
}

// Driver submits inpainting requests over HTTP.
type Driver struct {
	cfg    Config
	client *http.Client
}

// NewDriver creates a driver for the configured backend endpoint.
func NewDriver(cfg Config) *Driver {
	def := DefaultConfig()
	if cfg.SampleCount <= 0 {
		cfg.SampleCount = def.SampleCount
	}
	if cfg.MaskDilation <= 0 {
		cfg.MaskDilation = def.MaskDilation
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Driver{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type referenceImage struct {
	ReferenceType string     `json:"referenceType"`
	ReferenceID   int        `json:"referenceId"`
	Image         imageBlob  `json:"referenceImage"`
	MaskConfig    *maskextra `json:"maskImageConfig,omitempty"`
}

type imageBlob struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
}

type maskextra struct {
	MaskMode string  `json:"maskMode"`
	Dilation float64 `json:"dilation"`
}

type inpaintInstance struct {
	Prompt          string           `json:"prompt"`
	ReferenceImages []referenceImage `json:"referenceImages"`
}

type inpaintParameters struct {
	SampleCount int    `json:"sampleCount"`
	EditMode    string `json:"editMode"`
}

type inpaintRequest struct {
	Instances  []inpaintInstance `json:"instances"`
	Parameters inpaintParameters `json:"parameters"`
}

// Inpaint submits the image, mask and prompt and returns the decoded sample
// images. It fails when the backend answers successfully but yields zero
// usable samples.
func (d *Driver) Inpaint(ctx context.Context, imageData, maskData []byte, prompt string) ([][]byte, error) {
	const op = "inpaint.Inpaint"

	if d.cfg.Endpoint == "" {
		return nil, apperr.New(apperr.Internal, op, "inpainting endpoint not configured")
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}

	req := inpaintRequest{
		Instances: []inpaintInstance{{
			Prompt: prompt,
			ReferenceImages: []referenceImage{
				{
					ReferenceType: "REFERENCE_TYPE_RAW",
					ReferenceID:   1,
					Image:         imageBlob{BytesBase64Encoded: base64.StdEncoding.EncodeToString(imageData)},
				},
				{
					ReferenceType: "REFERENCE_TYPE_MASK",
					ReferenceID:   2,
					Image:         imageBlob{BytesBase64Encoded: base64.StdEncoding.EncodeToString(maskData)},
					MaskConfig:    &maskextra{MaskMode: "MASK_MODE_USER_PROVIDED", Dilation: d.cfg.MaskDilation},
				},
			},
		}},
		Parameters: inpaintParameters{
			SampleCount: d.cfg.SampleCount,
			EditMode:    "EDIT_MODE_INPAINT_REMOVAL",
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, "failed to encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unavailable, op, "inpainting call failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unavailable, op, "failed to read inpainting response", err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, apperr.New(apperr.Forbidden, op, "inpainting backend rejected the call")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, apperr.New(apperr.Unavailable, op,
			fmt.Sprintf("inpainting backend unavailable (status %d)", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, apperr.New(apperr.Internal, op,
			fmt.Sprintf("inpainting backend returned status %d: %s", resp.StatusCode, truncate(respBody, 200)))
	}

	samples, err := decodeSamples(respBody)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, "failed to decode inpainting response", err)
	}
	if len(samples) == 0 {
		return nil, apperr.New(apperr.Unavailable, op, "inpainting produced no usable samples")
	}
	return samples, nil
}

// sampleImageKeys lists the key names under which backends have been seen to
// return image bytes. Samples carrying none of them are skipped.
var sampleImageKeys = []string{"bytesBase64Encoded", "imageBytes", "image", "b64Json"}

// decodeSamples parses the prediction list defensively: each entry may carry
// its image bytes under any of several key names.
func decodeSamples(body []byte) ([][]byte, error) {
	var envelope struct {
		Predictions []map[string]json.RawMessage `json:"predictions"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}

	var samples [][]byte
	for _, pred := range envelope.Predictions {
		data, ok := extractImageBytes(pred)
		if !ok {
			continue
		}
		samples = append(samples, data)
	}
	return samples, nil
}

func extractImageBytes(pred map[string]json.RawMessage) ([]byte, bool) {
	for _, key := range sampleImageKeys {
		raw, ok := pred[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			// Some backends nest the blob one level down.
			var nested map[string]string
			if err := json.Unmarshal(raw, &nested); err == nil {
				for _, v := range nested {
					if v != "" {
						s = v
						break
					}
				}
			}
		}
		if s == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil || len(data) == 0 {
			continue
		}
		return data, true
	}
	return nil, false
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
