// Package rekognition recognises text with AWS Rekognition DetectText.
package rekognition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/sakif/wastenot/internal/ocr"
)

// EngineName identifies results produced by this engine.
const EngineName = "rekognition"

// MaxImageBytes is the largest image DetectText accepts inline.
const MaxImageBytes = 5 * 1024 * 1024

// DetectTextAPI is the Rekognition call the engine makes.
type DetectTextAPI interface {
	DetectText(ctx context.Context, in *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// Engine implements ocr.Engine.
type Engine struct {
	client DetectTextAPI
	now    func() time.Time
}

// New builds a client from the default AWS credential chain.
func New(ctx context.Context, region string) (*Engine, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return NewWithClient(rekognition.NewFromConfig(cfg)), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client DetectTextAPI) *Engine {
	return &Engine{client: client, now: time.Now}
}

// Recognize returns the detected LINE blocks joined top to bottom.
// WORD blocks repeat the same text and are skipped.
func (e *Engine) Recognize(ctx context.Context, img []byte) (*ocr.Result, error) {
	if len(img) == 0 {
		return nil, ocr.ErrEmptyImage
	}
	if len(img) > MaxImageBytes {
		return nil, fmt.Errorf("rekognition: image is %d bytes, limit is %d", len(img), MaxImageBytes)
	}
	start := e.now()

	out, err := e.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: img},
	})
	if err != nil {
		return nil, fmt.Errorf("rekognition detect text: %w", err)
	}

	var lines []string
	for _, d := range out.TextDetections {
		if d.Type != types.TextTypesLine {
			continue
		}
		if text := strings.TrimSpace(aws.ToString(d.DetectedText)); text != "" {
			lines = append(lines, text)
		}
	}

	return &ocr.Result{
		Text:     strings.Join(lines, "\n"),
		Engine:   EngineName,
		Duration: e.now().Sub(start),
	}, nil
}
