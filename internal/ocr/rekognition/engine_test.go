package rekognition

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/wastenot/internal/ocr"
)

type fakeRekognition struct {
	out   *rekognition.DetectTextOutput
	err   error
	calls int
	got   []byte
}

func (f *fakeRekognition) DetectText(ctx context.Context, in *rekognition.DetectTextInput, _ ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error) {
	f.calls++
	f.got = in.Image.Bytes
	return f.out, f.err
}

func TestRecognize_JoinsLines(t *testing.T) {
	fake := &fakeRekognition{out: &rekognition.DetectTextOutput{
		TextDetections: []types.TextDetection{
			{Type: types.TextTypesLine, DetectedText: aws.String("Greek Yogurt")},
			{Type: types.TextTypesWord, DetectedText: aws.String("Greek")},
			{Type: types.TextTypesLine, DetectedText: aws.String("  ")},
			{Type: types.TextTypesLine, DetectedText: aws.String("BEST BEFORE 18/10")},
		},
	}}
	e := NewWithClient(fake)

	res, err := e.Recognize(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "Greek Yogurt\nBEST BEFORE 18/10", res.Text)
	assert.Equal(t, "Greek Yogurt", res.SuggestedName())
	assert.Equal(t, EngineName, res.Engine)
	assert.Equal(t, []byte("jpeg"), fake.got)
}

func TestRecognize_Errors(t *testing.T) {
	fake := &fakeRekognition{err: errors.New("throttled")}
	e := NewWithClient(fake)

	_, err := e.Recognize(context.Background(), nil)
	assert.ErrorIs(t, err, ocr.ErrEmptyImage)

	_, err = e.Recognize(context.Background(), make([]byte, MaxImageBytes+1))
	assert.Error(t, err)
	assert.Zero(t, fake.calls, "oversized images never reach the API")

	_, err = e.Recognize(context.Background(), []byte("png"))
	assert.ErrorContains(t, err, "throttled")
}
