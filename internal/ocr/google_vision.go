package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/BilalWohlig/labelwipe/internal/apperr"
	"github.com/BilalWohlig/labelwipe/internal/utils"
)

// MaxImageSizeBytes is the inline request limit for the Vision API.
const MaxImageSizeBytes = 20 * 1024 * 1024

// GoogleVisionClient implements Client using the Cloud Vision API.
type GoogleVisionClient struct {
	client *vision.ImageAnnotatorClient
}

// NewGoogleVisionClient creates a Vision client using GOOGLE_CREDENTIALS,
// GOOGLE_APPLICATION_CREDENTIALS, or application-default credentials,
// in that order.
func NewGoogleVisionClient(ctx context.Context) (*GoogleVisionClient, error) {
	const op = "ocr.NewGoogleVisionClient"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Unavailable, op, "failed to create Vision client", err)
	}
	return &GoogleVisionClient{client: client}, nil
}

// DetectText runs text detection and converts the response into the token set.
func (g *GoogleVisionClient) DetectText(ctx context.Context, imageData []byte) (*Result, error) {
	const op = "ocr.DetectText"

	if len(imageData) == 0 {
		return nil, apperr.New(apperr.Validation, op, "empty image data")
	}
	if len(imageData) > MaxImageSizeBytes {
		return nil, apperr.New(apperr.Validation, op,
			fmt.Sprintf("image exceeds %d byte inline limit", MaxImageSizeBytes))
	}

	resp, err := g.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image:    &visionpb.Image{Content: imageData},
				Features: []*visionpb.Feature{{Type: visionpb.Feature_TEXT_DETECTION}},
			},
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Unavailable, op, "Vision API call failed", err)
	}
	if len(resp.GetResponses()) == 0 {
		return nil, apperr.Wrap(apperr.Unavailable, op, "empty Vision response", errors.New("no responses"))
	}
	annotated := resp.GetResponses()[0]
	if apiErr := annotated.GetError(); apiErr != nil {
		return nil, apperr.Wrap(apperr.Unavailable, op, "Vision API error", errors.New(apiErr.GetMessage()))
	}

	return ResultFromAnnotations(annotated.GetTextAnnotations()), nil
}

// ResultFromAnnotations converts Vision text annotations into a Result.
// The first annotation is the whole-image text; the rest become tokens
// with 1-based IDs in response order.
func ResultFromAnnotations(annotations []*visionpb.EntityAnnotation) *Result {
	res := &Result{}
	if len(annotations) == 0 {
		return res
	}
	res.FullText = annotations[0].GetDescription()

	res.Tokens = make([]Token, 0, len(annotations)-1)
	for i, ann := range annotations[1:] {
		tok := Token{
			ID:      i + 1,
			Text:    ann.GetDescription(),
			Polygon: polygonFromVertices(ann.GetBoundingPoly().GetVertices()),
		}
		if c := ann.GetConfidence(); c > 0 {
			conf := float64(c)
			tok.Confidence = &conf
		}
		res.Tokens = append(res.Tokens, tok)
	}
	return res
}

// polygonFromVertices maps Vision vertices to a 4-point clockwise polygon.
// Degenerate polys are padded by repeating the last vertex so downstream
// geometry always sees four points.
func polygonFromVertices(vertices []*visionpb.Vertex) []utils.Point {
	pts := make([]utils.Point, 0, 4)
	for _, v := range vertices {
		pts = append(pts, utils.Point{X: float64(v.GetX()), Y: float64(v.GetY())})
	}
	for len(pts) > 0 && len(pts) < 4 {
		pts = append(pts, pts[len(pts)-1])
	}
	if len(pts) > 4 {
		pts = pts[:4]
	}
	return pts
}

// Close releases the underlying Vision client.
func (g *GoogleVisionClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
