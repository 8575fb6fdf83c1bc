package textract

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
)

type analyzeAPI interface {
	AnalyzeDocument(ctx context.Context, in *textract.AnalyzeDocumentInput, optFns ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
}

// Extractor runs OCR on objects that already live in the S3 upload bucket.
type Extractor struct {
	client analyzeAPI
	bucket string
}

func New(awsCfg aws.Config, bucket string) *Extractor {
	return &Extractor{client: textract.NewFromConfig(awsCfg), bucket: bucket}
}

// ExtractText returns the LINE blocks of the object, one per line.
func (e *Extractor) ExtractText(ctx context.Context, key string) (string, error) {
	out, err := e.client.AnalyzeDocument(ctx, &textract.AnalyzeDocumentInput{
		Document: &types.Document{
			S3Object: &types.S3Object{
				Bucket: aws.String(e.bucket),
				Name:   aws.String(key),
			},
		},
		FeatureTypes: []types.FeatureType{
			types.FeatureTypeTables,
			types.FeatureTypeForms,
			types.FeatureTypeSignatures,
		},
	})
	if err != nil {
		return "", fmt.Errorf("textract analyze %s failed: %w", key, err)
	}

	var sb strings.Builder
	for _, block := range out.Blocks {
		if block.BlockType != types.BlockTypeLine || block.Text == nil {
			continue
		}
		sb.WriteString(*block.Text)
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String()), nil
}
