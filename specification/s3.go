package specification

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

const schemeS3 = "s3"

// S3API is the subset of the S3 client used to read specifications.
type S3API interface {
	GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

func isS3URL(raw string) bool {
	return strings.HasPrefix(raw, schemeS3+"://")
}

// newS3Client builds a client from cfg. SDK retries are disabled because
// fetchRemote already retries.
func newS3Client(ctx context.Context, cfg S3Config) (*awss3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.ConfigurationError("specification: load aws config", err)
	}

	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
		o.RetryMaxAttempts = 1
	}), nil
}

// downloadS3 reads one object. Throttling, 5xx and transport failures
// are retryable; other statuses are not.
func (m *Manager) downloadS3(ctx context.Context, raw string) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		e := errors.SpecificationError(fmt.Sprintf("invalid specification url %s", raw), err)
		e.Retryable = false
		return nil, e
	}
	out, err := m.s3.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	})
	if err != nil {
		e := errors.SpecificationError(fmt.Sprintf("failed to fetch specification data from %s", raw), err)
		var respErr *awshttp.ResponseError
		if stderrors.As(err, &respErr) {
			status := respErr.HTTPStatusCode()
			e.WithDetail("status", status)
			e.Retryable = status == http.StatusTooManyRequests || status >= 500
		}
		return nil, e
	}
	defer func() { _ = out.Body.Close() }()

	return readBody(out.Body, raw)
}
