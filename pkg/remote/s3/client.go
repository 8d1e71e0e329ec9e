package s3

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittobench/internal/logger"
)

// ClientOptions configures the S3 client.
type ClientOptions struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	MaxRetries      int
}

// ClientOptionsFromEnv reads client options from the environment:
//
//	AWS_REGION              region (default us-east-1)
//	DITTOBENCH_S3_ENDPOINT  custom endpoint for S3-compatible stores
//	AWS_ACCESS_KEY_ID       static credentials; otherwise the default chain
//	AWS_SECRET_ACCESS_KEY
func ClientOptionsFromEnv() ClientOptions {
	opts := ClientOptions{
		Region:          os.Getenv("AWS_REGION"),
		Endpoint:        os.Getenv("DITTOBENCH_S3_ENDPOINT"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	return opts
}

// NewClient builds an S3 client.
func NewClient(ctx context.Context, opts ClientOptions) (*s3.Client, error) {
	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(opts.Region),
	}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			// MinIO and Localstack need path-style addressing
			o.UsePathStyle = true
		}
	})

	logger.Debug("S3 client initialized: region=%s endpoint=%q", opts.Region, opts.Endpoint)
	return client, nil
}
