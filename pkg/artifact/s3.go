package artifact

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// StagerConfig configures S3 artifact staging.
//
// Authentication follows the AWS SDK v2 default chain unless explicit
// credentials are provided. For S3-compatible stores (MinIO, Wasabi), set
// Endpoint and ForcePathStyle.
type StagerConfig struct {
	// Bucket is the destination bucket (required).
	Bucket string

	// Prefix is prepended to every uploaded key.
	Prefix string

	// Region is the AWS region. Empty lets the SDK resolve it.
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	Endpoint string

	// Profile selects a shared-config profile.
	Profile string

	// AccessKeyID / SecretAccessKey are explicit credentials. Both must be
	// set together.
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle forces path-style URLs; required for most
	// S3-compatible stores.
	ForcePathStyle bool
}

// Validate checks required fields.
func (c *StagerConfig) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("artifact stager: bucket is required")
	}
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return fmt.Errorf("artifact stager: access key id and secret must be provided together")
	}
	return nil
}

// Stager uploads collected artifacts to S3 after a job completes.
type Stager struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewStager builds an S3 client from the config.
func NewStager(ctx context.Context, cfg StagerConfig) (*Stager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = cfg.ForcePathStyle
		},
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &Stager{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Stage uploads every artifact in the manifest, keyed as
// <prefix>/<jobID>/<relative path>. Returns the uploaded keys.
func (s *Stager) Stage(ctx context.Context, jobID, outputDir string, artifacts []Artifact) ([]string, error) {
	keys := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return keys, err
		}

		local := filepath.Join(outputDir, filepath.FromSlash(a.Path))
		f, err := os.Open(local)
		if err != nil {
			return keys, fmt.Errorf("open artifact %s: %w", a.Path, err)
		}

		key := path.Join(s.prefix, jobID, a.Path)
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		_ = f.Close()
		if err != nil {
			return keys, fmt.Errorf("upload %s: %w", a.Path, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
