package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"
)

// AWSSource loads the secrets document from AWS Secrets Manager
type AWSSource struct {
	client   *secretsmanager.Client
	secretID string
	logger   *zap.Logger
}

// NewAWSSource creates a Secrets Manager source using the default
// credentials chain (IAM role in production)
func NewAWSSource(ctx context.Context, region, secretID string, logger *zap.Logger) (*AWSSource, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &AWSSource{
		client:   secretsmanager.NewFromConfig(cfg),
		secretID: secretID,
		logger:   logger,
	}, nil
}

// Load fetches the current secret version
func (s *AWSSource) Load(ctx context.Context) (string, error) {
	s.logger.Info("Retrieving webhook secrets from AWS Secrets Manager",
		zap.String("secret_id", s.secretID),
	)

	startTime := time.Now()
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", s.secretID, err)
	}

	s.logger.Info("Webhook secrets retrieved",
		zap.String("secret_id", s.secretID),
		zap.Duration("elapsed", time.Since(startTime)),
	)
	return aws.ToString(result.SecretString), nil
}
