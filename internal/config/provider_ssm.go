package config

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmMaxBatchSize is the GetParameters limit on names per request.
const ssmMaxBatchSize = 10

type ssmClient interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMProvider reads decrypted SecureString parameters from SSM Parameter
// Store. The AWS client is created on first use, so a local run that never
// resolves secrets needs no credentials.
type SSMProvider struct {
	region string

	once    sync.Once
	client  ssmClient
	initErr error
}

// NewSSMProvider creates an SSMProvider for region. An empty region defers
// to the default AWS chain.
func NewSSMProvider(region string) *SSMProvider {
	return &SSMProvider{region: region}
}

func newSSMProviderWithClient(region string, client ssmClient) *SSMProvider {
	p := &SSMProvider{region: region, client: client}
	p.once.Do(func() {})
	return p
}

func (p *SSMProvider) getClient(ctx context.Context) (ssmClient, error) {
	p.once.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
		if err != nil {
			p.initErr = fmt.Errorf("loading AWS config for SSM (region=%s): %w", p.region, err)
			return
		}
		p.client = ssm.NewFromConfig(cfg)
	})
	return p.client, p.initErr
}

// GetParametersBatch maps each parameter name in keys to its plaintext. A
// name SSM does not know fails the whole call.
func (p *SSMProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	for batch := range slices.Chunk(keys, ssmMaxBatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("resolving SSM parameters: %w", err)
		}

		out, err := client.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          batch,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("SSM GetParameters (%d names): %w", len(batch), err)
		}
		if len(out.InvalidParameters) > 0 {
			return nil, fmt.Errorf("SSM parameters not found: %v", out.InvalidParameters)
		}
		for _, param := range out.Parameters {
			result[aws.ToString(param.Name)] = aws.ToString(param.Value)
		}
	}
	return result, nil
}
