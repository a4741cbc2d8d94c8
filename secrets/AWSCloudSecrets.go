package secrets

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"golang.org/x/net/context"
)

type AWSCloudSecretsProxy struct {
	secretServicesClient *secretsmanager.Client
	cache                *secretCache
}

func (handler ProxyAuthHandlerAWSDefaultIdentity) createProxy(options *CloudSecretsCacheOptions) (CloudSecretsProxy, error) {
	awsConfig, err := config.LoadDefaultConfig(context.TODO(), regionOption(handler.Region))
	if err != nil {
		return nil, wrapError("unable to create Secrets Manager service client", err)
	}
	return createProxyFromConfig(handler.Region, handler.Endpoint, &awsConfig, options), nil
}

func (handler ProxyAuthHandlerAWSConfiguredIdentity) createProxy(options *CloudSecretsCacheOptions) (CloudSecretsProxy, error) {
	if handler.AccessID == "" || handler.AccessKey == "" {
		return nil, wrapError("an access key id and secret access key are required", nil)
	}
	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		regionOption(handler.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(handler.AccessID, handler.AccessKey, "")),
	)
	if err != nil {
		return nil, wrapError("unable to create Secrets Manager service client", err)
	}
	return createProxyFromConfig(handler.Region, handler.Endpoint, &awsConfig, options), nil
}

func regionOption(region string) func(*config.LoadOptions) error {
	if region == "" {
		return func(*config.LoadOptions) error { return nil }
	}
	return config.WithRegion(region)
}

func createProxyFromConfig(region string, endpoint string, awsConfig *aws.Config, options *CloudSecretsCacheOptions) *AWSCloudSecretsProxy {
	client := secretsmanager.NewFromConfig(*awsConfig, func(o *secretsmanager.Options) {
		if region != "" {
			o.Region = region
		}
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &AWSCloudSecretsProxy{
		secretServicesClient: client,
		cache:                newSecretCache(options),
	}
}

func (aw *AWSCloudSecretsProxy) fetch(ctx context.Context, name string) (string, error) {
	resp, err := aw.secretServicesClient.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", wrapError("unable to retrieve secret "+name, err)
	}
	if resp.SecretString != nil {
		return *resp.SecretString, nil
	}
	return string(resp.SecretBinary), nil
}

func (aw *AWSCloudSecretsProxy) GetSecret(ctx context.Context, name string) (string, error) {
	return aw.cache.get(ctx, name, aw.fetch)
}
