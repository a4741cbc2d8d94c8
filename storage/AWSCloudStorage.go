package storage

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dustin/go-humanize"
	"golang.org/x/net/context"
)

const defaultAWSRegion = "us-east-1"

type AWSCloudStorageProxy struct {
	s3ServicesClient *s3.Client
	accountURL       string
	region           string
	linkExpiration   time.Duration
	logger           *slog.Logger
}

func (handler ProxyAuthHandlerAWSDefaultIdentity) createProxy(options *CloudStorageProxyOptions) (CloudStorageProxy, error) {
	awsConfig, err := config.LoadDefaultConfig(context.TODO(), regionOption(handler.Region))
	if err != nil {
		return nil, wrapError("unable to create S3 service client", err)
	}
	return createProxyFromConfig(handler.AccountURL, handler.Region, &awsConfig, options), nil
}

func (handler ProxyAuthHandlerAWSConfiguredIdentity) createProxy(options *CloudStorageProxyOptions) (CloudStorageProxy, error) {
	if handler.AccessID == "" {
		return nil, missingField(handler.AuthMode(), "an access key id")
	}
	if handler.AccessKey == "" {
		return nil, missingField(handler.AuthMode(), "a secret access key")
	}
	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		regionOption(handler.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(handler.AccessID, handler.AccessKey, "")),
	)
	if err != nil {
		return nil, wrapError("unable to create S3 service client", err)
	}
	return createProxyFromConfig(handler.AccountURL, handler.Region, &awsConfig, options), nil
}

func regionOption(region string) func(*config.LoadOptions) error {
	if region == "" {
		return func(*config.LoadOptions) error { return nil }
	}
	return config.WithRegion(region)
}

func createProxyFromConfig(accountURL string, accountRegion string, awsConfig *aws.Config, options *CloudStorageProxyOptions) *AWSCloudStorageProxy {
	client := s3.NewFromConfig(*awsConfig, func(o *s3.Options) {
		if accountURL != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(accountURL)
		}
		if accountRegion != "" {
			o.Region = accountRegion
		}
	})
	region := awsConfig.Region
	if accountRegion != "" {
		region = accountRegion
	}
	if region == "" {
		region = defaultAWSRegion
	}
	return &AWSCloudStorageProxy{
		s3ServicesClient: client,
		accountURL:       strings.TrimSuffix(accountURL, "/"),
		region:           region,
		linkExpiration:   options.linkExpiration(),
		logger:           options.logger(),
	}
}

func (aw *AWSCloudStorageProxy) bucketURL(bucket string) string {
	if aw.accountURL != "" {
		return aw.accountURL + "/" + url.PathEscape(bucket)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, aw.region)
}

func (aw *AWSCloudStorageProxy) objectURL(bucket string, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return aw.bucketURL(bucket) + "/" + strings.Join(segments, "/")
}

func (aw *AWSCloudStorageProxy) ListContainers(ctx context.Context) ([]string, error) {
	urls := make([]string, 0)
	result, err := aw.s3ServicesClient.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return urls, wrapError("unable to list buckets", err)
	}
	for _, bucket := range result.Buckets {
		if bucket.Name != nil {
			urls = append(urls, aw.bucketURL(*bucket.Name))
		}
	}
	return urls, nil
}

func (aw *AWSCloudStorageProxy) CreateContainer(ctx context.Context, containerName string) (string, error) {
	input := &s3.CreateBucketInput{Bucket: aws.String(containerName)}
	if aw.region != defaultAWSRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(aw.region),
		}
	}
	if _, err := aw.s3ServicesClient.CreateBucket(ctx, input); err != nil {
		return "", wrapError("unable to create bucket "+containerName, err)
	}
	aw.logger.Info("created bucket", "bucket", containerName)
	return aw.bucketURL(containerName), nil
}

func (aw *AWSCloudStorageProxy) DeleteContainer(ctx context.Context, containerName string) error {
	if _, err := aw.s3ServicesClient.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(containerName)}); err != nil {
		return wrapError("unable to delete bucket "+containerName, err)
	}
	aw.logger.Info("deleted bucket", "bucket", containerName)
	return nil
}

func (aw *AWSCloudStorageProxy) ListFiles(ctx context.Context, containerName string) ([]string, error) {
	urls := make([]string, 0)
	paginator := s3.NewListObjectsV2Paginator(aw.s3ServicesClient, &s3.ListObjectsV2Input{
		Bucket: aws.String(containerName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return urls, wrapError("unable to list contents of bucket "+containerName, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				urls = append(urls, aw.objectURL(containerName, *obj.Key))
			}
		}
	}
	return urls, nil
}

func (aw *AWSCloudStorageProxy) GetFileContentAsInputStream(ctx context.Context, containerName string, fileName string) (io.ReadCloser, error) {
	resp, err := aw.s3ServicesClient.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(containerName),
		Key:    aws.String(fileName),
	})
	if err != nil {
		return nil, wrapError("unable to get stream reader for file "+fileName, err)
	}
	return resp.Body, nil
}

func (aw *AWSCloudStorageProxy) UploadFile(ctx context.Context, containerName string, fileName string, content []byte) (string, error) {
	uploader := manager.NewUploader(aw.s3ServicesClient)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(containerName),
		Key:    aws.String(fileName),
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		return "", wrapError("unable to upload file "+fileName, err)
	}
	aw.logger.Info("uploaded object", "bucket", containerName, "key", fileName,
		"size", humanize.Bytes(uint64(len(content))))
	return aw.objectURL(containerName, fileName), nil
}

// DeleteFile removes the object. S3 deletes are idempotent, so existence is
// checked first to report a missing object as not found.
func (aw *AWSCloudStorageProxy) DeleteFile(ctx context.Context, containerName string, fileName string) error {
	if _, err := aw.s3ServicesClient.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(containerName),
		Key:    aws.String(fileName),
	}); err != nil {
		return wrapError("unable to delete file "+fileName, err)
	}
	if _, err := aw.s3ServicesClient.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(containerName),
		Key:    aws.String(fileName),
	}); err != nil {
		return wrapError("unable to delete file "+fileName, err)
	}
	return nil
}

func (aw *AWSCloudStorageProxy) GetSourceBlobSignedURL(ctx context.Context, containerName string, fileName string) (string, error) {
	presignClient := s3.NewPresignClient(aw.s3ServicesClient)
	request, err := presignClient.PresignGetObject(ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(containerName),
			Key:    aws.String(fileName),
		},
		func(options *s3.PresignOptions) {
			options.Expires = aw.linkExpiration
		},
	)
	if err != nil {
		return "", wrapError("could not obtain presigned url", err)
	}
	return request.URL, nil
}
