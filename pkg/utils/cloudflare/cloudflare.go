package cloudflare

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

func getS3Client() (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			os.Getenv("R2_ACCESS_KEY"),
			os.Getenv("R2_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %v", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", os.Getenv("R2_ACCOUNT_ID")))
		o.UsePathStyle = true
		o.Region = "auto"
	})

	return client, nil
}

func cdnBase() string {
	if base := os.Getenv("CDN_BASE_URL"); base != "" {
		return strings.TrimSuffix(base, "/")
	}
	return "https://cdn.goodspeech.chat"
}

type UploadResult struct {
	URL string
	Key string
}

// UploadAvatar stores a processed webp avatar under the account's folder
// and returns its public CDN URL.
func UploadAvatar(accountID string, body *bytes.Buffer) (UploadResult, error) {
	objectKey := fmt.Sprintf("accounts/%s/avatars/%s.webp", slug.Make(accountID), uuid.New().String())

	client, err := getS3Client()
	if err != nil {
		return UploadResult{}, err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(os.Getenv("R2_BUCKET_NAME")),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(body.Bytes()),
		ContentType: aws.String("image/webp"),
	}

	if _, err := client.PutObject(context.TODO(), input); err != nil {
		return UploadResult{}, fmt.Errorf("could not upload file to R2: %v", err)
	}

	return UploadResult{
		URL: fmt.Sprintf("%s/%s", cdnBase(), objectKey),
		Key: objectKey,
	}, nil
}

// DeleteObject removes a previously uploaded object given its CDN URL.
func DeleteObject(fullURL string) error {
	objectKey := strings.TrimPrefix(fullURL, cdnBase()+"/")

	client, err := getS3Client()
	if err != nil {
		return err
	}

	input := &s3.DeleteObjectInput{
		Bucket: aws.String(os.Getenv("R2_BUCKET_NAME")),
		Key:    aws.String(objectKey),
	}

	if _, err := client.DeleteObject(context.TODO(), input); err != nil {
		return fmt.Errorf("could not delete file from R2: %v", err)
	}

	return nil
}
