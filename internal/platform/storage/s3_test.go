package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectAPI struct {
	put     *s3.PutObjectInput
	body    []byte
	putErr  error
	headErr error
}

func (f *fakeObjectAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.putErr
}

func (f *fakeObjectAPI) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func offlinePresigner() *s3.PresignClient {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("key", "secret", ""),
		BaseEndpoint: aws.String("http://127.0.0.1:9000"),
		UsePathStyle: true,
	})
	return s3.NewPresignClient(client)
}

func TestPut(t *testing.T) {
	api := &fakeObjectAPI{}
	st := New(api, offlinePresigner(), "receipts", time.Minute)

	require.NoError(t, st.Put(context.Background(), "receipts/2024/01/02/x.pdf", []byte("%PDF")))
	assert.Equal(t, "receipts", aws.ToString(api.put.Bucket))
	assert.Equal(t, "receipts/2024/01/02/x.pdf", aws.ToString(api.put.Key))
	assert.Equal(t, "application/pdf", aws.ToString(api.put.ContentType))
	assert.Equal(t, int64(4), aws.ToInt64(api.put.ContentLength))
	assert.Equal(t, "%PDF", string(api.body))

	api.putErr = errors.New("denied")
	assert.ErrorContains(t, st.Put(context.Background(), "k.png", nil), "denied")
}

func TestPresignGet(t *testing.T) {
	st := New(&fakeObjectAPI{}, offlinePresigner(), "receipts", 10*time.Minute)

	link, err := st.PresignGet(context.Background(), "receipts/2024/01/02/x.pdf")
	require.NoError(t, err)
	assert.Contains(t, link, "http://127.0.0.1:9000/receipts/receipts/2024/01/02/x.pdf")
	assert.Contains(t, link, "X-Amz-Expires=600")
}

func TestHealthCheck(t *testing.T) {
	api := &fakeObjectAPI{}
	st := New(api, offlinePresigner(), "receipts", 0)
	assert.NoError(t, st.HealthCheck(context.Background()))
	api.headErr = errors.New("no bucket")
	assert.Error(t, st.HealthCheck(context.Background()))
}

func TestReceiptKey(t *testing.T) {
	now := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	key := ReceiptKey(now, "Scan.PDF")
	assert.Regexp(t, regexp.MustCompile(`^receipts/2024/03/05/[0-9a-f-]{36}\.pdf$`), key)
	assert.NotEqual(t, key, ReceiptKey(now, "Scan.PDF"))
}

func TestNewS3_AppliesOptions(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	var lo config.LoadOptions
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		return aws.Config{Region: lo.Region, Credentials: lo.Credentials}, nil
	}

	st, err := NewS3(context.Background(), Options{
		Bucket:       "receipts",
		Region:       "eu-central-1",
		BaseEndpoint: "http://minio:9000",
		AccessKey:    "minio",
		SecretKey:    "minio123",
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", lo.Region)
	assert.NotNil(t, lo.Credentials)
	assert.Equal(t, 15*time.Minute, st.linkTTL)

	_, err = NewS3(context.Background(), Options{})
	assert.Error(t, err)
}
