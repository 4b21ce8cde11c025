package network

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
)

// UploadParams ...
type UploadParams struct {
	// PostTarget is the acquired destination URI. http(s) targets receive a
	// multipart POST, s3 targets are written with the AWS SDK.
	PostTarget string
	// FilePath is the local file to transfer.
	FilePath string
	// FileSize is the size of the file in bytes.
	FileSize int64

	// S3 settings, only consulted for s3:// targets.
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Upload transfers the full file content to the acquired post target.
// Failures outside the 2xx range surface as *UploadError.
func Upload(ctx context.Context, params UploadParams, logger log.Logger) error {
	if params.PostTarget == "" {
		return fmt.Errorf("post target is empty")
	}
	if params.FilePath == "" {
		return fmt.Errorf("file path is empty")
	}

	if strings.HasPrefix(params.PostTarget, s3Scheme) {
		return uploadToS3(ctx, params, logger)
	}

	client := newAPIClient(newRetryableClient(logger), logger)
	return client.uploadFile(ctx, params.PostTarget, params.FilePath)
}
