package network

import (
	"context"
	"encoding/json"

	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/sakateka/go-loader/loader/record"
)

// Acquirer ...
type Acquirer interface {
	Acquire(context.Context, AcquireParams, log.Logger) (record.Record, error)
}

// Uploader ...
type Uploader interface {
	Upload(context.Context, UploadParams, log.Logger) error
}

// StatusFetcher ...
type StatusFetcher interface {
	FetchStatus(context.Context, string, log.Logger) (json.RawMessage, error)
}

// DefaultAcquirer ...
type DefaultAcquirer struct{}

// Acquire ...
func (DefaultAcquirer) Acquire(ctx context.Context, params AcquireParams, logger log.Logger) (record.Record, error) {
	return Acquire(ctx, params, logger)
}

// DefaultUploader ...
type DefaultUploader struct{}

// Upload ...
func (DefaultUploader) Upload(ctx context.Context, params UploadParams, logger log.Logger) error {
	return Upload(ctx, params, logger)
}

// DefaultStatusFetcher ...
type DefaultStatusFetcher struct{}

// FetchStatus ...
func (DefaultStatusFetcher) FetchStatus(ctx context.Context, pollURL string, logger log.Logger) (json.RawMessage, error) {
	return FetchStatus(ctx, pollURL, logger)
}
