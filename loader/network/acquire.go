package network

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/sakateka/go-loader/loader/record"
)

// AcquireParams ...
type AcquireParams struct {
	// TargetURL is the base URL of the target-assignment service.
	TargetURL string
	// FilePath is the local file the target is acquired for. Its base name
	// is sent as the path query parameter.
	FilePath string
	// Params are extra query parameters sent with the request.
	Params map[string]string
	// Headers are extra headers sent with the request.
	Headers map[string]string
}

// Acquire asks the target-assignment endpoint for the upload and status
// polling URIs of a single file. The returned record carries the response
// as-is; the caller stamps the acquisition time and persists it.
func Acquire(ctx context.Context, params AcquireParams, logger log.Logger) (record.Record, error) {
	if params.TargetURL == "" {
		return record.Record{}, fmt.Errorf("target URL is empty")
	}
	if params.FilePath == "" {
		return record.Record{}, fmt.Errorf("file path is empty")
	}

	client := newAPIClient(newRetryableClient(logger), logger)

	logger.Debugf("Query upload target for %s", params.FilePath)
	return client.acquireTarget(ctx, params.TargetURL, filepath.Base(params.FilePath), params.Params, params.Headers)
}
