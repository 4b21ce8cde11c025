package network

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bitrise-io/go-utils/v2/log"
)

// FetchStatus queries the poll-result URI and returns the raw status
// document reported by the remote service.
func FetchStatus(ctx context.Context, pollURL string, logger log.Logger) (json.RawMessage, error) {
	if pollURL == "" {
		return nil, fmt.Errorf("poll URL is empty")
	}

	client := newAPIClient(newRetryableClient(logger), logger)

	logger.Debugf("Query upload status")
	return client.fetchStatus(ctx, pollURL)
}
