package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/sakateka/go-loader/loader/record"
)

// userAgent identifies this loader on every remote request.
const userAgent = "go-loader uploader"

type apiClient struct {
	httpClient *retryablehttp.Client
	logger     log.Logger
}

func newAPIClient(client *retryablehttp.Client, logger log.Logger) apiClient {
	return apiClient{
		httpClient: client,
		logger:     logger,
	}
}

// newRetryableClient retries transport failures only. A definitive response,
// even a server error, belongs to the pipeline's own error handling rather
// than the transport retry loop.
func newRetryableClient(logger log.Logger) *retryablehttp.Client {
	client := retryhttp.NewClient(logger)
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err != nil {
			return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		}
		return false, nil
	}
	return client
}

func (c apiClient) acquireTarget(ctx context.Context, targetURL, fileName string, params, headers map[string]string) (record.Record, error) {
	apiURL := fmt.Sprintf("%s/upload-url", strings.TrimSuffix(targetURL, "/"))

	req, err := retryablehttp.NewRequest(http.MethodPost, apiURL, nil)
	if err != nil {
		return record.Record{}, err
	}
	req = req.WithContext(ctx)

	query := req.URL.Query()
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set("path", fileName)
	req.URL.RawQuery = query.Encode()

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return record.Record{}, &AcquisitionError{URL: apiURL, Reason: err.Error()}
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			c.logger.Printf(err.Error())
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return record.Record{}, &AcquisitionError{URL: apiURL, Status: resp.StatusCode, Reason: responseReason(resp)}
	}

	var rec record.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return record.Record{}, fmt.Errorf("decode target response: %w", err)
	}
	if rec.PostTarget == "" || rec.PollResult == "" {
		return record.Record{}, fmt.Errorf("target response is missing post-target or poll-result")
	}
	return rec, nil
}

func (c apiClient) uploadFile(ctx context.Context, postTarget, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			c.logger.Errorf("failed to close file: %s", err)
		}
	}(file)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("read file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, postTarget, body.Bytes())
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UploadError{URL: postTarget, Reason: err.Error()}
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			c.logger.Printf(err.Error())
		}
	}(resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode > 299 {
		return &UploadError{URL: postTarget, Status: resp.StatusCode, Reason: responseReason(resp)}
	}

	// The response body is informational JSON.
	var uploadResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err == nil {
		c.logger.Debugf("Upload response: %v", uploadResp)
	}
	return nil
}

func (c apiClient) fetchStatus(ctx context.Context, pollURL string) (json.RawMessage, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, pollURL, nil)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &StatusError{URL: pollURL, Reason: err.Error()}
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			c.logger.Printf(err.Error())
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: pollURL, Status: resp.StatusCode, Reason: responseReason(resp)}
	}

	status, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &StatusError{URL: pollURL, Status: resp.StatusCode, Reason: err.Error()}
	}
	if !json.Valid(status) {
		return nil, &StatusError{URL: pollURL, Status: resp.StatusCode, Reason: "response is not valid JSON"}
	}
	return status, nil
}

func responseReason(resp *http.Response) string {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.Status
	}
	reason := strings.TrimSpace(string(body))
	if reason == "" {
		return resp.Status
	}
	return reason
}
