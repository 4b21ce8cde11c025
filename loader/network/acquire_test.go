package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Acquire(t *testing.T) {
	var gotRequest *http.Request
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequest = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"post-target": "https://storage.example.com/f/1", "poll-result": "https://api.example.com/s/1"}`))
		require.NoError(t, err)
	}))
	defer svr.Close()

	rec, err := Acquire(context.Background(), AcquireParams{
		TargetURL: svr.URL,
		FilePath:  "/data/in/report.csv",
		Params:    map[string]string{"project": "demo"},
		Headers:   map[string]string{"X-Auth": "secret"},
	}, log.NewLogger())

	require.NoError(t, err)
	assert.Equal(t, "https://storage.example.com/f/1", rec.PostTarget)
	assert.Equal(t, "https://api.example.com/s/1", rec.PollResult)
	assert.False(t, rec.Uploaded)

	require.NotNil(t, gotRequest)
	assert.Equal(t, http.MethodPost, gotRequest.Method)
	assert.Equal(t, "/upload-url", gotRequest.URL.Path)
	assert.Equal(t, "demo", gotRequest.URL.Query().Get("project"))
	assert.Equal(t, "report.csv", gotRequest.URL.Query().Get("path"))
	assert.Equal(t, "secret", gotRequest.Header.Get("X-Auth"))
	assert.Equal(t, userAgent, gotRequest.Header.Get("User-Agent"))
}

func Test_Acquire_NonSuccessStatus(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown project", http.StatusNotFound)
	}))
	defer svr.Close()

	_, err := Acquire(context.Background(), AcquireParams{
		TargetURL: svr.URL,
		FilePath:  "report.csv",
	}, log.NewLogger())

	var acquisitionErr *AcquisitionError
	require.ErrorAs(t, err, &acquisitionErr)
	assert.Equal(t, http.StatusNotFound, acquisitionErr.Status)
	assert.Equal(t, svr.URL+"/upload-url", acquisitionErr.URL)
	assert.Equal(t, "unknown project", acquisitionErr.Reason)
}

func Test_Acquire_IncompleteResponse(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte(`{"post-target": "https://storage.example.com/f/1"}`))
		require.NoError(t, err)
	}))
	defer svr.Close()

	_, err := Acquire(context.Background(), AcquireParams{
		TargetURL: svr.URL,
		FilePath:  "report.csv",
	}, log.NewLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll-result")
}

func Test_Acquire_EmptyInputs(t *testing.T) {
	logger := log.NewLogger()

	_, err := Acquire(context.Background(), AcquireParams{FilePath: "report.csv"}, logger)
	assert.EqualError(t, err, "target URL is empty")

	_, err = Acquire(context.Background(), AcquireParams{TargetURL: "https://api.example.com"}, logger)
	assert.EqualError(t, err, "file path is empty")
}
