package loader

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/sakateka/go-loader/loader/network"
	"github.com/sakateka/go-loader/loader/record"
)

type fakeEnvRepo struct {
	envVars map[string]string
}

func (repo fakeEnvRepo) Get(key string) string {
	value, ok := repo.envVars[key]
	if ok {
		return value
	} else {
		return ""
	}
}

func (repo fakeEnvRepo) Set(key, value string) error {
	repo.envVars[key] = value
	return nil
}

func (repo fakeEnvRepo) Unset(key string) error {
	repo.envVars[key] = ""
	return nil
}

func (repo fakeEnvRepo) List() []string {
	envs := []string{}
	for k, v := range repo.envVars {
		envs = append(envs, fmt.Sprintf("%s=%s", k, v))
	}
	return envs
}

type fakeTracker struct{}

func (fakeTracker) Enqueue(eventName string, properties ...analytics.Properties) {}
func (fakeTracker) Wait()                                                        {}

type fakeAcquirer struct {
	fn func(network.AcquireParams) (record.Record, error)
}

func (f fakeAcquirer) Acquire(_ context.Context, params network.AcquireParams, _ log.Logger) (record.Record, error) {
	return f.fn(params)
}

type fakeUploader struct {
	fn func(network.UploadParams) error
}

func (f fakeUploader) Upload(_ context.Context, params network.UploadParams, _ log.Logger) error {
	return f.fn(params)
}

type fakeStatusFetcher struct {
	fn func(pollURL string) (json.RawMessage, error)
}

func (f fakeStatusFetcher) FetchStatus(_ context.Context, pollURL string, _ log.Logger) (json.RawMessage, error) {
	return f.fn(pollURL)
}
