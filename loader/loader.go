package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/sakateka/go-loader/loader/network"
	"github.com/sakateka/go-loader/loader/record"
)

const (
	defaultBatchSize  = 4
	defaultAcquireTTL = 1200 * time.Second

	// quarantineDirName is the subdirectory of the input directory that
	// receives files whose upload was rejected.
	quarantineDirName = "quarantine"
)

// LoadInput is the information that comes from the loader steps that call
// this shared implementation.
type LoadInput struct {
	// StepId identifies the exact loader step. Used for logging events.
	StepId  string
	Verbose bool
	// Directory is the root holding the candidate files.
	Directory string
	// TargetURL is the base URL of the target-assignment service.
	TargetURL string
	// Params is a JSON object of query parameters sent with every target
	// acquisition.
	Params string
	// Headers is a JSON object of extra headers sent with every target
	// acquisition.
	Headers string
	// BatchSize caps the number of concurrently processed files.
	// If not provided (0), the default value (4) will be used.
	BatchSize int
	// FilePattern filters candidate files by base name.
	// If not provided, every file is a candidate.
	FilePattern string
	// AcquireTTL is how long an acquired upload target stays valid for
	// reuse without re-acquiring. If not provided (0), the default value
	// (20 minutes) will be used.
	AcquireTTL time.Duration
}

// Loader ...
type Loader interface {
	Load(ctx context.Context, input LoadInput) error
}

type loadConfig struct {
	Verbose       bool
	Directory     string
	TargetURL     string
	Params        map[string]string
	Headers       map[string]string
	BatchSize     int
	FilePattern   string
	AcquireTTL    time.Duration
	QuarantineDir string

	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

type loader struct {
	envRepo       env.Repository
	logger        log.Logger
	pathModifier  pathutil.PathModifier
	pathChecker   pathutil.PathChecker
	acquirer      network.Acquirer
	uploader      network.Uploader
	statusFetcher network.StatusFetcher
	tracker       analytics.Tracker
}

// NewLoader creates a new loader instance. The network collaborators and the
// tracker can be nil, unless you want to provide custom implementations.
func NewLoader(
	envRepo env.Repository,
	logger log.Logger,
	pathModifier pathutil.PathModifier,
	pathChecker pathutil.PathChecker,
	acquirer network.Acquirer,
	uploader network.Uploader,
	statusFetcher network.StatusFetcher,
	tracker analytics.Tracker,
) *loader {
	var acquirerImpl network.Acquirer = acquirer
	if acquirer == nil {
		acquirerImpl = network.DefaultAcquirer{}
	}
	var uploaderImpl network.Uploader = uploader
	if uploader == nil {
		uploaderImpl = network.DefaultUploader{}
	}
	var statusFetcherImpl network.StatusFetcher = statusFetcher
	if statusFetcher == nil {
		statusFetcherImpl = network.DefaultStatusFetcher{}
	}
	return &loader{
		envRepo:       envRepo,
		logger:        logger,
		pathModifier:  pathModifier,
		pathChecker:   pathChecker,
		acquirer:      acquirerImpl,
		uploader:      uploaderImpl,
		statusFetcher: statusFetcherImpl,
		tracker:       tracker,
	}
}

// Load runs the acquire-upload-poll pipeline over every candidate file in
// the input directory.
//
// Durable state on disk is the only checkpoint: an interrupted pass resumes
// from the last completed step on the next invocation. Per-file failures are
// reported and never abort the pass; only invalid inputs or an unreadable
// directory produce an error. Running two Load passes over the same
// directory concurrently is not safe and is the caller's responsibility to
// avoid.
func (l *loader) Load(ctx context.Context, input LoadInput) error {
	l.logger.EnableDebugLog(input.Verbose)

	config, err := l.createConfig(input)
	if err != nil {
		return fmt.Errorf("failed to parse inputs: %w", err)
	}

	tracker := newStepTracker(input.StepId, l.envRepo, l.logger, l.tracker)
	defer tracker.wait()

	files, err := l.candidateFiles(config)
	if err != nil {
		return fmt.Errorf("list candidate files: %w", err)
	}
	if len(files) == 0 {
		l.logger.Donef("No files match pattern %s, nothing to upload", config.FilePattern)
		return nil
	}

	l.logger.Infof("Processing %d file(s), %d at a time", len(files), config.BatchSize)
	startTime := time.Now()
	results := l.processFiles(ctx, config, files, tracker)

	var uploaded, skipped, quarantined, failed int
	for _, res := range results {
		switch {
		case res.err == nil && res.uploadedNow:
			uploaded++
		case res.err == nil:
			skipped++
		case res.quarantined:
			quarantined++
		default:
			failed++
		}
	}

	l.logger.Println()
	l.logger.Donef("Processed %d file(s) in %s", len(files), time.Since(startTime).Round(time.Second))
	l.logger.Printf("Uploaded: %d, already done: %d, quarantined: %d, failed: %d",
		uploaded, skipped, quarantined, failed)
	tracker.logLoadFinished(len(files), uploaded, skipped, quarantined, failed)

	return nil
}

func (l *loader) createConfig(input LoadInput) (loadConfig, error) {
	if strings.TrimSpace(input.Directory) == "" {
		return loadConfig{}, fmt.Errorf("input directory should not be empty")
	}
	dir, err := l.pathModifier.AbsPath(input.Directory)
	if err != nil {
		return loadConfig{}, fmt.Errorf("failed to parse directory path: %w", err)
	}
	exists, err := l.pathChecker.IsPathExists(dir)
	if err != nil {
		return loadConfig{}, fmt.Errorf("failed to check directory path: %w", err)
	}
	if !exists {
		return loadConfig{}, fmt.Errorf("input directory doesn't exist: %s", dir)
	}

	targetURL := strings.TrimSuffix(strings.TrimSpace(input.TargetURL), "/")
	if targetURL == "" {
		return loadConfig{}, fmt.Errorf("target URL should not be empty")
	}
	if _, err := url.ParseRequestURI(targetURL); err != nil {
		return loadConfig{}, fmt.Errorf("invalid target URL: %w", err)
	}

	params, err := parseJSONObject(input.Params)
	if err != nil {
		return loadConfig{}, fmt.Errorf("failed to parse params: %w", err)
	}
	headers, err := parseJSONObject(input.Headers)
	if err != nil {
		return loadConfig{}, fmt.Errorf("failed to parse headers: %w", err)
	}

	batchSize := input.BatchSize
	if batchSize == 0 {
		batchSize = defaultBatchSize
	}
	if batchSize < 1 {
		return loadConfig{}, fmt.Errorf("batch size should be at least 1")
	}

	pattern := input.FilePattern
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return loadConfig{}, fmt.Errorf("invalid file pattern: %s", pattern)
	}

	ttl := input.AcquireTTL
	if ttl == 0 {
		ttl = defaultAcquireTTL
	}
	if ttl < 0 {
		return loadConfig{}, fmt.Errorf("acquire TTL should be positive")
	}

	return loadConfig{
		Verbose:           input.Verbose,
		Directory:         dir,
		TargetURL:         targetURL,
		Params:            params,
		Headers:           headers,
		BatchSize:         batchSize,
		FilePattern:       pattern,
		AcquireTTL:        ttl,
		QuarantineDir:     filepath.Join(dir, quarantineDirName),
		S3Region:          l.envRepo.Get("AWS_REGION"),
		S3AccessKeyID:     l.envRepo.Get("AWS_ACCESS_KEY_ID"),
		S3SecretAccessKey: l.envRepo.Get("AWS_SECRET_ACCESS_KEY"),
	}, nil
}

// candidateFiles enumerates regular files matching the name filter. The
// directory is listed once per pass; files appearing later are picked up by
// the next invocation. Sidecar state files are never candidates.
func (l *loader) candidateFiles(config loadConfig) ([]string, error) {
	entries, err := os.ReadDir(config.Directory)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, record.TargetSuffix) || strings.HasSuffix(name, record.StatusSuffix) {
			continue
		}
		match, err := doublestar.Match(config.FilePattern, name)
		if err != nil {
			return nil, fmt.Errorf("match pattern %q: %w", config.FilePattern, err)
		}
		if !match {
			l.logger.Debugf("Skip %s, doesn't match pattern %s", name, config.FilePattern)
			continue
		}
		files = append(files, filepath.Join(config.Directory, name))
	}
	return files, nil
}

func parseJSONObject(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]string{}, nil
	}
	var parsed map[string]string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}
