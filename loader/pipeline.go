package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"

	"github.com/sakateka/go-loader/loader/network"
	"github.com/sakateka/go-loader/loader/record"
)

type pipelineResult struct {
	file        string
	uploadedNow bool
	quarantined bool
	err         error
}

// processFiles fans the candidate files out to a bounded number of pipeline
// runs. Runs never block on each other: a slow file only occupies its own
// semaphore slot.
func (l *loader) processFiles(ctx context.Context, config loadConfig, files []string, tracker stepTracker) []pipelineResult {
	resultChan := make(chan pipelineResult, len(files))
	semaphore := make(chan struct{}, config.BatchSize)

	for _, file := range files {
		go func(file string) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			resultChan <- l.runPipeline(ctx, config, file, tracker)
		}(file)
	}

	results := make([]pipelineResult, 0, len(files))
	for range files {
		results = append(results, <-resultChan)
	}
	return results
}

// runPipeline advances one file through acquisition, upload and status
// polling. Every step consults durable state first, so a rerun resumes from
// the last completed step instead of repeating network side effects.
func (l *loader) runPipeline(ctx context.Context, config loadConfig, file string, tracker stepTracker) pipelineResult {
	res := pipelineResult{file: file}

	if err := l.acquireTarget(ctx, config, file); err != nil {
		l.logger.Errorf("Acquire target for %s: %s", file, err)
		res.err = err
		return res
	}

	uploadedNow, rec, err := l.uploadFile(ctx, config, file, tracker)
	if err != nil {
		l.logger.Errorf("Upload %s: %s", file, err)
		res.err = err
		var uploadErr *network.UploadError
		res.quarantined = errors.As(err, &uploadErr)
		return res
	}
	res.uploadedNow = uploadedNow

	// Status is polled right after a fresh upload only. A resumed run that
	// finds uploaded=true treats the file as done and does not re-poll.
	if uploadedNow {
		if err := l.pollStatus(ctx, file, rec.PollResult); err != nil {
			// A failed status fetch never undoes a successful upload.
			l.logger.Warnf("Fetch status for %s: %s", file, err)
		}
	}
	return res
}

// acquireTarget ensures the file has a valid upload target on disk. A fresh
// or already uploaded record skips the network entirely; a missing or
// expired one is (re)acquired and persisted before the upload step starts.
func (l *loader) acquireTarget(ctx context.Context, config loadConfig, file string) error {
	store := record.NewStore(file)
	rec, err := store.Load()
	switch {
	case err == nil && rec.Uploaded:
		l.logger.Debugf("File %s already uploaded, skip target query", filepath.Base(file))
		return nil
	case err == nil && rec.Fresh(config.AcquireTTL, time.Now()):
		l.logger.Infof("Target for %s is still fresh, skip query", filepath.Base(file))
		return nil
	case err != nil && !errors.Is(err, record.ErrNoRecord):
		return err
	}

	rec, err = l.acquirer.Acquire(ctx, network.AcquireParams{
		TargetURL: config.TargetURL,
		FilePath:  file,
		Params:    config.Params,
		Headers:   config.Headers,
	}, l.logger)
	if err != nil {
		return err
	}

	rec.AcquireTime = time.Now()
	if err := store.Save(rec); err != nil {
		return fmt.Errorf("persist acquired target: %w", err)
	}
	l.logger.Donef("Acquired upload target for %s", filepath.Base(file))
	return nil
}

// uploadFile transfers the file to its acquired target exactly once per
// record lifetime. The uploaded flag is persisted before the status step may
// run, so a crash in between never re-uploads. A rejected upload moves the
// file and its sidecar state into quarantine.
func (l *loader) uploadFile(ctx context.Context, config loadConfig, file string, tracker stepTracker) (bool, record.Record, error) {
	store := record.NewStore(file)
	rec, err := store.Load()
	if errors.Is(err, record.ErrNoRecord) {
		// Uploading without a destination is meaningless rather than wrong.
		l.logger.Infof("Skip uploading %s, no target acquired", filepath.Base(file))
		return false, record.Record{}, nil
	}
	if err != nil {
		return false, record.Record{}, err
	}
	if rec.Uploaded {
		l.logger.Infof("File %s already uploaded, skip", filepath.Base(file))
		return false, rec, nil
	}

	info, err := os.Stat(file)
	if err != nil {
		return false, record.Record{}, fmt.Errorf("stat file: %w", err)
	}
	l.logger.Infof("Uploading %s (%s)", filepath.Base(file), units.HumanSizeWithPrecision(float64(info.Size()), 3))

	uploadStartTime := time.Now()
	err = l.uploader.Upload(ctx, network.UploadParams{
		PostTarget:        rec.PostTarget,
		FilePath:          file,
		FileSize:          info.Size(),
		S3Region:          config.S3Region,
		S3AccessKeyID:     config.S3AccessKeyID,
		S3SecretAccessKey: config.S3SecretAccessKey,
	}, l.logger)
	if err != nil {
		var uploadErr *network.UploadError
		if errors.As(err, &uploadErr) {
			if qErr := record.Quarantine(file, config.QuarantineDir); qErr != nil {
				l.logger.Errorf("Failed to quarantine %s: %s", file, qErr)
			} else {
				l.logger.Warnf("Moved %s to %s", filepath.Base(file), config.QuarantineDir)
				tracker.logFileQuarantined()
			}
		}
		return false, record.Record{}, err
	}

	rec.Uploaded = true
	if err := store.Save(rec); err != nil {
		return false, record.Record{}, fmt.Errorf("persist uploaded state: %w", err)
	}

	uploadTime := time.Since(uploadStartTime)
	l.logger.Donef("Uploaded %s in %s", filepath.Base(file), uploadTime.Round(time.Second))
	tracker.logFileUploaded(uploadTime, info.Size())
	return true, rec, nil
}

// pollStatus fetches the remote status once and appends it to the file's
// append-only status log.
func (l *loader) pollStatus(ctx context.Context, file string, pollURL string) error {
	status, err := l.statusFetcher.FetchStatus(ctx, pollURL, l.logger)
	if err != nil {
		return err
	}

	if err := record.NewStatusLog(file).Append(status, time.Now()); err != nil {
		return &network.StatusError{URL: pollURL, Reason: err.Error()}
	}
	l.logger.Donef("Recorded upload status for %s", filepath.Base(file))
	return nil
}
