package loader

import (
	"time"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
)

type stepTracker struct {
	tracker analytics.Tracker
	logger  log.Logger
}

// newStepTracker wraps the provided tracker, or a default one posting usage
// events when none is injected.
func newStepTracker(stepId string, envRepo env.Repository, logger log.Logger, tracker analytics.Tracker) stepTracker {
	if tracker == nil {
		p := analytics.Properties{
			"step_id":  stepId,
			"build_id": envRepo.Get("BUILD_ID"),
			"workflow": envRepo.Get("WORKFLOW_ID"),
		}
		tracker = analytics.NewDefaultTracker(logger, p)
	}
	return stepTracker{
		tracker: tracker,
		logger:  logger,
	}
}

func (t *stepTracker) logFileUploaded(uploadTime time.Duration, sizeBytes int64) {
	properties := analytics.Properties{
		"upload_time_s":     uploadTime.Truncate(time.Second).Seconds(),
		"upload_size_bytes": sizeBytes,
	}
	t.tracker.Enqueue("step_loader_file_uploaded", properties)
}

func (t *stepTracker) logFileQuarantined() {
	t.tracker.Enqueue("step_loader_file_quarantined", analytics.Properties{})
}

func (t *stepTracker) logLoadFinished(total, uploaded, skipped, quarantined, failed int) {
	properties := analytics.Properties{
		"file_count":        total,
		"uploaded_count":    uploaded,
		"skipped_count":     skipped,
		"quarantined_count": quarantined,
		"failed_count":      failed,
	}
	t.tracker.Enqueue("step_loader_finished", properties)
}

func (t *stepTracker) wait() {
	t.tracker.Wait()
}
