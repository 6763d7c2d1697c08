package ports

import (
	"time"

	"edgeproof/domain/core"
)

// ProgressEvent marks a finished pipeline stage of one run
type ProgressEvent struct {
	RunID     core.RunID             `json:"run_id"`
	Stage     string                 `json:"stage"`
	Progress  float64                `json:"progress"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Final stage name of a run
const StageCompleted = "completed"

// ProgressSink receives stage events. Publish must not block the run.
type ProgressSink interface {
	Publish(event ProgressEvent)
}
