package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSyncMovements folds settled source records into the cash ledger.
	TaskSyncMovements = "sync:movements"
	// TaskCategorizeReprocess re-runs categorization over history.
	TaskCategorizeReprocess = "categorize:reprocess"
	// TaskImportHash fingerprints an import file for duplicate detection.
	TaskImportHash = "import:hash"
	// TaskViewsRefresh refreshes reporting materialized views.
	TaskViewsRefresh = "views:refresh"
)

// SyncMovementsPayload scopes a synchronization run. CompanyID zero means
// every active company.
type SyncMovementsPayload struct {
	CompanyID    int64     `json:"company_id"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewSyncMovementsTask constructs an Asynq task for cash synchronization.
func NewSyncMovementsTask(payload SyncMovementsPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSyncMovements, body, asynq.Queue(QueueDefault)), nil
}

// CategorizeReprocessPayload scopes a historical reprocessing run.
type CategorizeReprocessPayload struct {
	CompanyID int64 `json:"company_id"`
}

// NewCategorizeReprocessTask constructs an Asynq task for reprocessing.
func NewCategorizeReprocessTask(payload CategorizeReprocessPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCategorizeReprocess, body, asynq.Queue(QueueDefault)), nil
}

// ImportHashPayload identifies an uploaded import file to fingerprint.
type ImportHashPayload struct {
	CompanyID int64  `json:"company_id"`
	BatchID   string `json:"batch_id"`
	FilePath  string `json:"file_path"`
}

// NewImportHashTask constructs an Asynq task for import fingerprinting.
func NewImportHashTask(payload ImportHashPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskImportHash, body, asynq.Queue(QueueDefault)), nil
}

// ViewsRefreshPayload carries scheduling metadata.
type ViewsRefreshPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewViewsRefreshTask constructs an Asynq task for view refresh.
func NewViewsRefreshTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ViewsRefreshPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskViewsRefresh, body, asynq.Queue(QueueDefault)), nil
}
