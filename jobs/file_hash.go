package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	jobmetrics "github.com/contaflux-erp/contaflux-erp/internal/jobs"
)

const hashChunkSize = 1 << 20

// ImportHashJob fingerprints uploaded import files off the request path.
// Progress is written to redis so the upload UI can poll it, and a digest
// seen before marks the batch as a duplicate instead of failing it.
type ImportHashJob struct {
	redis   *redis.Client
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewImportHashJob constructs ImportHashJob.
func NewImportHashJob(client *redis.Client, metrics *jobmetrics.Metrics, logger *slog.Logger) *ImportHashJob {
	return &ImportHashJob{redis: client, metrics: metrics, logger: logger}
}

// Handle processes TaskImportHash tasks.
func (j *ImportHashJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ImportHashPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.BatchID == "" || payload.FilePath == "" {
		return asynq.SkipRetry
	}
	tracker := j.metrics.Track("import_hash")
	digest, err := j.hashFile(ctx, payload)
	if err != nil {
		return tracker.End(err)
	}

	duplicate, err := j.recordDigest(ctx, payload, digest)
	if err != nil {
		return tracker.End(err)
	}
	if duplicate {
		j.logger.Warn("duplicate import file",
			slog.Int64("company_id", payload.CompanyID),
			slog.String("batch_id", payload.BatchID),
			slog.String("digest", digest))
	}
	return tracker.End(nil)
}

func (j *ImportHashJob) hashFile(ctx context.Context, payload ImportHashPayload) (string, error) {
	file, err := os.Open(payload.FilePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", err
	}
	total := info.Size()

	hasher := sha256.New()
	buf := make([]byte, hashChunkSize)
	var done int64
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := file.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			done += int64(n)
			j.writeProgress(ctx, payload.BatchID, done, total)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	digest := hex.EncodeToString(hasher.Sum(nil))
	j.writeProgress(ctx, payload.BatchID, total, total)
	return digest, nil
}

func (j *ImportHashJob) writeProgress(ctx context.Context, batchID string, done, total int64) {
	if j.redis == nil {
		return
	}
	percent := int64(100)
	if total > 0 {
		percent = done * 100 / total
	}
	key := fmt.Sprintf("import:hash:progress:%s", batchID)
	if err := j.redis.Set(ctx, key, percent, time.Hour).Err(); err != nil {
		j.logger.Warn("hash progress write failed", slog.Any("error", err))
	}
}

// recordDigest claims the digest for this batch. The claim is atomic: the
// first batch to present a digest owns it, later ones are duplicates.
func (j *ImportHashJob) recordDigest(ctx context.Context, payload ImportHashPayload, digest string) (bool, error) {
	if j.redis == nil {
		return false, nil
	}
	key := fmt.Sprintf("import:hash:digest:%d:%s", payload.CompanyID, digest)
	claimed, err := j.redis.SetNX(ctx, key, payload.BatchID, 30*24*time.Hour).Result()
	if err != nil {
		return false, err
	}
	if !claimed {
		owner, err := j.redis.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return false, err
		}
		// Re-running the same batch is not a duplicate.
		if owner == payload.BatchID {
			return false, nil
		}
		resultKey := fmt.Sprintf("import:hash:duplicate:%s", payload.BatchID)
		if err := j.redis.Set(ctx, resultKey, owner, time.Hour).Err(); err != nil {
			return true, err
		}
		return true, nil
	}
	return false, nil
}
