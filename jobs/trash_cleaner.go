package jobs

import (
	"context"
	"time"

	"nimbusdrive/logger"
	"nimbusdrive/repository"
	"nimbusdrive/services"
)

// cleanupBatchSize bounds how many trashed files one sweep will purge.
const cleanupBatchSize = 500

// TrashCleaner permanently removes soft-deleted files once they have sat in
// the trash past the retention window. Folder rows stay soft-deleted forever;
// only file records hold storage worth reclaiming.
type TrashCleaner struct {
	fileRepo    repository.FileRepository
	fileService *services.FileService
	retention   time.Duration
	interval    time.Duration
	log         *logger.Logger
}

func NewTrashCleaner(fileRepo repository.FileRepository, fileService *services.FileService, retention, interval time.Duration, log *logger.Logger) *TrashCleaner {
	return &TrashCleaner{
		fileRepo:    fileRepo,
		fileService: fileService,
		retention:   retention,
		interval:    interval,
		log:         log.With("job", "trash_cleaner"),
	}
}

// Start runs the cleanup loop until ctx is cancelled. The first sweep runs
// immediately.
func (tc *TrashCleaner) Start(ctx context.Context) {
	tc.log.Infof("starting trash cleaner, retention=%v interval=%v", tc.retention, tc.interval)

	tc.runCleanup(ctx)

	ticker := time.NewTicker(tc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			tc.log.Infof("trash cleaner stopped")
			return
		case <-ticker.C:
			tc.runCleanup(ctx)
		}
	}
}

func (tc *TrashCleaner) runCleanup(ctx context.Context) {
	cutoff := time.Now().Add(-tc.retention)

	files, err := tc.fileRepo.ListDeletedBefore(ctx, cutoff, cleanupBatchSize)
	if err != nil {
		tc.log.ErrorWith("failed to list trashed files", err, nil)
		return
	}
	if len(files) == 0 {
		return
	}

	purged := 0
	for i := range files {
		if ctx.Err() != nil {
			return
		}
		if err := tc.fileService.Purge(ctx, &files[i]); err != nil {
			tc.log.ErrorWith("failed to purge trashed file", err, map[string]interface{}{
				"file_id": files[i].ID.Hex(),
			})
			continue
		}
		purged++
	}

	tc.log.Infof("trash cleanup purged %d of %d expired files", purged, len(files))
}
