package jobs

import (
	"log"
	"time"

	"github.com/insectica-ai/insectica-backend/internal/media"
	"github.com/insectica-ai/insectica-backend/internal/storage"
)

// sweepGrace shields blobs written moments ago: a turn in flight saves its
// audio before the utterance row exists.
const sweepGrace = 10 * time.Minute

// MaintenanceJob periodically sweeps audio blobs whose utterance rows are
// gone (conversation cascade deletes leave the files behind).
type MaintenanceJob struct {
	store    storage.Store
	media    *media.Storage
	interval time.Duration
	stopChan chan struct{}
}

// NewMaintenanceJob creates the background maintenance job
func NewMaintenanceJob(store storage.Store, blobs *media.Storage) *MaintenanceJob {
	return &MaintenanceJob{
		store:    store,
		media:    blobs,
		interval: time.Hour,
		stopChan: make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (j *MaintenanceJob) Start() {
	go j.run()
	log.Println("🧹 Maintenance job started (hourly orphan sweep)")
}

// Stop terminates the sweep loop.
func (j *MaintenanceJob) Stop() {
	close(j.stopChan)
}

func (j *MaintenanceJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.SweepOrphans()
		case <-j.stopChan:
			return
		}
	}
}

// SweepOrphans removes blobs no utterance references anymore.
func (j *MaintenanceJob) SweepOrphans() {
	paths, err := j.store.ListAudioPaths()
	if err != nil {
		log.Printf("⚠️  Orphan sweep: listing audio paths failed: %v", err)
		return
	}

	known := make(map[string]bool, len(paths))
	for _, p := range paths {
		known[p] = true
	}

	orphans, err := j.media.ListOrphans(known, sweepGrace)
	if err != nil {
		log.Printf("⚠️  Orphan sweep: scanning media failed: %v", err)
		return
	}

	removed := 0
	for _, path := range orphans {
		if err := j.media.Remove(path); err != nil {
			log.Printf("⚠️  Orphan sweep: removing %s failed: %v", path, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Printf("🧹 Orphan sweep removed %d audio blobs", removed)
	}
}
