package jobs

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insectica-ai/insectica-backend/internal/media"
	"github.com/insectica-ai/insectica-backend/internal/models"
	"github.com/insectica-ai/insectica-backend/internal/storage"
)

// backdate pushes a blob's mtime past the sweep grace window.
func backdate(t *testing.T, path string) {
	t.Helper()
	old := time.Now().Add(-2 * sweepGrace)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestSweepOrphansRemovesUnreferencedBlobs(t *testing.T) {
	blobs, err := media.New(t.TempDir(), "/media")
	require.NoError(t, err)
	store := storage.NewMemoryStore()

	convo, err := store.CreateConversation("test")
	require.NoError(t, err)

	referenced, _, err := blobs.Save("user", ".webm", []byte("clip"))
	require.NoError(t, err)
	backdate(t, referenced)
	_, err = store.CreateUtterance(&models.Utterance{
		ConversationID: convo.ID,
		Role:           models.RoleUser,
		AudioPath:      referenced,
	})
	require.NoError(t, err)

	orphan, _, err := blobs.Save("assistant", ".mp3", []byte("stale"))
	require.NoError(t, err)
	backdate(t, orphan)

	job := NewMaintenanceJob(store, blobs)
	job.SweepOrphans()

	_, err = os.Stat(referenced)
	assert.NoError(t, err, "referenced blob must survive")
	_, err = os.Stat(orphan)
	assert.True(t, os.IsNotExist(err), "orphan blob must be removed")
}

func TestSweepOrphansSparesBlobsFromTurnsInFlight(t *testing.T) {
	blobs, err := media.New(t.TempDir(), "/media")
	require.NoError(t, err)
	store := storage.NewMemoryStore()

	// Saved a moment ago, utterance row not committed yet.
	fresh, _, err := blobs.Save("user", ".webm", []byte("in-flight"))
	require.NoError(t, err)

	job := NewMaintenanceJob(store, blobs)
	job.SweepOrphans()

	_, err = os.Stat(fresh)
	assert.NoError(t, err, "a just-written blob must outlive a sweep")
}
