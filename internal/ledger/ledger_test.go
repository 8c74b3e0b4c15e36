package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_StartFinishList(t *testing.T) {
	ctx := context.Background()
	l := openTemp(t)

	i := 2
	id, err := l.Start(ctx, Entry{
		RunID: "run-1", Config: "demo", Routine: "pairs", Suffixes: []string{"z1"},
		Mode: "execute", NJobs: 4, IJob: &i,
	})
	require.NoError(t, err)
	require.NoError(t, l.Finish(ctx, id, "out/demo_pairs_z1_2of4.json.xz", "abc", nil))

	failed, err := l.Start(ctx, Entry{RunID: "run-2", Config: "demo", Routine: "pairs", Suffixes: []string{"z1"}, Mode: "combine", NJobs: 4})
	require.NoError(t, err)
	require.NoError(t, l.Finish(ctx, failed, "", "", errors.New("missing partial outputs")))

	entries, err := l.List(ctx, "demo", "pairs", []string{"z1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, StatusCompleted, entries[0].Status)
	require.NotNil(t, entries[0].IJob)
	assert.Equal(t, 2, *entries[0].IJob)
	assert.Equal(t, []string{"z1"}, entries[0].Suffixes)
	assert.Equal(t, "abc", entries[0].Digest)
	assert.False(t, entries[0].FinishedAt.IsZero())

	assert.Equal(t, StatusFailed, entries[1].Status)
	assert.Nil(t, entries[1].IJob)
	assert.Equal(t, "missing partial outputs", entries[1].Error)
	assert.Empty(t, entries[1].Output)

	other, err := l.List(ctx, "demo", "pairs", nil)
	require.NoError(t, err)
	assert.Empty(t, other, "suffix sets are distinct targets")
}

func TestLedger_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	// Separate handles stand in for separate worker processes.
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, err := Open(path)
			if err != nil {
				errs <- err
				return
			}
			defer l.Close()
			id, err := l.Start(ctx, Entry{RunID: "r", Config: "c", Routine: "h", Mode: "execute", NJobs: 4, IJob: &i})
			if err != nil {
				errs <- err
				return
			}
			errs <- l.Finish(ctx, id, "o", "d", nil)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()
	entries, err := l.List(ctx, "c", "h", nil)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	id, err := r.Start(context.Background(), Entry{})
	require.NoError(t, err)
	assert.NoError(t, r.Finish(context.Background(), id, "", "", nil))
}
