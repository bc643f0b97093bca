package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/localbase/runtime/client"
)

func readEntries(t *testing.T, fs afero.Fs, path string) []Entry {
	t.Helper()

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)

	var entries []Entry
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		var entry Entry
		require.NoError(t, json.Unmarshal(line, &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestRecordFlushesAtBatchSize(t *testing.T) {
	fs := afero.NewMemMapFs()
	j := New(fs, "journal.log", WithBatchSize(2), WithFlushInterval(time.Hour))
	defer j.Stop()

	j.Record("patients", "select", 3*time.Millisecond, nil)

	_, err := fs.Stat("journal.log")
	assert.Error(t, err, "nothing should be written below the batch size")

	j.Record("patients", "insert", 5*time.Millisecond, nil)

	entries := readEntries(t, fs, "journal.log")
	require.Len(t, entries, 2)
	assert.Equal(t, "patients", entries[0].Table)
	assert.Equal(t, "select", entries[0].Operation)
	assert.Equal(t, "insert", entries[1].Operation)
	assert.InDelta(t, 3.0, entries[0].DurationMS, 0.001)
}

func TestStopFlushesRemainder(t *testing.T) {
	fs := afero.NewMemMapFs()
	j := New(fs, "journal.log", WithFlushInterval(time.Hour))

	j.Record("consultations", "update", 2*time.Millisecond, errors.New("boom"))
	j.Stop()

	entries := readEntries(t, fs, "journal.log")
	require.Len(t, entries, 1)
	assert.Equal(t, "consultations", entries[0].Table)
	assert.Equal(t, "boom", entries[0].Error)
	assert.WithinDuration(t, time.Now().UTC(), entries[0].Timestamp, time.Minute)
}

func TestStopIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	j := New(fs, "journal.log")

	j.Record("patients", "select", time.Millisecond, nil)
	j.Stop()
	j.Stop()

	entries := readEntries(t, fs, "journal.log")
	assert.Len(t, entries, 1)
}

func TestDisabledByEnv(t *testing.T) {
	t.Setenv("LOCALBASE_NO_JOURNAL", "1")

	fs := afero.NewMemMapFs()
	j := New(fs, "journal.log")
	defer j.Stop()

	assert.False(t, j.Enabled())

	j.Record("patients", "select", time.Millisecond, nil)
	j.Stop()

	_, err := fs.Stat("journal.log")
	assert.Error(t, err, "a disabled journal must not touch the filesystem")
}

func TestDisabledWithoutPath(t *testing.T) {
	j := New(afero.NewMemMapFs(), "")
	defer j.Stop()

	assert.False(t, j.Enabled())
}

func TestMiddlewareRecordsOutcome(t *testing.T) {
	fs := afero.NewMemMapFs()
	j := New(fs, "journal.log", WithFlushInterval(time.Hour))

	mw := j.Middleware()
	event := &client.QueryEvent{Table: "invoices", Operation: "delete"}
	err := mw(context.Background(), event, func() error {
		event.Duration = 4 * time.Millisecond
		return errors.New("disk full")
	})
	require.EqualError(t, err, "disk full")

	j.Stop()

	entries := readEntries(t, fs, "journal.log")
	require.Len(t, entries, 1)
	assert.Equal(t, "invoices", entries[0].Table)
	assert.Equal(t, "delete", entries[0].Operation)
	assert.Equal(t, "disk full", entries[0].Error)
	assert.InDelta(t, 4.0, entries[0].DurationMS, 0.001)
}
