package upload

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Annany2002/nebula-insights/internal/domain"
)

func TestReportStore_SaveAndResolve(t *testing.T) {
	store, err := NewReportStore(filepath.Join(t.TempDir(), "reports"), time.Hour)
	require.NoError(t, err)

	rows := [][]string{
		{"region", "sales"},
		{"east", "1"},
		{"north", "2"},
		{"west"},
	}
	name, err := store.Save(rows, []domain.RowRejection{
		{Row: 3, Reason: "Row 3: bad region"},
		{Row: 4, Reason: "Row 4: missing sales"},
	})
	require.NoError(t, err)

	path, err := store.Path(name)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"region", "sales", "Error"},
		{"north", "2", "Row 3: bad region"},
		{"west", "", "Row 4: missing sales"},
	}, got)
}

func TestReportStore_PathRejectsForeignNames(t *testing.T) {
	dir := t.TempDir()
	store, err := NewReportStore(dir, time.Hour)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.xlsx"), []byte("x"), 0o600))

	for _, name := range []string{"notes.xlsx", "../secret.xlsx", "3f1c2a8e-0000-4000-8000-000000000000.xlsx", "abc"} {
		_, err := store.Path(name)
		assert.ErrorIs(t, err, ErrReportNotFound, name)
	}
}

func TestReportStore_Purge(t *testing.T) {
	dir := t.TempDir()
	store, err := NewReportStore(dir, time.Hour)
	require.NoError(t, err)

	rows := [][]string{{"a"}, {"x"}}
	oldName, err := store.Save(rows, []domain.RowRejection{{Row: 2, Reason: "bad"}})
	require.NoError(t, err)
	freshName, err := store.Save(rows, []domain.RowRejection{{Row: 2, Reason: "bad"}})
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, oldName), past, past))

	removed, err := store.Purge()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Path(oldName)
	assert.ErrorIs(t, err, ErrReportNotFound)
	_, err = store.Path(freshName)
	assert.NoError(t, err)
}

func TestReportStore_SchedulePurge(t *testing.T) {
	store, err := NewReportStore(t.TempDir(), time.Hour)
	require.NoError(t, err)

	c := cron.New()
	id, err := store.SchedulePurge(c, "@every 1h")
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = store.SchedulePurge(c, "not a schedule")
	assert.Error(t, err)
}

func TestReportStore_SaveNothing(t *testing.T) {
	store, err := NewReportStore(t.TempDir(), time.Hour)
	require.NoError(t, err)
	_, err = store.Save([][]string{{"a"}}, nil)
	assert.Error(t, err)
}
