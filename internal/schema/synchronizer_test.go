package schema

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/nebula-insights/internal/domain"
	"github.com/Annany2002/nebula-insights/internal/storage"
	"github.com/Annany2002/nebula-insights/internal/template"
)

type fakeLoader struct {
	def *template.Definition
	err error
}

func (f *fakeLoader) Load() (*template.Definition, error) {
	return f.def, f.err
}

func definition(cols ...domain.ColumnDefinition) *template.Definition {
	for i := range cols {
		cols[i].Position = i
	}
	return &template.Definition{Columns: cols, Allowed: map[string]map[string]struct{}{}}
}

func col(name string, t domain.DeclaredType) domain.ColumnDefinition {
	return domain.ColumnDefinition{Name: name, DeclaredType: t}
}

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "schema.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	dialect, err := storage.DialectFor("sqlite3")
	require.NoError(t, err)
	store, err := storage.NewStore(context.Background(), db, dialect, "uploaded_data")
	require.NoError(t, err)
	return store
}

func physicalNames(t *testing.T, store *storage.Store) []string {
	t.Helper()
	names, err := store.DataColumnNames(context.Background())
	require.NoError(t, err)
	sort.Strings(names)
	return names
}

func TestSynchronize_CreatesTableAndIsIdempotent(t *testing.T) {
	store := newStore(t)
	loader := &fakeLoader{def: definition(col("region", domain.TypeText), col("sales", domain.TypeInt))}
	s := NewSynchronizer(loader, store, nil)
	ctx := context.Background()

	report, err := s.Synchronize(ctx)
	require.NoError(t, err)
	assert.True(t, report.TableCreated)
	assert.Equal(t, []string{"region", "sales"}, report.Added)
	assert.Equal(t, 2, report.Operations())
	assert.Same(t, loader.def, s.Current())

	report, err = s.Synchronize(ctx)
	require.NoError(t, err)
	assert.False(t, report.TableCreated)
	assert.Zero(t, report.Operations(), "second pass with an unchanged template issues no ALTER")
}

func TestSynchronize_ConvergesFromArbitrarySchema(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	_, err := store.EnsureDataTable(ctx)
	require.NoError(t, err)
	require.NoError(t, store.AddColumn(ctx, "stale", domain.TypeText))
	require.NoError(t, store.AddColumn(ctx, "sales", domain.TypeText))
	require.NoError(t, store.AddColumn(ctx, "region", domain.TypeText))
	require.NoError(t, store.InsertRow(ctx, []string{"sales", "region"}, []any{"12", "east"}))

	loader := &fakeLoader{def: definition(
		col("region", domain.TypeText),
		col("sales", domain.TypeInt),
		col("visit_date", domain.TypeDate),
	)}
	s := NewSynchronizer(loader, store, nil)

	report, err := s.Synchronize(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"visit_date"}, report.Added)
	assert.Equal(t, []string{"sales"}, report.Modified)
	assert.Equal(t, []string{"stale"}, report.Dropped)
	assert.Equal(t, []string{"region", "sales", "visit_date"}, physicalNames(t, store))

	cols, err := store.DataColumns(ctx)
	require.NoError(t, err)
	for _, c := range cols {
		if c.Name == "sales" {
			assert.Equal(t, "INTEGER", c.Type)
		}
	}

	rows, err := store.QueryRows(ctx, `SELECT "sales", "region" FROM "uploaded_data"`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 12, rows[0]["sales"])

	loader.def = definition(col("region", domain.TypeText))
	report, err = s.Synchronize(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sales", "visit_date"}, report.Dropped)
	assert.Equal(t, []string{"region"}, physicalNames(t, store))
}

func TestSynchronize_CaseOnlyRenameKeepsData(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	loader := &fakeLoader{def: definition(col("Region", domain.TypeText), col("Sales", domain.TypeText))}
	s := NewSynchronizer(loader, store, nil)

	_, err := s.Synchronize(ctx)
	require.NoError(t, err)
	require.NoError(t, store.InsertRow(ctx, []string{"Region", "Sales"}, []any{"east", "7"}))

	loader.def = definition(col("region", domain.TypeText), col("sales", domain.TypeInt))
	report, err := s.Synchronize(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Rename{{From: "Region", To: "region"}, {From: "Sales", To: "sales"}}, report.Renamed)
	assert.Equal(t, []string{"sales"}, report.Modified, "a renamed column still converges on its declared type")
	assert.Empty(t, report.Added)
	assert.Empty(t, report.Dropped)
	assert.Equal(t, []string{"region", "sales"}, physicalNames(t, store))

	rows, err := store.QueryRows(ctx, `SELECT "region", "sales" FROM "uploaded_data"`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "east", rows[0]["region"])
	assert.EqualValues(t, 7, rows[0]["sales"])

	report, err = s.Synchronize(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Operations(), "third pass is a no-op")
}

func TestSynchronize_IncompatibleTypeChangeFails(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	loader := &fakeLoader{def: definition(col("sales", domain.TypeText))}
	s := NewSynchronizer(loader, store, nil)

	_, err := s.Synchronize(ctx)
	require.NoError(t, err)
	require.NoError(t, store.InsertRow(ctx, []string{"sales"}, []any{"n/a"}))

	loader.def = definition(col("sales", domain.TypeInt))
	_, err = s.Synchronize(ctx)
	assert.ErrorIs(t, err, storage.ErrIncompatibleValue)
	assert.Equal(t, []string{"sales"}, s.Current().Names(), "the last applied template stays current")

	rows, err := store.QueryRows(ctx, `SELECT "sales" FROM "uploaded_data"`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "n/a", rows[0]["sales"])
}

func TestSynchronize_TemplateErrorsSurface(t *testing.T) {
	store := newStore(t)
	s := NewSynchronizer(&fakeLoader{err: template.ErrTemplateMissing}, store, nil)

	_, err := s.Synchronize(context.Background())
	assert.ErrorIs(t, err, template.ErrTemplateMissing)
	assert.Nil(t, s.Current())

	_, err = store.DataColumns(context.Background())
	assert.ErrorIs(t, err, storage.ErrTableNotFound, "nothing is touched before the template loads")
}

type failingStore struct {
	*storage.Store
	failAdd string
	dropped []string
}

func (f *failingStore) AddColumn(ctx context.Context, column string, t domain.DeclaredType) error {
	if column == f.failAdd {
		return errors.New("alter failed")
	}
	return f.Store.AddColumn(ctx, column, t)
}

func (f *failingStore) DropColumn(ctx context.Context, column string) error {
	f.dropped = append(f.dropped, column)
	return f.Store.DropColumn(ctx, column)
}

func TestSynchronize_AlterFailureAbortsBeforeDrops(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	_, err := store.EnsureDataTable(ctx)
	require.NoError(t, err)
	require.NoError(t, store.AddColumn(ctx, "old", domain.TypeText))

	fs := &failingStore{Store: store, failAdd: "broken"}
	s := NewSynchronizer(&fakeLoader{def: definition(col("a", domain.TypeText), col("broken", domain.TypeInt))}, fs, nil)

	report, err := s.Synchronize(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, report.Added)
	assert.Empty(t, fs.dropped, "drops run only after every add and modify succeeded")
	assert.Nil(t, s.Current())
	assert.Equal(t, []string{"a", "old"}, physicalNames(t, store))
}
