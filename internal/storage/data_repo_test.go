package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/nebula-insights/internal/domain"
)

func columnTypes(t *testing.T, s *Store) map[string]string {
	t.Helper()
	cols, err := s.DataColumns(context.Background())
	require.NoError(t, err)
	types := make(map[string]string, len(cols))
	for _, col := range cols {
		types[col.Name] = col.Type
	}
	return types
}

func TestEnsureDataTable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.DataColumns(ctx)
	assert.ErrorIs(t, err, ErrTableNotFound)

	created, err := s.EnsureDataTable(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.EnsureDataTable(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, map[string]string{"id": "INTEGER"}, columnTypes(t, s))
}

func TestColumnAlterations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.EnsureDataTable(ctx)
	require.NoError(t, err)

	require.NoError(t, s.AddColumn(ctx, "region", domain.TypeText))
	require.NoError(t, s.AddColumn(ctx, "sales", domain.TypeText))
	require.NoError(t, s.InsertRow(ctx, []string{"region", "sales"}, []any{"east", "42"}))

	require.NoError(t, s.ModifyColumn(ctx, "sales", domain.TypeInt))
	types := columnTypes(t, s)
	assert.Equal(t, "INTEGER", types["sales"])
	assert.True(t, s.SameType(types["sales"], domain.TypeInt))

	rows, err := s.QueryRows(ctx, `SELECT "sales" FROM "uploaded_data"`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 42, rows[0]["sales"], "values survive a type change")

	require.NoError(t, s.DropColumn(ctx, "region"))
	names, err := s.DataColumnNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales"}, names)

	assert.Error(t, s.DropColumn(ctx, "missing"))
}

func TestModifyColumn_RejectsUnconvertibleValues(t *testing.T) {
	tests := []struct {
		name   string
		values []any
		target domain.DeclaredType
	}{
		{"text to integer", []any{"42", "north"}, domain.TypeInt},
		{"decimal text to integer", []any{"12.5"}, domain.TypeInt},
		{"empty text to float", []any{""}, domain.TypeFloat},
		{"text to date", []any{"2024-01-02", "yesterday"}, domain.TypeDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			_, err := s.EnsureDataTable(ctx)
			require.NoError(t, err)
			require.NoError(t, s.AddColumn(ctx, "value", domain.TypeText))
			for _, v := range tt.values {
				require.NoError(t, s.InsertRow(ctx, []string{"value"}, []any{v}))
			}

			err = s.ModifyColumn(ctx, "value", tt.target)
			assert.ErrorIs(t, err, ErrIncompatibleValue)

			assert.True(t, s.SameType(columnTypes(t, s)["value"], domain.TypeText), "column keeps its type")
			rows, err := s.QueryRows(ctx, `SELECT "value" FROM "uploaded_data" ORDER BY "id"`)
			require.NoError(t, err)
			require.Len(t, rows, len(tt.values))
			for i, v := range tt.values {
				assert.Equal(t, v, rows[i]["value"], "values are left untouched")
			}
		})
	}
}

func TestModifyColumn_ConvertsParsableValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.EnsureDataTable(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AddColumn(ctx, "amount", domain.TypeFloat))
	require.NoError(t, s.AddColumn(ctx, "day", domain.TypeText))
	require.NoError(t, s.InsertRow(ctx, []string{"amount", "day"}, []any{2.6, " 2024-03-05 "}))
	require.NoError(t, s.InsertRow(ctx, []string{"amount", "day"}, []any{nil, nil}))

	require.NoError(t, s.ModifyColumn(ctx, "amount", domain.TypeInt))
	require.NoError(t, s.ModifyColumn(ctx, "day", domain.TypeDate))

	rows, err := s.QueryRows(ctx, `SELECT "amount", "day" FROM "uploaded_data" ORDER BY "id"`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.EqualValues(t, 3, rows[0]["amount"], "fractions round")
	assert.Equal(t, "2024-03-05", rows[0]["day"])
	assert.Nil(t, rows[1]["amount"])
	assert.Nil(t, rows[1]["day"])
}

func TestRenameColumn_CaseOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.EnsureDataTable(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AddColumn(ctx, "Region", domain.TypeText))
	require.NoError(t, s.InsertRow(ctx, []string{"Region"}, []any{"east"}))

	require.NoError(t, s.RenameColumn(ctx, "Region", "region"))

	names, err := s.DataColumnNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"region"}, names)
	rows, err := s.QueryRows(ctx, `SELECT "region" FROM "uploaded_data"`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "east", rows[0]["region"])
}

func TestInsertAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.EnsureDataTable(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AddColumn(ctx, "region", domain.TypeText))
	require.NoError(t, s.AddColumn(ctx, "visit date", domain.TypeDate))
	require.NoError(t, s.AddColumn(ctx, "ratio", domain.TypeFloat))

	require.NoError(t, s.InsertRow(ctx, []string{"region", "visit date", "ratio"}, []any{"east", "2024-03-01", 1.5}))
	require.NoError(t, s.InsertRow(ctx, []string{"region", "visit date", "ratio"}, []any{"west", nil, 2.5}))
	require.NoError(t, s.InsertRow(ctx, []string{"region", "visit date", "ratio"}, []any{"east", "2024-03-02", nil}))

	assert.ErrorIs(t, s.InsertRow(ctx, nil, nil), ErrNoValues)
	assert.Error(t, s.InsertRow(ctx, []string{"unknown"}, []any{"x"}))

	count, err := s.QueryCount(ctx, `SELECT COUNT(*) FROM "uploaded_data" WHERE "region" = ?`, "east")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	rows, total, err := s.ListData(ctx, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, rows, 2)
	assert.EqualValues(t, 3, rows[0]["id"])
	assert.Equal(t, "2024-03-02", rows[0]["visit date"])

	values, err := s.DistinctValues(ctx, "region", 100)
	require.NoError(t, err)
	assert.Equal(t, []any{"east", "west"}, values)

	values, err = s.DistinctValues(ctx, "visit date", 1)
	require.NoError(t, err)
	assert.Len(t, values, 1)
}
