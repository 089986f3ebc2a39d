package storage

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/nebula-insights/internal/domain"
)

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", d.Name())

	d, err = DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	_, err = DialectFor("mysql")
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestPostgresRebind(t *testing.T) {
	d := postgresDialect{}
	tests := []struct {
		in, want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM t WHERE a = ? AND b IN (?,?)", "SELECT * FROM t WHERE a = $1 AND b IN ($2,$3)"},
		{`SELECT "what?" FROM t WHERE c = ? AND d = 'really?'`, `SELECT "what?" FROM t WHERE c = $1 AND d = 'really?'`},
		{`SELECT 'it''s?' , ?`, `SELECT 'it''s?' , $1`},
		{"LIMIT ? OFFSET ?", "LIMIT $1 OFFSET $2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.Rebind(tt.in))
	}
}

func TestSQLiteRebindIsIdentity(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ?"
	assert.Equal(t, q, sqliteDialect{}.Rebind(q))
}

func TestPhysicalTypeMapping(t *testing.T) {
	sqlite, pg := sqliteDialect{}, postgresDialect{}
	tests := []struct {
		declared   domain.DeclaredType
		wantSQLite string
		wantPG     string
	}{
		{domain.TypeInt, "INTEGER", "integer"},
		{domain.TypeDate, "DATE", "date"},
		{domain.TypeFloat, "DOUBLE", "double precision"},
		{domain.TypeText, "VARCHAR(255)", "varchar(255)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantSQLite, sqlite.PhysicalType(tt.declared))
		assert.Equal(t, tt.wantPG, pg.PhysicalType(tt.declared))
		assert.True(t, sqlite.SameType(tt.wantSQLite, tt.declared))
		assert.True(t, pg.SameType(tt.wantPG, tt.declared))
	}
	assert.True(t, sqlite.SameType("varchar(255)", domain.TypeText))
	assert.False(t, sqlite.SameType("TEXT", domain.TypeText))
	assert.False(t, pg.SameType("integer", domain.TypeFloat))
}

func TestSQLiteModifyColumnStatements(t *testing.T) {
	stmts := sqliteDialect{}.ModifyColumnSQL("uploaded_data", "sales", domain.TypeInt)
	require.Len(t, stmts, 4)
	assert.Equal(t, `ALTER TABLE "uploaded_data" ADD COLUMN "sales__retype" INTEGER`, stmts[0])
	assert.Equal(t, `UPDATE "uploaded_data" SET "sales__retype" = CASE WHEN typeof("sales") = 'real'`+
		` THEN CAST(ROUND("sales") AS INTEGER) ELSE CAST(TRIM("sales") AS INTEGER) END`, stmts[1])
	assert.Equal(t, `ALTER TABLE "uploaded_data" DROP COLUMN "sales"`, stmts[2])
	assert.Equal(t, `ALTER TABLE "uploaded_data" RENAME COLUMN "sales__retype" TO "sales"`, stmts[3])

	dateStmts := sqliteDialect{}.ModifyColumnSQL("uploaded_data", "day", domain.TypeDate)
	assert.Equal(t, `UPDATE "uploaded_data" SET "day__retype" = date(TRIM("day"))`, dateStmts[1])
}

func TestRenameColumnStatements(t *testing.T) {
	assert.Equal(t, []string{
		`ALTER TABLE "uploaded_data" RENAME COLUMN "Region" TO "region__rename"`,
		`ALTER TABLE "uploaded_data" RENAME COLUMN "region__rename" TO "region"`,
	}, sqliteDialect{}.RenameColumnSQL("uploaded_data", "Region", "region"))
	assert.Equal(t, []string{
		`ALTER TABLE "uploaded_data" RENAME COLUMN "zone" TO "region"`,
	}, sqliteDialect{}.RenameColumnSQL("uploaded_data", "zone", "region"))
	assert.Equal(t, []string{
		`ALTER TABLE "uploaded_data" RENAME COLUMN "Region" TO "region"`,
	}, postgresDialect{}.RenameColumnSQL("uploaded_data", "Region", "region"))
}

func TestPostgresModifyColumnStatement(t *testing.T) {
	stmts := postgresDialect{}.ModifyColumnSQL("uploaded_data", "sales", domain.TypeFloat)
	assert.Equal(t, []string{
		`ALTER TABLE "uploaded_data" ALTER COLUMN "sales" TYPE double precision USING "sales"::double precision`,
	}, stmts)
}

func TestPostgresConstraintDetection(t *testing.T) {
	d := postgresDialect{}
	unique := &pq.Error{Code: "23505"}
	notNull := &pq.Error{Code: "23502"}
	syntax := &pq.Error{Code: "42601"}

	assert.True(t, d.IsUniqueViolation(unique))
	assert.True(t, d.IsConstraintViolation(unique))
	assert.False(t, d.IsUniqueViolation(notNull))
	assert.True(t, d.IsConstraintViolation(notNull))
	assert.False(t, d.IsConstraintViolation(syntax))
	assert.True(t, d.IsDataException(&pq.Error{Code: "22P02"}))
	assert.False(t, d.IsDataException(notNull))
	assert.False(t, d.IsConstraintViolation(errors.New("boom")))
}
