package upload

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Annany2002/nebula-insights/internal/template"
)

type staticDefinitions struct {
	def *template.Definition
}

func (s staticDefinitions) Current() *template.Definition { return s.def }

func workbookBytes(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestService_UploadWritesReportForRejections(t *testing.T) {
	reports, err := NewReportStore(t.TempDir(), time.Hour)
	require.NoError(t, err)
	ins := &recordingInserter{}
	svc := NewService(staticDefinitions{testDefinition(t)}, ins, reports, nil)

	file := workbookBytes(t, [][]any{
		{"region", "sales", "visit_date", "ratio"},
		{"east", 10, "2024-01-31", 1.5},
		{"south", 3, "", ""},
	})
	result, err := svc.Upload(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Outcome.InsertedCount)
	require.Len(t, result.Outcome.Rejected, 1)
	assert.Equal(t, 3, result.Outcome.Rejected[0].Row)
	assert.True(t, strings.HasSuffix(result.ReportName, ".xlsx"))

	_, err = reports.Path(result.ReportName)
	assert.NoError(t, err)
	assert.Equal(t, []any{"east", int64(10), "2024-01-31", 1.5}, ins.rows[0])
}

func TestService_UploadWithoutRejectionsHasNoReport(t *testing.T) {
	svc := NewService(staticDefinitions{testDefinition(t)}, &recordingInserter{}, nil, nil)
	file := workbookBytes(t, [][]any{
		{"region", "sales", "visit_date", "ratio"},
		{"west", 1, "", ""},
	})
	result, err := svc.Upload(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Outcome.InsertedCount)
	assert.Empty(t, result.ReportName)
}

func TestService_StructuralErrors(t *testing.T) {
	svc := NewService(staticDefinitions{}, &recordingInserter{}, nil, nil)
	_, err := svc.Upload(context.Background(), bytes.NewBufferString("x"))
	assert.ErrorIs(t, err, template.ErrTemplateMissing)

	svc = NewService(staticDefinitions{testDefinition(t)}, &recordingInserter{}, nil, nil)
	_, err = svc.Upload(context.Background(), bytes.NewBufferString("not a workbook"))
	assert.ErrorIs(t, err, template.ErrWorkbookUnreadable)

	_, err = svc.Upload(context.Background(), workbookBytes(t, [][]any{{"region", "sales"}}))
	assert.ErrorIs(t, err, ErrHeaderMismatch)
}
