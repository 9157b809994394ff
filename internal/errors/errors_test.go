package errors

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestBuild_FastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuild_ExplicitFields(t *testing.T) {
	t.Parallel()

	ee := Newf("sheet %q has no header row", "Sheet1").
		Component("ingest").
		Category(CategoryFileParsing).
		Priority(PriorityHigh).
		Context("file", "march.xlsx").
		Timing("load_workbook", 1500*time.Millisecond).
		Build()

	assert.Equal(t, "ingest", ee.GetComponent())
	assert.Equal(t, "file-parsing", ee.GetCategory())
	assert.Equal(t, PriorityHigh, ee.GetPriority())

	ctx := ee.GetContext()
	assert.Equal(t, "march.xlsx", ctx["file"])
	assert.Equal(t, "load_workbook", ctx["operation"])
	assert.Equal(t, int64(1500), ctx["duration_ms"])
}

func TestBuild_InvalidPriorityFallsBackToMedium(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("boom")).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
}

func TestBuild_FileContextDropsDirectories(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("locked")).FileContext("/srv/biometric/exports/Attendance.XLSX", 4096).Build()
	ctx := ee.GetContext()

	assert.Equal(t, "Attendance.XLSX", ctx["file_name"])
	assert.Equal(t, "xlsx", ctx["file_extension"])
	assert.Equal(t, "small", ctx["file_size_category"])
}

func TestDetectCategory_FromMessageAndChain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CategoryTimeout, detectCategory(NewStd("context deadline exceeded"), ""))
	assert.Equal(t, CategoryFileIO, detectCategory(fmt.Errorf("open x: %w", os.ErrPermission), ""))
	assert.Equal(t, CategoryDatabase, detectCategory(NewStd("driver: bad connection"), "datastore"))

	inner := New(NewStd("dup")).Category(CategoryConflict).Build()
	assert.Equal(t, CategoryConflict, detectCategory(fmt.Errorf("wrapped: %w", inner), ""))
}

func TestIsCategory(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("lookup: %w", New(NewStd("missing")).Category(CategoryNotFound).Build())
	assert.True(t, IsNotFound(err))
	assert.False(t, IsCategory(err, CategoryDatabase))
	assert.False(t, IsNotFound(NewStd("plain")))
}

func TestEnhancedError_IsMatchesWrappedSentinel(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("record not found")
	ee := New(fmt.Errorf("find: %w", sentinel)).Category(CategoryNotFound).Build()

	require.ErrorIs(t, ee, sentinel)
}

func TestSetTelemetryReporter_ReportsBuiltErrors(t *testing.T) {
	reporter := &recordingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(NewStd("connection refused")).Component("datastore").Build()

	require.Len(t, reporter.reported, 1)
	assert.Same(t, ee, reporter.reported[0])
	assert.True(t, ee.IsReported())
	assert.Equal(t, CategoryDatabase, ee.Category)
}

func TestScrubMessage(t *testing.T) {
	t.Parallel()

	msg := scrubMessage("dial root:secret@tcp(10.0.0.5:3306) failed; see https://hooks.example.com/x?token=abc")
	assert.NotContains(t, msg, "secret")
	assert.NotContains(t, msg, "token=abc")

	msg = scrubMessage("open /home/hr/exports/march.xlsx: permission denied")
	assert.Equal(t, "open march.xlsx: permission denied", msg)

	msg = scrubMessage("config has password=hunter2")
	assert.Equal(t, "config has password=[REDACTED]", msg)
}
