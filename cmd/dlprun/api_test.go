package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikastra/dlprun/machine"
)

type fakeEngine struct {
	snap    machine.Snapshot
	updates chan machine.Snapshot
}

func (f *fakeEngine) Snapshot() machine.Snapshot       { return f.snap }
func (f *fakeEngine) Updates() <-chan machine.Snapshot { return f.updates }

func newTestMonitor(dir string) (*monitor, *bool) {
	fe := &fakeEngine{
		snap:    machine.Snapshot{Status: machine.StatusRunning, Line: 3},
		updates: make(chan machine.Snapshot),
	}
	close(fe.updates)
	cancelled := false
	m := newMonitor(fe, func() { cancelled = true }, dir, zerolog.Nop())
	return m, &cancelled
}

func TestMonitorStatus(t *testing.T) {
	m, _ := newTestMonitor(t.TempDir())

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"status":"running"`)
	assert.Contains(t, rec.Body.String(), `"line":3`)
}

func TestMonitorCancel(t *testing.T) {
	m, cancelled := newTestMonitor(t.TempDir())

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("POST", "/api/cancel", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, *cancelled)

	rec = httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/api/cancel", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMonitorImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001.png"), []byte("png-bytes"), 0644))
	m, _ := newTestMonitor(dir)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/images/0001.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
}
