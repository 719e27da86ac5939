package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/appointments/internal/config"
	"github.com/klokku/appointments/pkg/calendar"
	"github.com/klokku/appointments/pkg/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a config whose booking window starts two days from now,
// so the tests do not depend on the default window.
func writeConfig(t *testing.T) (path, date string) {
	dir := t.TempDir()
	now := time.Now().UTC()
	date = now.AddDate(0, 0, 2).Format("2006-01-02")
	yaml := fmt.Sprintf(`booking:
  windowstart: "%s"
  windowend: "%s"
  timezone: UTC
ledger:
  backend: csv
  path: %s
`, now.Format("2006-01-02"), now.AddDate(0, 1, 0).Format("2006-01-02"), filepath.Join(dir, "appointments.csv"))

	path = filepath.Join(dir, "application.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path, date
}

func TestBuildDependencies(t *testing.T) {
	path, _ := writeConfig(t)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	deps, err := BuildDependencies(context.Background(), cfg)
	require.NoError(t, err)
	defer deps.Close()

	assert.IsType(t, calendar.Noop{}, deps.Calendar)
	assert.IsType(t, notifier.Noop{}, deps.Notifier)
	assert.Nil(t, deps.DB)
	assert.Nil(t, deps.KafkaPublisher)
}

func TestBuildDependencies_SQLLedger(t *testing.T) {
	path, _ := writeConfig(t)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.Ledger.Backend = "sql"
	cfg.Database.Path = filepath.Join(t.TempDir(), "appointments.db")

	deps, err := BuildDependencies(context.Background(), cfg)
	require.NoError(t, err)
	defer deps.Close()

	assert.NotNil(t, deps.DB)
	records, err := deps.Store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBuildDependencies_UnknownProviders(t *testing.T) {
	path, _ := writeConfig(t)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	cfg.Calendar.Provider = "outlook"
	_, err = BuildDependencies(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown calendar provider")

	cfg.Calendar.Provider = "none"
	cfg.Notifier.Provider = "pager"
	_, err = BuildDependencies(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown notifier provider")
}

func TestRoutes(t *testing.T) {
	path, date := writeConfig(t)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	deps, err := BuildDependencies(context.Background(), cfg)
	require.NoError(t, err)
	defer deps.Close()

	r := mux.NewRouter()
	SetupMiddleware(r)
	RegisterRoutes(r, deps)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	body, _ := json.Marshal(map[string]string{
		"fullName": "Asha Rao",
		"email":    "asha@example.com",
		"phone":    "9876543210",
		"date":     date,
		"time":     "11:00",
	})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/appointment", bytes.NewReader(body)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/availability?date="+date+"&time=11:00", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":false`)
}

func TestCLI(t *testing.T) {
	path, date := writeConfig(t)
	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cli := NewCLI()
		cli.Writer = &out
		err := cli.Run(append([]string{"appointments", "--config", path}, args...))
		return out.String(), err
	}

	out, err := run("book", "--name", "Asha Rao", "--email", "asha@example.com", "--phone", "9876543210", "--date", date, "--time", "2 PM")
	require.NoError(t, err)
	assert.Contains(t, out, "Appointment booked for Asha Rao on "+date+" at 14:00.")
	assert.Contains(t, out, "calendar: skipped")

	out, err = run("list")
	require.NoError(t, err)
	assert.Contains(t, out, date+" 14:00  Asha Rao <asha@example.com>")

	out, err = run("availability", "--date", date, "--time", "14:00")
	require.NoError(t, err)
	assert.Contains(t, out, "Next free slot: 15:00")

	_, err = run("book", "--name", "Ravi", "--email", "asha@example.com", "--phone", "9876543210", "--date", date, "--time", "16:00")
	assert.ErrorContains(t, err, "already exists")

	out, err = run("reschedule", "--email", "asha@example.com", "--date", date, "--time", "16:00")
	require.NoError(t, err)
	assert.Contains(t, out, "rescheduled to "+date+" at 16:00")

	out, err = run("cancel", "--email", "asha@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Appointment for asha@example.com cancelled.")

	_, err = run("cancel", "--email", "asha@example.com")
	assert.ErrorContains(t, err, "no appointment found")
}
