package store

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/sector.balance/internal/httputil"
	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts the tsweb debug index on mux with a tailsql
// console over the results database, a run listing and a backup download.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(s.path), s.DB, &tailsql.DBOptions{
		Label: "Sector runs",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("runs", "Stored balancing runs (JSON)", http.HandlerFunc(s.handleRuns))
	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(s.handleBackup))
	return nil
}

type runJSON struct {
	ID             string   `json:"id"`
	CreatedAt      string   `json:"created_at"`
	Label          string   `json:"label"`
	Cells          int      `json:"cells"`
	Events         int      `json:"events"`
	Moved          int      `json:"moved"`
	VarianceBefore *float64 `json:"variance_before"`
	VarianceAfter  *float64 `json:"variance_after"`
	VarianceScore  *float64 `json:"variance_score"`
}

func (s *Store) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Runs(r.Context())
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	out := make([]runJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, runJSON{
			ID:             run.ID,
			CreatedAt:      run.CreatedAt.Format(time.RFC3339),
			Label:          run.Label,
			Cells:          run.Cells,
			Events:         run.Events,
			Moved:          run.Moved,
			VarianceBefore: finitePtr(run.VarianceBefore),
			VarianceAfter:  finitePtr(run.VarianceAfter),
			VarianceScore:  finitePtr(run.VarianceScore),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (s *Store) handleBackup(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("sectors-backup-%d.db", s.clock.Now().Unix())
	backupPath := filepath.Join(os.TempDir(), name)
	if _, err := s.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(backupPath); err != nil {
			logf("failed to remove backup file: %v", err)
		}
	}()

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
	w.Header().Set("Content-Type", "application/gzip")
	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, backupFile); err != nil {
		logf("stream backup: %v", err)
	}
}

func finitePtr(v float64) *float64 {
	if !nullFloat(v).Valid {
		return nil
	}
	return &v
}
