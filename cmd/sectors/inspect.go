package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/banshee-data/sector.balance/internal/httputil"
	"github.com/banshee-data/sector.balance/internal/report"
	"github.com/banshee-data/sector.balance/internal/store"
	"github.com/paulmach/orb/geojson"
)

func inspectCommand(ctx context.Context) error {
	if *dbPath == "" {
		return errors.New("-db is required")
	}
	st, err := store.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer st.Close()
	if err := st.MigrateUp(store.MigrationsFS()); err != nil {
		return err
	}

	mux, err := newInspectMux(st)
	if err != nil {
		return err
	}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("got request %q", r.URL.Path)
		mux.ServeHTTP(w, r)
	})
	server := &http.Server{
		Addr:              *listen,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("serving %s on http://%s/ (debug at /debug/)", *dbPath, *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Printf("Graceful shutdown complete")
	return nil
}

func newInspectMux(st *store.Store) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	if err := st.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	mux.HandleFunc("GET /{$}", chartHandler(st))
	mux.HandleFunc("GET /sectors.geojson", sectorsHandler(st))
	return mux, nil
}

// resolveRun picks the run named by ?run=, or the latest run.
func resolveRun(st *store.Store, r *http.Request) (*store.Run, error) {
	if id := r.URL.Query().Get("run"); id != "" {
		return st.GetRun(r.Context(), id)
	}
	return st.LatestRun(r.Context())
}

func runError(w http.ResponseWriter, err error) {
	httputil.WriteLookupError(w, err, store.ErrRunNotFound)
}

func chartHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := resolveRun(st, r)
		if err != nil {
			runError(w, err)
			return
		}
		totals, err := st.RegionTotals(r.Context(), run.ID)
		if err != nil {
			runError(w, err)
			return
		}
		bars := make([]report.RegionBar, len(totals))
		for i, t := range totals {
			bars[i] = report.RegionBar{Region: t.Region, Before: t.Before, After: t.After}
		}
		subtitle := fmt.Sprintf("run %s %s, %d cells moved, variance %.2f → %.2f",
			run.ID, run.CreatedAt.Format(time.RFC3339), run.Moved, run.VarianceBefore, run.VarianceAfter)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := report.RenderWorkloadChart(w, bars, "Sector workload", subtitle); err != nil {
			log.Printf("render chart: %v", err)
		}
	}
}

func sectorsHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := resolveRun(st, r)
		if err != nil {
			runError(w, err)
			return
		}
		records, err := st.Sectors(r.Context(), run.ID)
		if err != nil {
			runError(w, err)
			return
		}
		fc := geojson.NewFeatureCollection()
		for _, rec := range records {
			if rec.GeoJSON == "" {
				continue
			}
			g, err := geojson.UnmarshalGeometry([]byte(rec.GeoJSON))
			if err != nil {
				httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("sector %d: %v", rec.Region, err))
				return
			}
			f := geojson.NewFeature(g.Geometry())
			f.Properties["Sector"] = rec.Region
			f.Properties["workload"] = rec.Workload
			f.Properties["run"] = run.ID
			fc.Append(f)
		}
		httputil.WriteGeoJSON(w, fc)
	}
}
