// Command sectors rebalances patrol sector workload on a square grid and
// smooths the resulting sectors onto the street network.
//
//	sectors [flags] [run]              run the configured plan and write reports
//	sectors [flags] migrate up|down|status
//	sectors [flags] inspect            serve stored runs over HTTP
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/sector.balance/internal/config"
	"github.com/banshee-data/sector.balance/internal/input"
	"github.com/banshee-data/sector.balance/internal/version"
)

var (
	configPath  = flag.String("config", "", "Tuning config JSON (default: "+config.DefaultConfigPath+" when present)")
	regionsPath = flag.String("regions", "", "GeoJSON FeatureCollection of base region polygons")
	regionProp  = flag.String("region-property", input.DefaultRegionProperty, "Feature property holding the region id")
	eventsPath  = flag.String("events", "", "CSV of incident records")
	streetsPath = flag.String("streets", "", "GeoJSON street centrelines (optional)")

	cellSize      = flag.String("cell-size", "", "Override cell_size, e.g. 100m or 0.001deg")
	snapTolerance = flag.String("snap-tolerance", "", "Override snap_tolerance, e.g. 50m")

	colSeverity = flag.String("col-severity", input.DefaultEventColumns().Severity, "Events column with the severity code")
	colResponse = flag.String("col-response", input.DefaultEventColumns().Response, "Events column with the response duration")
	colOutcome  = flag.String("col-outcome", input.DefaultEventColumns().Outcome, "Events column with the disposition")
	colLon      = flag.String("col-lon", input.DefaultEventColumns().Lon, "Events column with the x coordinate")
	colLat      = flag.String("col-lat", input.DefaultEventColumns().Lat, "Events column with the y coordinate")

	outDir   = flag.String("out", "sector-report", "Directory for report files")
	noReport = flag.Bool("no-report", false, "Skip writing report files")
	label    = flag.String("label", "", "Run label, also used as the report file prefix")
	dbPath   = flag.String("db", "sectors.db", "SQLite results database (empty to skip saving)")
	listen   = flag.String("listen", "localhost:8080", "Listen address for inspect")

	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("sectors %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := flag.Args()
	cmd := "run"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runCommand(ctx)
	case "migrate":
		err = migrateCommand(args)
	case "inspect":
		err = inspectCommand(ctx)
	case "help":
		flag.Usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func eventColumns() input.EventColumns {
	return input.EventColumns{
		Severity: *colSeverity,
		Response: *colResponse,
		Outcome:  *colOutcome,
		Lon:      *colLon,
		Lat:      *colLat,
	}
}
