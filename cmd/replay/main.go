package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"parkingserver/internal/config"
	"parkingserver/internal/dto"
	"parkingserver/internal/logger"
	"parkingserver/internal/repository/sqlite"
	"parkingserver/internal/service"
	"parkingserver/internal/service/ai"
	"parkingserver/internal/service/publisher"
	"parkingserver/internal/service/source"
	"parkingserver/internal/service/tracking"
)

// discardPublisher is used when -publish is off.
type discardPublisher struct{}

func (discardPublisher) Publish(string, dto.StatusSnapshot) {}

func main() {
	cfg := config.Load()

	dir := flag.String("dir", cfg.SourceDir, "Directory laid out as <day>/<camera>/<image>")
	camerasFile := flag.String("cameras", cfg.CamerasFile, "Optional YAML cameras file")
	detectorURL := flag.String("detector", cfg.DetectorURL, "Detector endpoint")
	dbPath := flag.String("db", "", "Record snapshot history in this database")
	publish := flag.Bool("publish", false, "Post slot updates to PUBLISH_URL")
	asJSON := flag.Bool("json", false, "Print the final snapshots as JSON")
	verbose := flag.Bool("v", false, "Log every frame")
	flag.Parse()

	cfg.SourceDir = *dir
	cfg.CamerasFile = *camerasFile
	cfg.DetectorURL = *detectorURL
	cfg.FrameDelay = 0
	cfg.OverlayInterval = 0

	if err := cfg.LoadCameras(); err != nil {
		log.Fatalf("Failed to load cameras: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level := logger.LevelWarning
	if *verbose {
		level = logger.LevelInfo
	}
	appLogger := logger.NewWriterLogger(os.Stderr, level)

	src, err := source.NewDirectorySource(cfg.SourceDir, cfg.Cameras, appLogger)
	if err != nil {
		log.Fatalf("Failed to scan %s: %v", cfg.SourceDir, err)
	}
	fmt.Fprintf(os.Stderr, "Replaying %d frames from %s\n", src.Len(), cfg.SourceDir)

	registry := tracking.NewRegistry(tracking.Options{
		Capacity:       cfg.SlotCapacity,
		MatchThreshold: cfg.MatchThreshold,
	})

	var pub service.Publisher = discardPublisher{}
	var realPublisher *publisher.Publisher
	if *publish {
		realPublisher = publisher.NewPublisher(cfg, appLogger, nil)
		pub = realPublisher
	}

	manager := service.NewManager(ai.NewDetectorService(cfg, appLogger), registry, pub, cfg, appLogger)

	if *dbPath != "" {
		db, err := sqlite.New(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		manager.WithHistory(sqlite.NewSnapshotRepository(db))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := manager.Run(ctx, src); err != nil {
		log.Fatalf("Replay failed: %v", err)
	}

	if realPublisher != nil && !realPublisher.Drain(cfg.PublishTimeout+cfg.PublishTimeout) {
		fmt.Fprintln(os.Stderr, "⚠️  Some status updates were still in flight")
	}

	snapshots := tracking.NewAggregator(registry).All()

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snapshots); err != nil {
			log.Fatalf("Failed to encode snapshots: %v", err)
		}
		return
	}

	fmt.Printf("\n📊 Final occupancy:\n")
	for _, snap := range snapshots {
		fmt.Printf("   - %s: total %d | free %d | occupied %d\n",
			snap.Camera, snap.TotalCount, snap.FreeCount, snap.OccupiedCount)
	}
	if len(snapshots) == 0 {
		fmt.Println("   No cameras were processed")
	}
}
