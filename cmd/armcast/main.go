// Command armcast reads pose telemetry from an articulated measurement arm
// and republishes each update as JSON on a ZeroMQ PUB socket, with optional
// SQLite capture, a UDP mirror, and an HTTP status API.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/meridian-cmm/armcast/internal/api"
	"github.com/meridian-cmm/armcast/internal/armdb"
	"github.com/meridian-cmm/armcast/internal/armlink"
	"github.com/meridian-cmm/armcast/internal/config"
	"github.com/meridian-cmm/armcast/internal/relay"
	"github.com/meridian-cmm/armcast/internal/telemetry"
	"github.com/meridian-cmm/armcast/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode (replay fixtures instead of opening the driver link)")
	configPath = flag.String("config", "", "Path to JSON config file")
	listen     = flag.String("listen", "", "Listen address (overrides config)")
	device     = flag.String("device", "", "Driver link device (overrides config, ignored in dev mode)")
	publish    = flag.String("publish", "", "PUB endpoint (overrides config)")
	noStore    = flag.Bool("no-store", false, "Disable SQLite sample capture")
	armModel   = flag.String("arm-model", "", "Arm model name for the session record")
	armSerial  = flag.String("arm-serial", "", "Arm serial number for the session record")
	notes      = flag.String("notes", "", "Session notes")
	fixtures   = flag.String("fixtures", "fixtures.txt", "Fixture file for dev mode, one telemetry line per row (CSV ts,x,y,z,a,b,c,j1..j7,buttons,flags or a JSON object)")
)

func main() {
	// 'armcast migrate <action>' manages the schema and never starts the relay
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		migrateFlags := flag.NewFlagSet("migrate", flag.ExitOnError)
		dbPath := migrateFlags.String("db", "armcast.db", "Path to the SQLite store")
		migrateFlags.Parse(os.Args[2:])
		armdb.RunMigrateCommand(migrateFlags.Args(), *dbPath)
		return
	}

	flag.Parse()

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	listenAddr := cfg.GetListenAddr()
	if *listen != "" {
		listenAddr = *listen
	}
	linkDevice := cfg.GetLinkDevice()
	if *device != "" {
		linkDevice = *device
	}
	publishEndpoint := cfg.GetPublishEndpoint()
	if *publish != "" {
		publishEndpoint = *publish
	}

	var armMux armlink.ArmMuxer
	if *devMode {
		data, err := os.ReadFile(*fixtures)
		if err != nil {
			log.Fatalf("failed to open fixtures file: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		armMux = armlink.NewMockArmMux(lines, 20*time.Millisecond)
	} else {
		var err error
		armMux, err = armlink.NewSerialArmMux(linkDevice, cfg.LinkOptions())
		if err != nil {
			log.Fatalf("failed to open arm link: %v", err)
		}
	}
	defer armMux.Close()

	if err := armMux.Initialize(); err != nil {
		log.Fatalf("failed to initialize arm: %v", err)
	}
	log.Printf("initialized arm link on %s (armcast %s)", linkDevice, version.Version)

	identity := telemetry.ArmIdentity{
		ModelName:     *armModel,
		SerialNumber:  *armSerial,
		DriverVersion: version.Version,
	}

	var db *armdb.DB
	var sessionID string
	if !*noStore {
		var err error
		db, err = armdb.NewDB(cfg.GetDBPath())
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		sessionID, err = db.BeginSession(identity, *notes)
		if err != nil {
			log.Fatalf("failed to begin session: %v", err)
		}
		log.Printf("recording session %s", sessionID)
		defer func() {
			if err := db.EndSession(sessionID); err != nil {
				log.Printf("failed to end session: %v", err)
			}
		}()
	}

	publisher, err := relay.NewPublisher(publishEndpoint, cfg.GetPublishTopic(), nil)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	defer publisher.Close()

	var mirror *relay.UDPMirror
	if addr := cfg.GetMirrorAddress(); addr != "" {
		mirror, err = relay.NewUDPMirror(addr, cfg.GetMirrorLogInterval())
		if err != nil {
			log.Fatalf("failed to create UDP mirror: %v", err)
		}
		defer mirror.Close()
	}

	var store relay.SampleStore
	if db != nil {
		store = db
	}
	service := relay.NewService(relay.ServiceConfig{
		Source:           armMux,
		Publisher:        publisher,
		Mirror:           mirror,
		Store:            store,
		SessionID:        sessionID,
		ArmID:            *armSerial,
		FirstUpdateGrace: cfg.GetFirstUpdateGrace(),
		StallThreshold:   cfg.GetStallThreshold(),
		GapWarn:          cfg.GetGapWarn(),
		WarnInterval:     cfg.GetWarnInterval(),
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the driver link
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := armMux.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor arm link: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// relay loop: parse, stamp, publish, record
	wg.Add(1)
	go func() {
		defer wg.Done()
		service.Run(ctx)
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(armMux, db, service, identity, publisher.Stats).ServeMux()
		armMux.AttachAdminRoutes(mux)
		if db != nil {
			db.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    listenAddr,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("HTTP API listening on %s", listenAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
