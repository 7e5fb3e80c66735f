package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	_ "modernc.org/sqlite"

	"github.com/mbell/sensorium/internal/analysis"
	"github.com/mbell/sensorium/internal/api"
	"github.com/mbell/sensorium/internal/forecast"
	"github.com/mbell/sensorium/internal/ingest"
	"github.com/mbell/sensorium/internal/models"
	"github.com/mbell/sensorium/internal/store"
)

var cli struct {
	DB           string        `env:"SENSORIUM_DB" default:"data/sensorium.db" help:"Path to SQLite database."`
	Port         string        `env:"SENSORIUM_PORT" default:"8080" help:"HTTP server port."`
	HubURL       string        `env:"SENSORIUM_HUB_URL" default:"http://sensorhub.local:5000" help:"Base URL of the sensor hub API."`
	Devices      []string      `env:"SENSORIUM_DEVICES" default:"pi-office,pi-garage" help:"Device ids to poll."`
	PollInterval time.Duration `env:"SENSORIUM_POLL_INTERVAL" default:"5m" help:"Hub polling interval."`
	Timezone     string        `env:"SENSORIUM_TZ" default:"America/New_York" help:"Display timezone for forecasts."`
	NoPoll       bool          `help:"Disable hub polling (server only, for local dev)."`
	Once         bool          `help:"Ingest once and exit."`
}

// defaultDeployments seed the database on first start so a fresh install has
// something to chart as soon as the hub is polled.
var defaultDeployments = []models.Deployment{
	{DeviceID: "pi-office", Name: "Office", Location: "upstairs office", StartedAt: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)},
	{DeviceID: "pi-garage", Name: "Garage", Location: "detached garage", StartedAt: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)},
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("sensorium"),
		kong.Description("Sensor monitoring dashboard with statistical analysis."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)
	kctx.FatalIfErrorf(run())
}

func run() error {
	db, err := sql.Open("sqlite", cli.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	loc, err := time.LoadLocation(cli.Timezone)
	if err != nil {
		log.Printf("warning: could not load timezone %s, using UTC: %v", cli.Timezone, err)
		loc = time.UTC
	}

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		return err
	}
	log.Println("database migrated")

	for _, dep := range defaultDeployments {
		if err := st.UpsertDeployment(dep); err != nil {
			return err
		}
	}
	log.Println("deployments seeded")

	hub := ingest.NewHubClient(cli.HubURL)
	scheduler := ingest.NewScheduler(st, hub, cli.Devices, cli.PollInterval)
	runner := analysis.NewRunner(analysis.NewRuntime(), st)
	forecaster := forecast.New(st, loc, nil)
	server := api.NewServer(st, runner, forecaster, cli.Port, loc)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cli.Once {
		log.Println("running single ingestion")
		if err := scheduler.IngestOnce(ctx); err != nil {
			return err
		}
		log.Println("done")
		return nil
	}

	if !cli.NoPoll {
		go scheduler.Run(ctx)
	} else {
		log.Println("polling disabled (--no-poll)")
	}

	log.Printf("starting server on :%s", cli.Port)
	return server.Run(ctx)
}
