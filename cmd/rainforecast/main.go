package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/hujanlab/rainforecast/internal/api"
	"github.com/hujanlab/rainforecast/internal/dataset"
	"github.com/hujanlab/rainforecast/internal/estimate"
	"github.com/hujanlab/rainforecast/internal/ingest"
	"github.com/hujanlab/rainforecast/internal/model"
	"github.com/hujanlab/rainforecast/internal/models"
	"github.com/hujanlab/rainforecast/internal/profile"
	"github.com/hujanlab/rainforecast/internal/store"
)

type CLI struct {
	Env      kongdotenv.ENVFileConfig `kong:"optional,name=env-file,help='Load environment from a dotenv file.'"`
	DB       string                   `help:"Path to the sqlite database." default:"data/rainforecast.db" env:"RAINFORECAST_DB"`
	ModelDir string                   `help:"Directory holding model artifacts." default:"data/models" env:"RAINFORECAST_MODEL_DIR"`
	Verbose  bool                     `short:"v" help:"Enable debug logging."`

	Ingest  IngestCmd  `cmd:"" help:"Fetch, clean, and store a CSV dataset."`
	Train   TrainCmd   `cmd:"" help:"Train the rain classifier and volume regressor on stored data."`
	Predict PredictCmd `cmd:"" help:"Predict rain for a date."`
	Serve   ServeCmd   `cmd:"" help:"Run the HTTP API server."`
}

type appContext struct {
	store  *store.Store
	models model.Store
	log    *slog.Logger
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("rainforecast"),
		kong.Description("Rain prediction pipeline: dataset cleaning, model training, and date-based forecasts."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := os.MkdirAll(filepath.Dir(cli.DB), 0o755); err != nil {
		ctx.FatalIfErrorf(err)
	}
	db, err := sql.Open("sqlite", cli.DB)
	ctx.FatalIfErrorf(err)
	defer db.Close()

	st := store.New(db)
	ctx.FatalIfErrorf(st.Migrate())

	app := &appContext{
		store:  st,
		models: model.NewFileStore(cli.ModelDir),
		log:    log,
	}
	ctx.FatalIfErrorf(ctx.Run(app))
}

type IngestCmd struct {
	Source string `arg:"" help:"CSV file path, http(s):// URL, or ftp:// URL."`
}

func (c *IngestCmd) Run(app *appContext) error {
	observations, report, err := ingest.NewFetcher().Fetch(c.Source)
	if err != nil {
		return err
	}
	if err := app.store.SaveObservations(observations); err != nil {
		return err
	}

	app.log.Info("dataset ingested",
		"source", c.Source,
		"rows_in", report.RowsIn,
		"rows_kept", report.RowsKept,
		"dropped_dates", report.DroppedDates,
		"stations", dataset.Stations(observations))
	for col, n := range report.Nulled {
		app.log.Debug("out-of-range values nulled", "column", col, "count", n)
	}
	return nil
}

type TrainCmd struct{}

func (c *TrainCmd) Run(app *appContext) error {
	observations, err := app.store.LoadObservations()
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		return fmt.Errorf("no dataset ingested, run `rainforecast ingest` first")
	}

	rows := dataset.EngineerFeatures(observations)
	metrics, err := model.NewTrainer(app.models, app.log).Train(rows)
	if err != nil {
		return err
	}

	sum, err := app.models.Checksum()
	if err != nil {
		return err
	}

	fmt.Printf("trained on %d rows (%d rainy)\n", metrics.Rows, metrics.RainyRows)
	fmt.Printf("classifier  accuracy=%.3f roc_auc=%.3f\n", metrics.Accuracy, metrics.ROCAUC)
	if metrics.RegressorTrained {
		fmt.Printf("regressor   mae=%.2fmm r2=%.3f\n", metrics.MAE.Float64, metrics.R2.Float64)
	} else {
		fmt.Println("regressor   skipped, too few rainy rows")
	}
	fmt.Printf("checksum    %s\n", sum)
	return nil
}

type PredictCmd struct {
	Date   string             `help:"Target date (YYYY-MM-DD), defaults to tomorrow." placeholder:"DATE"`
	Manual map[string]float64 `help:"Override synthesized feature values, e.g. --manual Tavg=24.5;RH_avg=90." mapsep:";"`
}

func (c *PredictCmd) Run(app *appContext) error {
	date := time.Now().AddDate(0, 0, 1)
	if c.Date != "" {
		parsed, err := time.Parse("2006-01-02", c.Date)
		if err != nil {
			return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
		}
		date = parsed
	}

	observations, err := app.store.LoadObservations()
	if err != nil {
		return err
	}
	profiles := map[int]models.MonthStats{}
	if len(observations) > 0 {
		profiles = profile.NewBuilder().Build(dataset.EngineerFeatures(observations))
	}

	feats := estimate.New(profiles).Synthesize(date)
	for name, v := range c.Manual {
		feats[name] = v
	}
	row := estimate.BuildRow(date, feats)

	pred, err := model.NewPredictor(app.models).Predict(row)
	if err != nil {
		return err
	}

	verdict := estimate.ClassifyVerdict(pred.Probability)
	window := estimate.Window(pred, int(date.Month()))

	fmt.Printf("%s  %s (%.0f%% rain)\n", date.Format("2006-01-02"), verdict.Label, pred.Probability*100)
	if pred.VolumeMM.Valid {
		fmt.Printf("volume      %.1f mm (%s)\n", pred.VolumeMM.Float64, estimate.Intensity(pred))
	} else {
		fmt.Printf("intensity   %s\n", estimate.Intensity(pred))
	}
	fmt.Printf("window      %s\n", window.Description)
	fmt.Printf("advice      %s\n", verdict.Advice)
	return nil
}

type ServeCmd struct {
	Port string `help:"HTTP server port." default:"8080" env:"RAINFORECAST_PORT"`
}

func (c *ServeCmd) Run(app *appContext) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(app.store, app.models, c.Port, app.log)
	return srv.Run(ctx)
}
