// Command extract fetches census dataflows from the ABS Data API and saves
// them to the raw area of the data directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/auslabs/abslake/pkg/abs"
	"github.com/auslabs/abslake/pkg/census"
	"github.com/auslabs/abslake/pkg/dataset"
	"github.com/auslabs/abslake/pkg/logger"
	"github.com/auslabs/abslake/pkg/metrics"
)

const (
	defaultDataDir = "./data"
	defaultPeriod  = "2021"
)

// presets map short names to the census dataflows the pipelines consume.
var presets = map[string]struct {
	dataflowID string
	rawName    string
}{
	"g01": {census.DataflowPopulation, census.RawPopulationName},
	"g19": {census.DataflowHealth, census.RawHealthName},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	dataDirFlag := flag.String("data-dir", defaultDataDir, "data directory root (or set ABSLAKE_DATA_DIR env var)")
	baseURLFlag := flag.String("api-url", abs.DefaultBaseURL, "ABS Data API base URL (or set ABSLAKE_API_URL env var)")
	dataflowsFlag := flag.StringSlice("dataflow", []string{"g01", "g19"}, "dataflows to extract: g01, g19, or an explicit dataflow id")
	startPeriodFlag := flag.String("start-period", defaultPeriod, "start period for the data query")
	endPeriodFlag := flag.String("end-period", defaultPeriod, "end period for the data query")
	timeoutFlag := flag.Duration("timeout", abs.DefaultTimeout, "HTTP timeout per request")
	flag.Parse()

	// Load .env file. godotenv does not override existing env vars, so
	// process env and explicit exports take precedence.
	_ = godotenv.Load()

	if envDataDir := os.Getenv("ABSLAKE_DATA_DIR"); envDataDir != "" {
		*dataDirFlag = envDataDir
	}
	if envBaseURL := os.Getenv("ABSLAKE_API_URL"); envBaseURL != "" {
		*baseURLFlag = envBaseURL
	}

	log := logger.New(*verboseFlag)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := <-sigCh
		log.Info("extract: received signal", "signal", sig.String())
		cancel()
	}()

	client, err := abs.New(abs.Config{
		Logger:  log,
		BaseURL: *baseURLFlag,
		Timeout: *timeoutFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create api client: %w", err)
	}

	store, err := dataset.NewStore(dataset.StoreConfig{
		Logger:  log,
		DataDir: *dataDirFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range *dataflowsFlag {
		dataflowID, rawName := resolveTarget(name)
		g.Go(func() error {
			log.Info("extract: fetching dataflow", "dataflow", dataflowID, "raw_name", rawName)
			batch, err := client.Data(ctx, abs.DataRequest{
				DataflowID:  dataflowID,
				StartPeriod: *startPeriodFlag,
				EndPeriod:   *endPeriodFlag,
			})
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", dataflowID, err)
			}
			if err := store.SaveRaw(rawName, batch); err != nil {
				return fmt.Errorf("failed to save %s: %w", rawName, err)
			}
			metrics.ExtractRows.WithLabelValues(dataflowID).Add(float64(batch.Len()))
			log.Info("extract: saved raw extract", "dataflow", dataflowID, "raw_name", rawName, "rows", batch.Len())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("extract: completed", "dataflows", len(*dataflowsFlag), "duration", time.Since(start))
	return nil
}

// resolveTarget maps a preset name or explicit dataflow id to the dataflow to
// fetch and the raw artifact name to save it under.
func resolveTarget(name string) (dataflowID, rawName string) {
	if preset, ok := presets[strings.ToLower(name)]; ok {
		return preset.dataflowID, preset.rawName
	}
	return name, strings.ToLower(name)
}
