// Command explore discovers census dataflows on the ABS Data API.
//
//	explore search <term>         substring search over dataflow ids and names
//	explore census                census dataflows, filtered by --year / --geography
//	explore topic <topic>         dataflows by topic category (health, housing, ...)
//	explore describe <dataflow>   dimensions and codelists of one dataflow
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/auslabs/abslake/pkg/abs"
	"github.com/auslabs/abslake/pkg/explorer"
	"github.com/auslabs/abslake/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	baseURLFlag := flag.String("api-url", abs.DefaultBaseURL, "ABS Data API base URL (or set ABSLAKE_API_URL env var)")
	yearFlag := flag.String("year", "", "census year filter for the census command (e.g. 2021)")
	geographyFlag := flag.String("geography", "", "geography level filter for the census command (e.g. SA2)")
	flag.Parse()

	// Load .env file. godotenv does not override existing env vars, so
	// process env and explicit exports take precedence.
	_ = godotenv.Load()

	if envBaseURL := os.Getenv("ABSLAKE_API_URL"); envBaseURL != "" {
		*baseURLFlag = envBaseURL
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("a command is required: search, census, topic, describe")
	}

	log := logger.New(*verboseFlag)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := abs.New(abs.Config{
		Logger:  log,
		BaseURL: *baseURLFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create api client: %w", err)
	}
	exp, err := explorer.New(explorer.Config{
		Logger: log,
		Client: client,
	})
	if err != nil {
		return fmt.Errorf("failed to create explorer: %w", err)
	}

	switch args[0] {
	case "search":
		if len(args) < 2 {
			return fmt.Errorf("search requires a term")
		}
		dataflows, err := exp.Search(ctx, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		return printDataflows(dataflows)

	case "census":
		dataflows, err := exp.FindCensusDataflows(ctx, *yearFlag, *geographyFlag)
		if err != nil {
			return err
		}
		return printDataflows(dataflows)

	case "topic":
		if len(args) < 2 {
			return fmt.Errorf("topic requires a topic name")
		}
		dataflows, err := exp.FindByTopic(ctx, args[1])
		if err != nil {
			return err
		}
		return printDataflows(dataflows)

	case "describe":
		if len(args) < 2 {
			return fmt.Errorf("describe requires a dataflow id")
		}
		desc, err := exp.Describe(ctx, args[1])
		if err != nil {
			return err
		}
		return printDescription(desc)

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printDataflows(dataflows []abs.Dataflow) error {
	if len(dataflows) == 0 {
		fmt.Println("no dataflows found")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tNAME")
	for _, df := range dataflows {
		fmt.Fprintf(w, "%s\t%s\t%s\n", df.ID, df.Version, df.Name)
	}
	return w.Flush()
}

func printDescription(desc *explorer.Description) error {
	fmt.Printf("Dataflow: %s\n\n", desc.DataflowID)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POS\tDIMENSION\tCODELIST")
	for _, dim := range desc.Dimensions {
		codelist := dim.Codelist
		if codelist == "" {
			codelist = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", dim.Position, dim.ID, codelist)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, cl := range desc.Codelists {
		fmt.Printf("\nCodelist %s (%d codes)\n", cl.ID, cl.Count)
		for _, code := range cl.Samples {
			fmt.Printf("  %s\t%s\n", code.ID, code.Name)
		}
	}
	return nil
}
