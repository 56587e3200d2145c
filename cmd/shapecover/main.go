package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	shapecover "github.com/reoring/shapecover"
	"github.com/reoring/shapecover/codec"
	"github.com/reoring/shapecover/soak"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "check":
		checkCmd(os.Args[2:])
	case "paths":
		pathsCmd(os.Args[2:])
	case "soak":
		soakCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "shapecover CLI\n\nUsage:\n  shapecover check -schema schema.(json|yaml) [-require-coverage] [-fail-fast] doc.json ...\n  shapecover paths -schema schema.(json|yaml)\n  shapecover soak -config soak.yaml -url http://host/status")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "shapecover:", err)
	os.Exit(1)
}

func loadSchema(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return codec.DecodeSchemaYAML(data)
	default:
		return codec.DecodeSchema(data)
	}
}

func checkCmd(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	var schemaPath string
	var requireCoverage, failFast bool
	fs.StringVar(&schemaPath, "schema", "", "schema file (json or yaml)")
	fs.BoolVar(&requireCoverage, "require-coverage", false, "fail unless every schema branch was exercised")
	fs.BoolVar(&failFast, "fail-fast", false, "stop each document at its first mismatch")
	_ = fs.Parse(args)
	if schemaPath == "" || fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	schema, err := loadSchema(schemaPath)
	if err != nil {
		fatal(err)
	}
	ledger := shapecover.NewLedger()
	if err := ledger.RegisterRequirements(schema); err != nil {
		fatal(err)
	}

	ctx := context.Background()
	failed := false
	for _, docPath := range fs.Args() {
		data, err := os.ReadFile(docPath)
		if err != nil {
			fatal(err)
		}
		doc, err := codec.DecodeDocument(data)
		if err != nil {
			fatal(err)
		}
		ok, iss, err := shapecover.Match(ctx, schema, doc, shapecover.MatchOpt{
			FailFast: failFast,
			Ledger:   ledger,
		})
		if err != nil {
			fatal(err)
		}
		if ok {
			fmt.Printf("%s: ok\n", docPath)
			continue
		}
		failed = true
		fmt.Printf("%s: %d mismatch(es)\n", docPath, len(iss))
		for _, it := range iss {
			fmt.Printf("  %s at %s: %s\n", it.Code, it.Path, it.Message)
		}
	}

	if requireCoverage {
		if uncovered := ledger.Uncovered(); len(uncovered) > 0 {
			failed = true
			fmt.Printf("uncovered schema paths (%d):\n", len(uncovered))
			for _, p := range uncovered {
				fmt.Println("  " + p)
			}
		}
	}
	if failed {
		os.Exit(1)
	}
}

func pathsCmd(args []string) {
	fs := flag.NewFlagSet("paths", flag.ExitOnError)
	var schemaPath string
	fs.StringVar(&schemaPath, "schema", "", "schema file (json or yaml)")
	_ = fs.Parse(args)
	if schemaPath == "" {
		fs.Usage()
		os.Exit(2)
	}
	schema, err := loadSchema(schemaPath)
	if err != nil {
		fatal(err)
	}
	paths, err := shapecover.RequiredPaths(schema)
	if err != nil {
		fatal(err)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
}

func soakCmd(args []string) {
	fs := flag.NewFlagSet("soak", flag.ExitOnError)
	var configPath, url string
	fs.StringVar(&configPath, "config", "", "soak config file (yaml)")
	fs.StringVar(&url, "url", "", "status endpoint returning a JSON document")
	_ = fs.Parse(args)
	if configPath == "" || url == "" {
		fs.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		fatal(err)
	}
	cfg, err := soak.ParseConfig(data)
	if err != nil {
		fatal(err)
	}
	if cfg.Schema == "" {
		fatal(fmt.Errorf("soak config: schema file not set"))
	}
	schema, err := loadSchema(cfg.Schema)
	if err != nil {
		fatal(err)
	}

	fetch := func(ctx context.Context) (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("status endpoint returned %s", resp.Status)
		}
		return codec.DecodeDocumentReader(resp.Body)
	}

	ledger := shapecover.NewLedger()
	w, err := soak.New(schema, ledger, fetch, nil, cfg.Options())
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := w.Run(ctx); err != nil {
		fatal(err)
	}

	for _, m := range w.Metrics() {
		fmt.Printf("%s: %d\n", m.Name, m.Value)
	}
	ok := w.Check()
	if cfg.RequireCoverage {
		if uncovered := ledger.Uncovered(); len(uncovered) > 0 {
			ok = false
			fmt.Printf("uncovered schema paths (%d):\n", len(uncovered))
			for _, p := range uncovered {
				fmt.Println("  " + p)
			}
		}
	}
	if !ok {
		os.Exit(1)
	}
}
