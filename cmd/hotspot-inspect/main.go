// Command hotspot-inspect runs a feed dump through coordinate validation and
// layer building and reports what a map session would render: kept and
// dropped counts, drop reasons, hexagon cells and marker counts.
//
// Usage:
//
//	go run ./cmd/hotspot-inspect -file data/flattened.json
//	go run ./cmd/hotspot-inspect -url http://localhost:3000/api/flattened -topic potholes
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/couchcryptid/civic-hotspot-service/internal/adapter/feed"
	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
	"github.com/couchcryptid/civic-hotspot-service/internal/layers"
)

type options struct {
	file       string
	url        string
	topic      string
	cellRadius float64
	jsonOut    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.file, "file", "", "path to a JSON feed dump")
	flag.StringVar(&opts.url, "url", "", "feed base URL to fetch instead of a file")
	flag.StringVar(&opts.topic, "topic", "", "topic appended to -url")
	flag.Float64Var(&opts.cellRadius, "cell-radius", layers.DefaultStyle().CellRadius, "hexagon radius in meters")
	flag.BoolVar(&opts.jsonOut, "json", false, "print the built LayerSet as JSON")
	flag.Parse()

	if (opts.file == "") == (opts.url == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -file or -url is required")
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(context.Background(), opts, os.Stdout, os.Stderr))
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) int {
	raws, err := load(ctx, opts)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}

	style := layers.DefaultStyle()
	style.CellRadius = opts.cellRadius
	if err := style.Validate(); err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}

	result := domain.ValidateBatch(raws)
	set := layers.NewBuilder(nil).Build(layers.BuildInput{
		Token:     1,
		DataToken: 1,
		Records:   result.Records,
		Style:     style,
	})

	if opts.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(set); err != nil {
			fmt.Fprintf(stderr, "FATAL: encode layer set: %v\n", err)
			return 1
		}
		return 0
	}

	report(stdout, len(raws), result, set)
	if result.Kept == 0 {
		return 1
	}
	return 0
}

func load(ctx context.Context, opts options) ([]domain.RawRecord, error) {
	if opts.url != "" {
		client := feed.NewClient(opts.url, 30*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
		return client.Fetch(ctx, opts.topic)
	}
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", opts.file, err)
	}
	var raws []domain.RawRecord
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parse %s: %w", opts.file, err)
	}
	return raws, nil
}

func report(w io.Writer, total int, result domain.ValidationResult, set *layers.LayerSet) {
	fmt.Fprintln(w, "=== Feed Inspection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-24s %d\n", "records received", total)
	fmt.Fprintf(w, "  %-24s %d\n", "records kept", result.Kept)
	fmt.Fprintf(w, "  %-24s %d\n", "records dropped", result.Dropped)

	if len(result.Reasons) > 0 {
		reasons := make([]string, 0, len(result.Reasons))
		for r := range result.Reasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Drop reasons:")
		for _, r := range reasons {
			fmt.Fprintf(w, "  %-24s %d\n", r, result.Reasons[r])
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Layers:")
	if len(set.Layers) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, l := range set.Layers {
		switch l := l.(type) {
		case *layers.HexagonLayer:
			fmt.Fprintf(w, "  %-24s %d cells\n", l.ID, len(l.Cells))
		case *layers.MarkerLayer:
			fmt.Fprintf(w, "  %-24s %d markers\n", l.ID, len(l.Markers))
		default:
			fmt.Fprintf(w, "  %s\n", l.LayerID())
		}
	}
}
