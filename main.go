package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/kwv/geofit/survey"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line
type AppOptions struct {
	ConfigFile string
	RealPath   string
	IdealPath  string
	ApplyPath  string

	// Registration overrides; zero values keep the config file settings
	Seed      *int64
	Threshold float64
	MaxTrials int

	OutputFile    string
	RenderFormat  string
	ReportFile    string
	GeoJSONFile   string
	ChartFile     string
	TransformFile string
	LogFile       string

	HttpMode bool
	HttpPort int
	MqttMode bool
}

// Application is the set of commands run dispatches to
type Application interface {
	ApplyOptions(opts AppOptions)
	RunRegister() error
	RunApply() error
	RunService() error
}

func main() {
	app := NewApp(os.Stdout)
	defer app.Close()
	if err := run(os.Args[1:], os.Stdout, app); err != nil {
		if err == flag.ErrHelp {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer, app Application) error {
	fs := flag.NewFlagSet("geofit", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	var seed int64
	fs.StringVar(&opts.ConfigFile, "config", "geofit.yaml", "Path to configuration file (optional)")
	fs.StringVar(&opts.RealPath, "real", "", "Surveyed (as-built) points: .csv, .json, .geojson or http(s) URL")
	fs.StringVar(&opts.IdealPath, "ideal", "", "Design points or drawing: .csv, .json, .geojson or http(s) URL")
	fs.StringVar(&opts.ApplyPath, "apply", "", "Apply the transform from a saved result file to --real points")
	fs.Int64Var(&seed, "seed", 0, "Random seed for the outlier filter (default: system entropy)")
	fs.Float64Var(&opts.Threshold, "threshold", 0, "Residual threshold for inliers (overrides config)")
	fs.IntVar(&opts.MaxTrials, "max-trials", 0, "Maximum outlier filter trials (overrides config)")
	fs.StringVar(&opts.OutputFile, "output", "", "Draw-back output file (.svg or .png)")
	fs.StringVar(&opts.RenderFormat, "format", "vector", "Draw-back format: raster, vector, or both")
	fs.StringVar(&opts.ReportFile, "report", "", "Write the result JSON to this file (default "+survey.DefaultResultPath+")")
	fs.StringVar(&opts.GeoJSONFile, "geojson", "", "Write the residual report as GeoJSON")
	fs.StringVar(&opts.ChartFile, "chart", "", "Write a residual bar chart (.png, .svg or .pdf)")
	fs.StringVar(&opts.TransformFile, "transform", "", "Write the transformed points as JSON")
	fs.StringVar(&opts.LogFile, "log-file", "", "Also append log output to this file")
	fs.BoolVar(&opts.HttpMode, "http", false, "Run the HTTP registration service")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port (default 8080)")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Publish results to the MQTT broker from config")

	if err := fs.Parse(args); err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			opts.Seed = &seed
		}
	})

	_, _ = fmt.Fprintf(out, "geofit version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.ApplyPath != "":
		return app.RunApply()
	case opts.HttpMode:
		return app.RunService()
	case opts.RealPath != "" && opts.IdealPath != "":
		return app.RunRegister()
	}

	_, _ = fmt.Fprintln(out, "Usage:")
	_, _ = fmt.Fprintln(out, "  geofit --real survey.csv --ideal design.geojson   register survey to design")
	_, _ = fmt.Fprintln(out, "  geofit --apply result.json --real points.csv      apply a saved transform")
	_, _ = fmt.Fprintln(out, "  geofit --http [--mqtt]                            run the HTTP service")
	_, _ = fmt.Fprintln(out, "\nUse --help for all flags")
	return nil
}
