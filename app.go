package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kwv/geofit/survey"
)

// staleResultAge is how old a saved result may be before --apply warns
const staleResultAge = 30 * 24 * time.Hour

// App encapsulates the application state and dependencies
type App struct {
	Config     *survey.Config
	Store      *survey.ResultStore
	MQTTClient mqtt.Client
	Publisher  *survey.Publisher

	Out     io.Writer
	opts    AppOptions
	logFile *os.File
}

// NewApp creates a new App writing command output to out
func NewApp(out io.Writer) *App {
	return &App{
		Store: survey.NewResultStore(),
		Out:   out,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.opts = opts
}

// Close releases the log file and the MQTT connection
func (a *App) Close() {
	if a.MQTTClient != nil && a.MQTTClient.IsConnected() {
		a.MQTTClient.Disconnect(250)
	}
	if a.logFile != nil {
		log.SetOutput(os.Stderr)
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

// setup opens the log file and loads the configuration
func (a *App) setup() error {
	if a.opts.LogFile != "" && a.logFile == nil {
		f, err := os.OpenFile(a.opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		a.logFile = f
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	config, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.Config = config

	if a.opts.MqttMode && a.Publisher == nil {
		client, err := survey.ConnectMQTT(config.MQTT)
		if err != nil {
			return err
		}
		a.MQTTClient = client
		a.Publisher = survey.NewPublisherFromConfig(client, config.MQTT)
	}
	return nil
}

// loadConfig reads the config file (the default path may be absent), then
// applies environment and flag overrides
func (a *App) loadConfig() (*survey.Config, error) {
	var config *survey.Config
	path := a.opts.ConfigFile
	if _, err := os.Stat(path); path != "" && err == nil {
		config, err = survey.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
		log.Printf("Loaded config from %s", path)
	} else if path != "" && path != "geofit.yaml" {
		return nil, fmt.Errorf("config file not found: %s", path)
	} else {
		config = survey.DefaultConfig()
	}

	config.ApplyEnv()

	if a.opts.Seed != nil {
		seed := *a.opts.Seed
		config.Registration.Seed = &seed
	}
	if a.opts.Threshold > 0 {
		config.Registration.ResidualThreshold = a.opts.Threshold
	}
	if a.opts.MaxTrials > 0 {
		config.Registration.MaxTrials = a.opts.MaxTrials
	}
	if a.opts.OutputFile != "" {
		config.Output.Drawing = a.opts.OutputFile
	}
	if a.opts.ReportFile != "" {
		config.Output.Report = a.opts.ReportFile
	}
	if a.opts.GeoJSONFile != "" {
		config.Output.GeoJSON = a.opts.GeoJSONFile
	}
	if a.opts.ChartFile != "" {
		config.Output.Chart = a.opts.ChartFile
	}

	if err := config.Registration.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// loadPoints reads points from a local file or an http(s) URL
func (a *App) loadPoints(ctx context.Context, source string) ([]survey.LabeledPoint, error) {
	if survey.IsRemote(source) {
		return survey.FetchPoints(ctx, source, a.Config.Ingest)
	}
	return survey.LoadPoints(source, a.Config.Ingest)
}

// RunRegister registers the real points onto the ideal points and writes the outputs
func (a *App) RunRegister() error {
	if err := a.setup(); err != nil {
		return err
	}

	ctx := context.Background()
	real, err := a.loadPoints(ctx, a.opts.RealPath)
	if err != nil {
		return fmt.Errorf("loading real points: %w", err)
	}
	ideal, err := a.loadPoints(ctx, a.opts.IdealPath)
	if err != nil {
		return fmt.Errorf("loading ideal points: %w", err)
	}
	log.Printf("Loaded %d real points from %s, %d ideal points from %s",
		len(real), a.opts.RealPath, len(ideal), a.opts.IdealPath)

	result, err := survey.Register(real, ideal, a.Config.Registration.FilterConfig())
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	a.Store.Set(result)

	a.printResult(result)

	reportPath := a.Config.Output.Report
	if reportPath == "" {
		reportPath = survey.DefaultResultPath
	}
	if err := survey.SaveResult(reportPath, result); err != nil {
		return err
	}
	log.Printf("Saved result to %s", reportPath)

	if err := a.writeOutputs(result.Report); err != nil {
		return err
	}

	if a.Publisher != nil {
		if err := a.Publisher.PublishResult(result); err != nil {
			return fmt.Errorf("publishing result: %w", err)
		}
	}
	return nil
}

// RunApply applies the transform of a saved result to a new set of points
func (a *App) RunApply() error {
	if a.opts.RealPath == "" {
		return fmt.Errorf("--apply requires --real")
	}
	if err := a.setup(); err != nil {
		return err
	}

	saved, err := survey.LoadResult(a.opts.ApplyPath)
	if err != nil {
		return err
	}
	if saved.IsStale(staleResultAge) {
		log.Printf("Warning: result %s was computed %s and may be out of date",
			saved.RunID, saved.CreatedAt.Format(time.RFC3339))
	}

	ctx := context.Background()
	points, err := a.loadPoints(ctx, a.opts.RealPath)
	if err != nil {
		return fmt.Errorf("loading points: %w", err)
	}

	var idealIndex map[string]survey.Point
	if a.opts.IdealPath != "" {
		ideal, err := a.loadPoints(ctx, a.opts.IdealPath)
		if err != nil {
			return fmt.Errorf("loading ideal points: %w", err)
		}
		idealIndex = survey.IdealIndex(ideal)
	}

	report := survey.Apply(saved.Transform, points, idealIndex)
	for i := range report.Entries {
		if report.Entries[i].Ideal == nil {
			report.Entries[i].Status = survey.StatusUnmatched
		} else {
			report.Entries[i].Status = survey.StatusInlier
		}
	}

	_, _ = fmt.Fprintf(a.Out, "Applied transform from %s (rot=%.4f°, tx=%.3f, ty=%.3f) to %d points\n",
		a.opts.ApplyPath, saved.Transform.Angle(), saved.Transform.T.X, saved.Transform.T.Y, len(points))
	a.printReport(report)

	return a.writeOutputs(report)
}

// writeOutputs writes every artifact selected by the configuration
func (a *App) writeOutputs(report survey.ResidualReport) error {
	out := a.Config.Output

	if a.opts.TransformFile != "" {
		if err := writeTransformedPoints(a.opts.TransformFile, report); err != nil {
			return err
		}
		log.Printf("Saved transformed points to %s", a.opts.TransformFile)
	}

	if out.GeoJSON != "" {
		data, err := survey.MarshalReportGeoJSON(report)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out.GeoJSON, data, 0644); err != nil {
			return fmt.Errorf("writing GeoJSON: %w", err)
		}
		log.Printf("Saved GeoJSON report to %s", out.GeoJSON)
	}

	if out.Chart != "" {
		if err := survey.SaveResidualChart(out.Chart, report, a.Config.Registration.ResidualThreshold); err != nil {
			return err
		}
		log.Printf("Saved residual chart to %s", out.Chart)
	}

	if out.Drawing != "" {
		for _, path := range drawingPaths(out.Drawing, a.opts.RenderFormat) {
			if err := a.renderDrawing(path, report); err != nil {
				return err
			}
			log.Printf("Saved drawing to %s", path)
		}
	}
	return nil
}

// drawingPaths resolves the draw-back files for a format. An explicit .png or
// .svg extension wins unless format is "both".
func drawingPaths(path, format string) []string {
	ext := strings.ToLower(filepath.Ext(path))
	base := strings.TrimSuffix(path, filepath.Ext(path))
	switch {
	case format == "both":
		return []string{base + ".svg", base + ".png"}
	case ext == ".png" || ext == ".svg":
		return []string{path}
	case format == "raster":
		return []string{base + ".png"}
	default:
		return []string{base + ".svg"}
	}
}

func (a *App) renderDrawing(path string, report survey.ResidualReport) error {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return survey.NewRasterRenderer().SavePNG(report, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	renderer := survey.NewVectorRenderer()
	renderer.GridSpacing = a.Config.Output.GridSpacing
	if err := renderer.RenderToSVG(f, report); err != nil {
		return fmt.Errorf("rendering SVG: %w", err)
	}
	return nil
}

func writeTransformedPoints(path string, report survey.ResidualReport) error {
	points := make([]survey.LabeledPoint, 0, len(report.Entries))
	for _, e := range report.Entries {
		points = append(points, survey.LabeledPoint{Label: e.Label, X: e.Transformed.X, Y: e.Transformed.Y})
	}
	data, err := json.MarshalIndent(points, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling transformed points: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing transformed points: %w", err)
	}
	return nil
}

func (a *App) printResult(r *survey.Result) {
	t := r.Transform
	_, _ = fmt.Fprintf(a.Out, "\nRun %s\n", r.RunID)
	_, _ = fmt.Fprintf(a.Out, "Rotation:    %.6f°\n", r.Angle)
	_, _ = fmt.Fprintf(a.Out, "Translation: (%.4f, %.4f)\n", t.T.X, t.T.Y)
	_, _ = fmt.Fprintf(a.Out, "Matrix:      [[%.6f, %.6f], [%.6f, %.6f]]\n", t.R[0][0], t.R[0][1], t.R[1][0], t.R[1][1])
	_, _ = fmt.Fprintf(a.Out, "Inliers:     %d/%d (trials %d), RMSE %.4f\n", len(r.Mask), len(r.Pairs), r.Trials, r.RMSE)
	for _, w := range r.Unmatched {
		_, _ = fmt.Fprintf(a.Out, "Warning: %s\n", w)
	}
	a.printReport(r.Report)
}

func (a *App) printReport(report survey.ResidualReport) {
	_, _ = fmt.Fprintf(a.Out, "\n%-12s %12s %12s %10s  %s\n", "LABEL", "X", "Y", "RESIDUAL", "STATUS")
	for _, e := range report.Entries {
		residual := "-"
		if e.Residual != nil {
			residual = fmt.Sprintf("%.4f", *e.Residual)
		}
		_, _ = fmt.Fprintf(a.Out, "%-12s %12.4f %12.4f %10s  %s\n",
			e.Label, e.Transformed.X, e.Transformed.Y, residual, e.Status)
	}
	stats := report.Stats("")
	if stats.Matched > 0 {
		_, _ = fmt.Fprintf(a.Out, "\nResiduals: n=%d rms=%.4f mean=%.4f max=%.4f\n",
			stats.Matched, stats.RMS, stats.Mean, stats.Max)
	}
}

// RunService runs the HTTP registration service until interrupted
func (a *App) RunService() error {
	if err := a.setup(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.Out, "Starting geofit service...")

	// Optional initial registration so the result endpoints are populated
	if a.opts.RealPath != "" && a.opts.IdealPath != "" {
		if err := a.RunRegister(); err != nil {
			log.Printf("Warning: initial registration failed: %v", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", a.opts.HttpPort),
		Handler:           newHTTPServer(a.Store, a.Config, a.Publisher),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[HTTP] Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	_, _ = fmt.Fprintf(a.Out, "\nHTTP endpoints (port %d):\n", a.opts.HttpPort)
	_, _ = fmt.Fprintln(a.Out, "  GET  /health        - Health check")
	_, _ = fmt.Fprintln(a.Out, "  POST /register      - Register {real, ideal, options}")
	_, _ = fmt.Fprintln(a.Out, "  GET  /result.json   - Latest result")
	_, _ = fmt.Fprintln(a.Out, "  GET  /result.svg    - Latest draw-back (vector)")
	_, _ = fmt.Fprintln(a.Out, "  GET  /result.png    - Latest draw-back (raster)")
	_, _ = fmt.Fprintln(a.Out, "  GET  /residuals.png - Residual chart")
	if a.Publisher != nil {
		prefix := a.Config.MQTT.PublishPrefix
		if prefix == "" {
			prefix = survey.DefaultPublishPrefix
		}
		_, _ = fmt.Fprintf(a.Out, "\nMQTT: publishing results to %s/#\n", prefix)
	}
	_, _ = fmt.Fprintln(a.Out, "\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
	case err := <-errCh:
		return fmt.Errorf("[HTTP] server error: %w", err)
	}

	_, _ = fmt.Fprintln(a.Out, "\nShutting down service...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[HTTP] shutdown: %v", err)
	}
	_, _ = fmt.Fprintln(a.Out, "Service stopped")
	return nil
}
