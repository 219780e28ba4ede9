package main

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"
)

type mockApp struct {
	opts   AppOptions
	called map[string]bool
	err    error
}

func newMockApp() *mockApp {
	return &mockApp{
		called: make(map[string]bool),
	}
}

func (m *mockApp) ApplyOptions(opts AppOptions) { m.opts = opts }
func (m *mockApp) RunRegister() error           { m.called["RunRegister"] = true; return m.err }
func (m *mockApp) RunApply() error              { m.called["RunApply"] = true; return m.err }
func (m *mockApp) RunService() error            { m.called["RunService"] = true; return m.err }

func TestRun_Flags(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		expectedCalled string
		verifyOpts     func(*testing.T, AppOptions)
	}{
		{
			name:           "Register",
			args:           []string{"--real", "survey.csv", "--ideal", "plan.geojson", "--threshold", "0.05", "--max-trials", "100"},
			expectedCalled: "RunRegister",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.RealPath != "survey.csv" || opts.IdealPath != "plan.geojson" {
					t.Errorf("unexpected paths: %q %q", opts.RealPath, opts.IdealPath)
				}
				if opts.Threshold != 0.05 {
					t.Errorf("expected Threshold 0.05, got %f", opts.Threshold)
				}
				if opts.MaxTrials != 100 {
					t.Errorf("expected MaxTrials 100, got %d", opts.MaxTrials)
				}
				if opts.Seed != nil {
					t.Errorf("expected no seed, got %d", *opts.Seed)
				}
			},
		},
		{
			name:           "Seed",
			args:           []string{"--real", "a.csv", "--ideal", "b.csv", "--seed", "0"},
			expectedCalled: "RunRegister",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.Seed == nil || *opts.Seed != 0 {
					t.Errorf("expected explicit seed 0, got %v", opts.Seed)
				}
			},
		},
		{
			name:           "Outputs",
			args:           []string{"--real", "a.csv", "--ideal", "b.csv", "--output", "out.svg", "--format", "both", "--report", "r.json", "--geojson", "r.geojson", "--chart", "c.png", "--transform", "t.json", "--log-file", "run.log"},
			expectedCalled: "RunRegister",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.OutputFile != "out.svg" || opts.RenderFormat != "both" {
					t.Errorf("unexpected drawing options: %q %q", opts.OutputFile, opts.RenderFormat)
				}
				if opts.ReportFile != "r.json" || opts.GeoJSONFile != "r.geojson" || opts.ChartFile != "c.png" {
					t.Errorf("unexpected report options: %+v", opts)
				}
				if opts.TransformFile != "t.json" || opts.LogFile != "run.log" {
					t.Errorf("unexpected transform/log options: %+v", opts)
				}
			},
		},
		{
			name:           "Apply",
			args:           []string{"--apply", "result.json", "--real", "new.csv"},
			expectedCalled: "RunApply",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.ApplyPath != "result.json" {
					t.Errorf("expected ApplyPath result.json, got %s", opts.ApplyPath)
				}
			},
		},
		{
			name:           "HttpMode",
			args:           []string{"--http", "--http-port", "9090", "--mqtt", "--config", "site.yaml"},
			expectedCalled: "RunService",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if !opts.HttpMode || !opts.MqttMode {
					t.Error("expected HttpMode and MqttMode true")
				}
				if opts.HttpPort != 9090 {
					t.Errorf("expected HttpPort 9090, got %d", opts.HttpPort)
				}
				if opts.ConfigFile != "site.yaml" {
					t.Errorf("expected ConfigFile site.yaml, got %s", opts.ConfigFile)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newMockApp()
			var out bytes.Buffer
			err := run(tt.args, &out, app)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}

			if !app.called[tt.expectedCalled] {
				t.Errorf("expected %s to be called", tt.expectedCalled)
			}
			if len(app.called) != 1 {
				t.Errorf("expected exactly one command, got %v", app.called)
			}

			if tt.verifyOpts != nil {
				tt.verifyOpts(t, app.opts)
			}
		})
	}
}

func TestRun_Defaults(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	if err := run([]string{"--real", "a.csv", "--ideal", "b.csv"}, &out, app); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if app.opts.ConfigFile != "geofit.yaml" {
		t.Errorf("expected default config geofit.yaml, got %s", app.opts.ConfigFile)
	}
	if app.opts.RenderFormat != "vector" {
		t.Errorf("expected default format vector, got %s", app.opts.RenderFormat)
	}
	if app.opts.HttpPort != 8080 {
		t.Errorf("expected default port 8080, got %d", app.opts.HttpPort)
	}
}

func TestRun_CommandError(t *testing.T) {
	app := newMockApp()
	app.err = errors.New("boom")
	var out bytes.Buffer
	err := run([]string{"--real", "a.csv", "--ideal", "b.csv"}, &out, app)
	if err == nil || err.Error() != "boom" {
		t.Errorf("expected command error to propagate, got %v", err)
	}
}

func TestRun_Help(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	err := run([]string{"--help"}, &out, app)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("expected flag.ErrHelp from --help, got %v", err)
	}
	if !strings.Contains(out.String(), "Usage of geofit") {
		t.Errorf("expected usage info in output, got: %s", out.String())
	}
}

func TestRun_Default(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	err := run([]string{}, &out, app)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	expectedPrefix := "geofit version: " + Version
	if !strings.Contains(out.String(), expectedPrefix) {
		t.Errorf("expected output to contain version, got: %s", out.String())
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Errorf("expected usage summary, got: %s", out.String())
	}
	if len(app.called) != 0 {
		t.Errorf("expected no command, got %v", app.called)
	}
}

func TestRun_BadFlag(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	if err := run([]string{"--threshold", "abc"}, &out, app); err == nil {
		t.Error("expected error for invalid --threshold")
	}
}
