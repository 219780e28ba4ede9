package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kwv/geofit/survey"
)

// TestMQTTPublishOnRegister checks that a register run publishes its result
func TestMQTTPublishOnRegister(t *testing.T) {
	dir := t.TempDir()
	client := survey.NewMockClient()
	client.SetConnected(true)

	app := NewApp(&bytes.Buffer{})
	app.Publisher = survey.NewPublisher(client, "site")
	app.ApplyOptions(AppOptions{
		ConfigFile: "geofit.yaml",
		RealPath:   writeTestFile(t, dir, "survey.csv", testSurvey),
		IdealPath:  writeTestFile(t, dir, "design.json", testDesign),
		ReportFile: filepath.Join(dir, "result.json"),
		MqttMode:   true,
	})

	if err := app.RunRegister(); err != nil {
		t.Fatalf("RunRegister failed: %v", err)
	}

	msgs := client.GetPublishedMessages()
	// transform + report + one message per real point
	if len(msgs) != 7 {
		t.Fatalf("published %d messages, want 7", len(msgs))
	}
	if msgs[0].Topic != "site/transform" {
		t.Errorf("first topic = %q, want site/transform", msgs[0].Topic)
	}

	var summary struct {
		RunID   string `json:"runId"`
		Inliers int    `json:"inliers"`
	}
	if err := json.Unmarshal(msgs[0].Payload, &summary); err != nil {
		t.Fatalf("decode transform message: %v", err)
	}
	if summary.Inliers != 3 {
		t.Errorf("inliers = %d, want 3", summary.Inliers)
	}
	if summary.RunID != app.Store.Latest().RunID {
		t.Errorf("published run %q, stored run %q", summary.RunID, app.Store.Latest().RunID)
	}

	var topics []string
	for _, m := range msgs[2:] {
		topics = append(topics, m.Topic)
	}
	if got := strings.Join(topics, ","); got != "site/points/A,site/points/B,site/points/C,site/points/D,site/points/X" {
		t.Errorf("point topics = %s", got)
	}
}

// TestMQTTPublishFailure checks that a disconnected broker fails the run
func TestMQTTPublishFailure(t *testing.T) {
	dir := t.TempDir()
	app := NewApp(&bytes.Buffer{})
	app.Publisher = survey.NewPublisher(survey.NewMockClient(), "")
	app.ApplyOptions(AppOptions{
		ConfigFile: "geofit.yaml",
		RealPath:   writeTestFile(t, dir, "survey.csv", testSurvey),
		IdealPath:  writeTestFile(t, dir, "design.json", testDesign),
		ReportFile: filepath.Join(dir, "result.json"),
	})

	err := app.RunRegister()
	if err == nil || !strings.Contains(err.Error(), "publishing result") {
		t.Errorf("expected publish error, got %v", err)
	}
}

// TestMQTTModeRequiresBroker checks --mqtt without a configured broker
func TestMQTTModeRequiresBroker(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")
	dir := t.TempDir()
	app := NewApp(&bytes.Buffer{})
	app.ApplyOptions(AppOptions{
		ConfigFile: "geofit.yaml",
		RealPath:   writeTestFile(t, dir, "survey.csv", testSurvey),
		IdealPath:  writeTestFile(t, dir, "design.json", testDesign),
		MqttMode:   true,
	})

	err := app.RunRegister()
	if err == nil || !strings.Contains(err.Error(), "mqtt.broker is required") {
		t.Errorf("expected broker error, got %v", err)
	}
}

// TestMQTTConfigFromEnv checks that environment variables override the file
func TestMQTTConfigFromEnv(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestFile(t, dir, "site.yaml", `
mqtt:
  broker: "tcp://file:1883"
  publishPrefix: "from-file"
`)
	t.Setenv("MQTT_BROKER", "tcp://env:1883")

	app := NewApp(&bytes.Buffer{})
	app.ApplyOptions(AppOptions{ConfigFile: configPath})
	config, err := app.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if config.MQTT.Broker != "tcp://env:1883" {
		t.Errorf("broker = %q, want env override", config.MQTT.Broker)
	}
	if config.MQTT.PublishPrefix != "from-file" {
		t.Errorf("prefix = %q, want from-file", config.MQTT.PublishPrefix)
	}
}
