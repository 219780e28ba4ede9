package survey

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultPublishPrefix is the topic prefix used when none is configured
const DefaultPublishPrefix = "geofit"

// Publisher publishes registration results to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	timeout       time.Duration
}

// NewPublisher creates a result publisher. An empty prefix uses DefaultPublishPrefix.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultPublishPrefix
	}
	return &Publisher{
		client:        client,
		publishPrefix: strings.TrimSuffix(prefix, "/"),
		qos:           1,
		retain:        true, // Retain so late subscribers see the latest result
		timeout:       5 * time.Second,
	}
}

// NewPublisherFromConfig creates a publisher with the prefix, QoS and retain
// flag from the MQTT section of the config
func NewPublisherFromConfig(client mqtt.Client, cfg MQTTConfig) *Publisher {
	p := NewPublisher(client, cfg.PublishPrefix)
	if cfg.QoS != nil {
		p.SetQoS(*cfg.QoS)
	}
	if cfg.Retain != nil {
		p.SetRetain(*cfg.Retain)
	}
	return p
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}

// transformMessage is the payload of {prefix}/transform
type transformMessage struct {
	RunID     string         `json:"runId"`
	Transform RigidTransform `json:"transform"`
	AngleDeg  float64        `json:"angleDeg"`
	RMSE      float64        `json:"rmse"`
	Inliers   int            `json:"inliers"`
	Rejected  int            `json:"rejected"`
	Unmatched int            `json:"unmatched"`
	Timestamp int64          `json:"timestamp"`
}

// PublishResult publishes the transform summary, the full report and one
// message per point under {prefix}/points/{label}
func (p *Publisher) PublishResult(r *Result) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	summary := transformMessage{
		RunID:     r.RunID,
		Transform: r.Transform,
		AngleDeg:  r.Angle,
		RMSE:      r.RMSE,
		Inliers:   len(r.Mask),
		Rejected:  len(r.Rejected),
		Unmatched: len(r.Unmatched),
		Timestamp: time.Now().Unix(),
	}
	if err := p.publishJSON("transform", summary); err != nil {
		return err
	}
	if err := p.publishJSON("report", r.Report); err != nil {
		return err
	}
	for _, e := range r.Report.Entries {
		if err := p.publishJSON("points/"+topicSegment(e.Label), e); err != nil {
			return err
		}
	}

	log.Printf("Published result %s to %s/# (%d points)", r.RunID, p.publishPrefix, len(r.Report.Entries))
	return nil
}

func (p *Publisher) publishJSON(suffix string, v interface{}) error {
	topic := fmt.Sprintf("%s/%s", p.publishPrefix, suffix)

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", suffix, err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publishing to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// topicSegment replaces MQTT wildcard and separator characters in a label
func topicSegment(label string) string {
	r := strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_")
	if s := r.Replace(label); s != "" {
		return s
	}
	return "_"
}

// ConnectMQTT connects to the configured broker and waits for the connection
func ConnectMQTT(cfg MQTTConfig) (mqtt.Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt.broker is required")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultPublishPrefix
	}
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	log.Printf("Connecting to MQTT broker %s...", cfg.Broker)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("MQTT connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTT connection failed: %w", err)
	}
	log.Println("Successfully connected to MQTT broker")
	return client, nil
}
