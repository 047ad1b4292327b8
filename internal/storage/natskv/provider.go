package natskv

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/config"
	"github.com/GriffinCanCode/apm-collector/internal/module"
	"github.com/GriffinCanCode/apm-collector/internal/storage"
	"github.com/GriffinCanCode/apm-collector/internal/storage/table"
)

// ProviderName selects this provider in the application file.
const ProviderName = "nats"

// Settings are read from the storage module's config map.
type Settings struct {
	URL          string `yaml:"url"`
	BucketPrefix string `yaml:"bucket_prefix"`
	TimeoutMS    int    `yaml:"timeout_ms"`
	Replicas     int    `yaml:"replicas"`
}

// DefaultSettings points at a local NATS server.
func DefaultSettings() Settings {
	return Settings{
		URL:          nats.DefaultURL,
		BucketPrefix: "collector",
		TimeoutMS:    5000,
		Replicas:     1,
	}
}

func (s Settings) timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// bucket returns the bucket name of one entity.
func (s Settings) bucket(entity string) string {
	if s.BucketPrefix == "" {
		return entity
	}
	return s.BucketPrefix + "_" + entity
}

// Provider implements the storage module on JetStream KV.
type Provider struct {
	logger   *zap.Logger
	settings Settings

	conn *nats.Conn
}

// NewProvider decodes raw settings over the defaults.
func NewProvider(logger *zap.Logger, raw map[string]any) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := DefaultSettings()
	if err := config.Decode(raw, &settings); err != nil {
		return nil, fmt.Errorf("nats storage settings: %w", err)
	}
	if settings.TimeoutMS <= 0 {
		return nil, fmt.Errorf("nats storage settings: timeout_ms must be positive, got %d", settings.TimeoutMS)
	}
	return &Provider{logger: logger, settings: settings}, nil
}

func (p *Provider) Module() string                { return storage.ModuleName }
func (p *Provider) Name() string                  { return ProviderName }
func (p *Provider) Services() []module.ServiceKey { return storage.Services() }
func (p *Provider) Requires() []string            { return nil }

// Prepare connects to NATS and opens one bucket per entity.
func (p *Provider) Prepare(ctx context.Context, b *module.Binder) error {
	conn, err := nats.Connect(p.settings.URL,
		nats.Name("apm-collector"),
		nats.Timeout(p.settings.timeout()),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			p.logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", p.settings.URL, err)
	}
	p.conn = conn

	js, err := jetstream.New(conn)
	if err != nil {
		return fmt.Errorf("jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.settings.timeout())
	defer cancel()

	open := func(entity string) (jetstream.KeyValue, error) {
		return openBucket(ctx, js, jetstream.KeyValueConfig{
			Bucket:      p.settings.bucket(entity),
			Description: "apm collector " + entity,
			History:     1,
			Replicas:    p.settings.Replicas,
		})
	}

	refKV, err := open("application_reference_metric")
	if err != nil {
		return err
	}
	appKV, err := open("application_metric")
	if err != nil {
		return err
	}
	traceKV, err := open("global_trace")
	if err != nil {
		return err
	}
	segmentKV, err := open("segment")
	if err != nil {
		return err
	}

	bindings := map[module.ServiceKey]any{
		storage.ApplicationReferenceMetricDAO: storage.PersistenceDAO[*table.ApplicationReferenceMetric](NewDAO[*table.ApplicationReferenceMetric](refKV)),
		storage.ApplicationMetricDAO:          storage.PersistenceDAO[*table.ApplicationMetric](NewDAO[*table.ApplicationMetric](appKV)),
		storage.GlobalTraceDAO:                storage.PersistenceDAO[*table.GlobalTrace](NewDAO[*table.GlobalTrace](traceKV)),
		storage.SegmentDAO:                    storage.PersistenceDAO[*table.Segment](NewDAO[*table.Segment](segmentKV)),
	}
	for key, dao := range bindings {
		if err := b.Bind(key, dao); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) Start(ctx context.Context, m *module.Manager) error {
	p.logger.Info("NATS storage ready",
		zap.String("url", p.conn.ConnectedUrl()),
		zap.String("bucket_prefix", p.settings.BucketPrefix),
	)
	return nil
}

// Shutdown flushes pending writes and closes the connection.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.conn == nil {
		return nil
	}
	defer p.conn.Close()

	if err := p.conn.FlushTimeout(p.settings.timeout()); err != nil && p.conn.IsConnected() {
		return fmt.Errorf("flush nats connection: %w", err)
	}
	return nil
}
