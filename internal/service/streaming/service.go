package streaming

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/alert"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/detector"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/errors"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/infrastructure/config"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/metrics"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/stream"
)

// Broadcaster pushes alert events to subscribed websocket clients.
type Broadcaster interface {
	BroadcastAlert(streamID string, a *anomaly.Alert)
	BroadcastEscalation(a *anomaly.Alert)
	ClientCount() int
}

// frequencyWindow bounds how far back anomaly recurrence counts toward the
// severity frequency factor.
const (
	frequencyWindow     = 10 * time.Minute
	frequencySaturation = 10
)

// pipeline bundles the per-stream state: buffer, processor, and the
// detection ensemble with its trained column schema.
type pipeline struct {
	stream    *stream.DataStream
	processor *stream.StreamDataProcessor
	ensemble  *detector.Ensemble
	schema    detector.Schema
	trained   bool
	warmup    []anomaly.FeatureVector

	anomalyTimes []time.Time
}

// Service owns the stream set and drives one ingestion loop per stream.
type Service struct {
	cfg    *config.Config
	logger *zap.Logger
	meters *metrics.Registry

	source     RecordSource
	classifier *alert.SeverityClassifier
	impact     *alert.ImpactAssessor
	fpDetector *alert.FalsePositiveDetector
	generator  *alert.Generator
	escalation *alert.EscalationEngine

	hub     Broadcaster
	webhook *WebhookNotifier

	mu        sync.RWMutex
	pipelines map[string]*pipeline

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService wires the pipeline from configuration. hub may be nil when the
// websocket surface is disabled; the webhook notifier is built only when
// enabled.
func NewService(cfg *config.Config, source RecordSource, hub Broadcaster, meters *metrics.Registry, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Streaming.EnableWebhook && cfg.Streaming.WebhookURL == "" {
		return nil, errors.NewValidationError("MISSING_WEBHOOK_URL",
			"webhook enabled without webhook_url")
	}

	classifier, err := alert.NewSeverityClassifier(alert.SeverityThresholds{
		Low:    cfg.Alerting.LowThreshold,
		Medium: cfg.Alerting.MediumThreshold,
		High:   cfg.Alerting.HighThreshold,
	}, nil)
	if err != nil {
		return nil, err
	}

	escalation, err := alert.NewEscalationEngine(nil, logger)
	if err != nil {
		return nil, err
	}

	fp := alert.NewFalsePositiveDetector()

	s := &Service{
		cfg:        cfg,
		logger:     logger,
		meters:     meters,
		source:     source,
		classifier: classifier,
		impact:     alert.NewImpactAssessor(nil),
		fpDetector: fp,
		generator:  alert.NewGenerator(fp, logger),
		escalation: escalation,
		hub:        hub,
		pipelines:  make(map[string]*pipeline),
	}

	if cfg.Streaming.EnableWebhook {
		s.webhook = NewWebhookNotifier(cfg.Streaming.WebhookURL,
			cfg.Streaming.WebhookSecret, cfg.Streaming.WebhookRPS, logger)
	}

	for _, id := range defaultStreams() {
		s.AddStream(id, id)
	}
	for _, id := range cfg.Streaming.ExtraStreams {
		s.AddStream(id, id)
	}

	return s, nil
}

func defaultStreams() []string {
	return []string{
		anomaly.StreamSystemMetrics,
		anomaly.StreamTransactions,
		anomaly.StreamNetworkTraffic,
		anomaly.StreamUserBehavior,
	}
}

// AddStream registers a stream with its own buffer, processor, and
// ensemble. Adding an existing id is a no-op.
func (s *Service) AddStream(id, streamType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pipelines[id]; exists {
		return
	}

	d := s.cfg.Detector
	voting, err := detector.ParseVotingMethod(d.VotingMethod)
	if err != nil {
		voting = detector.VoteMajority
	}
	ensemble := detector.NewEnsemble(voting,
		detector.DefaultDetectors(d.ZScoreThreshold, d.Nu, d.Gamma, d.Eps,
			d.MinSamples, d.Trees, d.SampleSize, d.ForestThreshold, d.Seed),
		nil, s.logger)

	p := s.cfg.Processor
	s.pipelines[id] = &pipeline{
		stream: stream.NewDataStream(id, streamType, s.cfg.Streaming.MaxBufferSize),
		processor: stream.NewStreamDataProcessor(stream.ProcessorOptions{
			WindowSize:              p.WindowSize,
			QualityThreshold:        p.QualityThreshold,
			EnableQualityMonitoring: p.EnableQualityMonitoring,
			EnableFeatureExtraction: p.EnableFeatureExtraction,
			BatchSize:               p.BatchSize,
			EnableCaching:           p.EnableCaching,
		}, s.logger),
		ensemble: ensemble,
	}
}

// Start launches one ingestion goroutine per stream plus the escalation
// poller. It is idempotent only before Stop.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.mu.RLock()
	ids := make([]string, 0, len(s.pipelines))
	for id := range s.pipelines {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.wg.Add(1)
		go s.runStream(ctx, id)
	}

	s.wg.Add(1)
	go s.runEscalation(ctx)

	s.logger.Info("streaming service started",
		zap.Int("streams", len(ids)),
		zap.Duration("update_interval", s.cfg.Streaming.UpdateInterval))
}

// Stop cancels every ingestion loop and waits for all of them to exit.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("streaming service stopped")
}

func (s *Service) runStream(ctx context.Context, id string) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Streaming.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ingestOne(ctx, id)
		}
	}
}

// ingestOne pulls one record through the full pipeline. No per-record
// failure may escape; everything degrades to a log line.
func (s *Service) ingestOne(ctx context.Context, id string) {
	s.mu.RLock()
	p, ok := s.pipelines[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	start := time.Now()
	rec, err := s.source.Next(ctx, id, p.stream.StreamType())
	if err != nil {
		s.logger.Warn("record source failed",
			zap.String("stream_id", id),
			zap.Error(err))
		return
	}

	p.stream.AddData(rec)
	result := p.processor.Process(ctx, rec, p.stream.StreamType())

	if s.meters != nil {
		s.meters.RecordIngestion(ctx, id, float64(time.Since(start).Microseconds())/1000, result.Success)
		s.meters.SetBufferDepth(id, int64(p.stream.Stats().BufferSize))
		if s.hub != nil {
			s.meters.SetConnectedClients(int64(s.hub.ClientCount()))
		}
	}

	if result.Features == nil {
		return
	}
	s.detect(ctx, id, p, rec, *result.Features)
}

func (s *Service) detect(ctx context.Context, id string, p *pipeline, rec anomaly.Record, fv anomaly.FeatureVector) {
	if !p.trained {
		p.warmup = append(p.warmup, fv)
		if len(p.warmup) < s.cfg.Detector.WarmupSamples {
			return
		}
		p.schema = detector.NewSchema(p.warmup)
		if err := p.ensemble.Train(p.schema.Matrix(p.warmup)); err != nil {
			s.logger.Warn("ensemble training failed, keeping warmup window",
				zap.String("stream_id", id),
				zap.Error(err))
			p.warmup = p.warmup[len(p.warmup)/2:]
			return
		}
		p.trained = true
		p.warmup = nil
		s.logger.Info("ensemble trained",
			zap.String("stream_id", id),
			zap.Strings("models", p.ensemble.TrainedModels()))
		return
	}

	X := [][]float64{p.schema.Row(fv)}
	labels, err := p.ensemble.Predict(X)
	if err != nil {
		s.logger.Warn("prediction failed",
			zap.String("stream_id", id),
			zap.Error(err))
		return
	}
	if labels[0] != anomaly.LabelAnomaly {
		return
	}

	scores, err := p.ensemble.AnomalyScores(X)
	if err != nil {
		s.logger.Warn("scoring failed",
			zap.String("stream_id", id),
			zap.Error(err))
		return
	}

	now := time.Now()
	p.anomalyTimes = append(p.anomalyTimes, now)
	p.anomalyTimes = trimWindow(p.anomalyTimes, now.Add(-frequencyWindow))

	impactScore := s.impact.AssessImpact([]map[string]float64{impactRow(p.stream.StreamType(), rec)})[0]
	row := map[string]float64{
		alert.ColAnomalyScore:    clampUnit(scores[0]),
		alert.ColFrequencyFactor: clampUnit(float64(len(p.anomalyTimes)) / frequencySaturation),
		alert.ColImpactFactor:    impactScore,
	}
	severity := s.classifier.ScoreToSeverity(s.classifier.SeverityScore(row))

	if s.meters != nil {
		s.meters.RecordAnomaly(ctx, id, severity.String())
	}

	s.fpDetector.RecordSignature(rec)
	a := s.generator.GenerateAlert(rec, severity, "")
	if s.meters != nil {
		s.meters.RecordAlert(ctx, id, a == nil)
	}
	if a == nil {
		return
	}

	if s.hub != nil {
		s.hub.BroadcastAlert(id, a)
	}
	if s.webhook != nil {
		if err := s.webhook.Notify(ctx, a); err != nil {
			s.logger.Warn("webhook delivery failed",
				zap.Int64("alert_id", a.AlertID),
				zap.Error(err))
			if s.meters != nil {
				s.meters.RecordDeliveryFailure(ctx, "webhook")
			}
		}
	}
}

func (s *Service) runEscalation(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Alerting.EscalationPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, a := range s.generator.OpenAlerts() {
				if !s.escalation.Check(a) {
					continue
				}
				if s.meters != nil {
					s.meters.RecordEscalation(ctx, a.Severity.String())
				}
				if s.hub != nil {
					s.hub.BroadcastEscalation(a)
				}
			}
		}
	}
}

// Generator exposes alert history and handlers to the API layer.
func (s *Service) Generator() *alert.Generator { return s.generator }

// Escalation exposes the escalation engine for handler registration.
func (s *Service) Escalation() *alert.EscalationEngine { return s.escalation }

// FalsePositives exposes the suppression gate for pattern management.
func (s *Service) FalsePositives() *alert.FalsePositiveDetector { return s.fpDetector }

// StreamData returns up to n of the most recent buffered entries for the
// stream, oldest first. Unknown ids yield an empty slice.
func (s *Service) StreamData(id string, n int) []stream.BufferedEntry {
	s.mu.RLock()
	p, ok := s.pipelines[id]
	s.mu.RUnlock()
	if !ok {
		return []stream.BufferedEntry{}
	}
	return p.stream.LatestData(n)
}

// StreamsStatus reports buffer statistics for every stream.
func (s *Service) StreamsStatus() map[string]stream.BufferStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]stream.BufferStats, len(s.pipelines))
	for id, p := range s.pipelines {
		out[id] = p.stream.Stats()
	}
	return out
}

// ProcessorStats reports processing counters for one stream.
func (s *Service) ProcessorStats(id string) (stream.ProcessorStats, bool) {
	s.mu.RLock()
	p, ok := s.pipelines[id]
	s.mu.RUnlock()
	if !ok {
		return stream.ProcessorStats{}, false
	}
	return p.processor.Stats(), true
}

// QualityReport reports data quality for one stream.
func (s *Service) QualityReport(id string) (stream.QualityReport, bool) {
	s.mu.RLock()
	p, ok := s.pipelines[id]
	s.mu.RUnlock()
	if !ok {
		return stream.QualityReport{}, false
	}
	return p.processor.QualityMonitor().Report(), true
}

func trimWindow(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && times[i].Before(cutoff) {
		i++
	}
	return times[i:]
}

func clampUnit(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// impactRow derives impact dimensions from the raw record. The mapping is a
// heuristic per stream type; unmapped streams carry no impact signal.
func impactRow(streamType string, rec anomaly.Record) map[string]float64 {
	row := map[string]float64{}
	switch streamType {
	case anomaly.StreamTransactions, anomaly.StreamTypeTransaction:
		if amt, ok := toUnitFloat(rec["transaction_amount"], 100000); ok {
			row[alert.ColFinancialImpact] = amt
		}
		row[alert.ColRegulatoryImpact] = 0.5
	case anomaly.StreamSystemMetrics:
		if er, ok := toUnitFloat(rec["error_rate"], 1); ok {
			row[alert.ColOperationalImpact] = er
		}
	case anomaly.StreamNetworkTraffic:
		if pk, ok := toUnitFloat(rec["packets_per_second"], 1e6); ok {
			row[alert.ColOperationalImpact] = pk
		}
	case anomaly.StreamUserBehavior:
		if fl, ok := toUnitFloat(rec["failed_logins"], 10); ok {
			row[alert.ColReputationalImpact] = fl
		}
	}
	return row
}

func toUnitFloat(v interface{}, scale float64) (float64, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return clampUnit(f / scale), true
}
