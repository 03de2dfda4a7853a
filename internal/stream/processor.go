package stream

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
)

// ProcessorOptions configure one StreamDataProcessor.
type ProcessorOptions struct {
	WindowSize              int
	QualityThreshold        float64
	EnableQualityMonitoring bool
	EnableFeatureExtraction bool
	BatchSize               int
	EnableCaching           bool
}

// DefaultProcessorOptions mirror the recognized configuration defaults.
func DefaultProcessorOptions() ProcessorOptions {
	return ProcessorOptions{
		WindowSize:              100,
		QualityThreshold:        0.8,
		EnableQualityMonitoring: true,
		EnableFeatureExtraction: true,
		BatchSize:               10,
		EnableCaching:           true,
	}
}

// ProcessResult is the best-effort output of one pipeline step. Success is
// false when quality assessment or feature extraction failed; the remaining
// fields carry whatever was produced before the failure.
type ProcessResult struct {
	ProcessedAt time.Time               `json:"processed_timestamp"`
	Original    anomaly.Record          `json:"original_data"`
	StreamType  string                  `json:"stream_type"`
	Quality     *anomaly.QualityMetrics `json:"quality_metrics,omitempty"`
	Features    *anomaly.FeatureVector  `json:"extracted_features,omitempty"`
	Success     bool                    `json:"processing_success"`
}

// ProcessorStats expose failure counts for operational visibility.
type ProcessorStats struct {
	ProcessedCount int           `json:"processed_count"`
	ErrorCount     int           `json:"error_count"`
	SuccessRate    float64       `json:"success_rate"`
	QualityReport  QualityReport `json:"quality_report"`
	BatchSize      int           `json:"batch_size"`
}

// StreamDataProcessor composes quality assessment and feature extraction
// into one non-throwing per-record pipeline step. No failure inside either
// stage escapes Process; errors are counted and surfaced via the result.
type StreamDataProcessor struct {
	opts      ProcessorOptions
	logger    *zap.Logger
	quality   *DataQualityMonitor
	extractor *FeatureExtractor

	mu             sync.Mutex
	processedCount int
	errorCount     int
	featureCache   map[uint64]anomaly.FeatureVector
}

// NewStreamDataProcessor wires a processor from its two stages.
func NewStreamDataProcessor(opts ProcessorOptions, logger *zap.Logger) *StreamDataProcessor {
	return &StreamDataProcessor{
		opts:         opts,
		logger:       logger,
		quality:      NewDataQualityMonitor(opts.WindowSize, opts.QualityThreshold),
		extractor:    NewFeatureExtractor(),
		featureCache: make(map[uint64]anomaly.FeatureVector),
	}
}

// Process runs quality assessment and feature extraction over one record.
// It never returns an error: any failure is logged, counted, and reported
// through ProcessResult.Success.
func (p *StreamDataProcessor) Process(ctx context.Context, rec anomaly.Record, streamType string) ProcessResult {
	result := ProcessResult{
		ProcessedAt: time.Now(),
		Original:    rec,
		StreamType:  streamType,
		Success:     true,
	}

	if err := p.runStage("quality_assessment", func() {
		if p.opts.EnableQualityMonitoring {
			q := p.quality.AssessQuality(rec)
			result.Quality = &q
		}
	}); err != nil {
		result.Success = false
	}

	if err := p.runStage("feature_extraction", func() {
		if !p.opts.EnableFeatureExtraction {
			return
		}
		if p.opts.EnableCaching {
			sig := recordSignature(rec)
			p.mu.Lock()
			cached, ok := p.featureCache[sig]
			p.mu.Unlock()
			if ok {
				result.Features = &cached
				return
			}
			fv := p.extractor.Extract(rec, streamType)
			p.mu.Lock()
			if len(p.featureCache) >= p.opts.WindowSize {
				// cheap reset keeps the cache bounded without LRU bookkeeping
				p.featureCache = make(map[uint64]anomaly.FeatureVector)
			}
			p.featureCache[sig] = fv
			p.mu.Unlock()
			result.Features = &fv
			return
		}
		fv := p.extractor.Extract(rec, streamType)
		result.Features = &fv
	}); err != nil {
		result.Success = false
	}

	p.mu.Lock()
	if result.Success {
		p.processedCount++
	} else {
		p.errorCount++
	}
	p.mu.Unlock()

	return result
}

// runStage confines a panic inside one processing stage to that stage.
func (p *StreamDataProcessor) runStage(name string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("processing stage failed",
				zap.String("stage", name),
				zap.Any("panic", r),
			)
			err = errStageFailed
		}
	}()
	fn()
	return nil
}

var errStageFailed = &stageError{}

type stageError struct{}

func (*stageError) Error() string { return "processing stage failed" }

// Stats returns processing counters and the rolling quality report.
// SuccessRate is 1.0 when nothing has been processed yet.
func (p *StreamDataProcessor) Stats() ProcessorStats {
	p.mu.Lock()
	processed, errs := p.processedCount, p.errorCount
	p.mu.Unlock()

	rate := 1.0
	if processed+errs > 0 {
		rate = float64(processed) / float64(processed+errs)
	}
	return ProcessorStats{
		ProcessedCount: processed,
		ErrorCount:     errs,
		SuccessRate:    rate,
		QualityReport:  p.quality.Report(),
		BatchSize:      p.opts.BatchSize,
	}
}

// QualityMonitor exposes the underlying monitor for alert checks.
func (p *StreamDataProcessor) QualityMonitor() *DataQualityMonitor { return p.quality }

// FeatureHistory exposes the retained per-stream feature vectors.
func (p *StreamDataProcessor) FeatureHistory(streamType string) []anomaly.FeatureVector {
	return p.extractor.History(streamType)
}
