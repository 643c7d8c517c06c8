package capture

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synthesishq/synthesis-agent/internal/config"
	"github.com/synthesishq/synthesis-agent/internal/errors"
	"github.com/synthesishq/synthesis-agent/internal/logging"
	"github.com/synthesishq/synthesis-agent/internal/metrics"
	"github.com/synthesishq/synthesis-agent/internal/store"
	"github.com/synthesishq/synthesis-agent/internal/windowctx"
)

// Pipeline states. Only idle accepts a new capture; there is no queueing.
const (
	stateIdle      = "idle"
	stateCapturing = "capturing"
	stateSelecting = "selecting"
	stateUploading = "uploading"
)

// ContextResolver resolves a selected region to its source context.
type ContextResolver interface {
	Resolve(ctx context.Context, region windowctx.Region) windowctx.Context
}

// UploadClient ships a finished capture to the backend.
type UploadClient interface {
	Upload(ctx context.Context, imagePath, accessToken string, srcCtx windowctx.Context) error
}

// Orchestrator drives one capture at a time through screenshot, region
// selection, concurrent context/token resolution and upload. Failures
// along the way discard the capture; they never surface to the trigger.
type Orchestrator struct {
	cfg      config.CaptureConfig
	shooter  Screenshotter
	selector RegionSelector
	resolver ContextResolver
	tokens   TokenSource
	uploader UploadClient
	journal  store.Journal
	temp     *TempFiles
	metrics  *metrics.Metrics
	logger   *logging.Logger

	mu    sync.Mutex
	state string
	wg    sync.WaitGroup
}

// NewOrchestrator wires the capture pipeline. journal and m may be nil.
func NewOrchestrator(cfg config.CaptureConfig, shooter Screenshotter, selector RegionSelector, resolver ContextResolver, tokens TokenSource, uploader UploadClient, journal store.Journal, temp *TempFiles, m *metrics.Metrics, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		shooter:  shooter,
		selector: selector,
		resolver: resolver,
		tokens:   tokens,
		uploader: uploader,
		journal:  journal,
		temp:     temp,
		metrics:  m,
		logger:   logger,
		state:    stateIdle,
	}
}

// TriggerCapture starts a capture in the background and returns its ID.
// A capture already in flight is rejected, not queued.
func (o *Orchestrator) TriggerCapture(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.state != stateIdle {
		o.mu.Unlock()
		return "", &errors.ErrCaptureInProgress{}
	}
	o.state = stateCapturing
	o.mu.Unlock()

	id := uuid.NewString()

	// The pipeline outlives the triggering request; carry only the
	// correlation ID forward.
	runCtx := logging.WithCorrelationID(context.Background(), logging.GetCorrelationID(ctx))

	o.wg.Add(1)
	go o.run(runCtx, id)
	return id, nil
}

// Wait blocks until any in-flight capture finishes. Used at shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// State returns the current pipeline state.
func (o *Orchestrator) State() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) run(ctx context.Context, id string) {
	defer o.wg.Done()
	defer o.setState(stateIdle)

	shot := o.temp.NewPath()
	defer o.temp.Cleanup(shot)

	start := time.Now()
	if err := o.shooter.Capture(ctx, shot); err != nil {
		o.logger.WarnWithContext(ctx, "screenshot failed", "capture_id", id, "error", err.Error())
		o.count("screenshot_failed")
		return
	}
	o.observe("screenshot", start)

	o.setState(stateSelecting)
	start = time.Now()
	region, selected, err := o.selector.Select(ctx)
	o.observe("selection", start)
	if err != nil {
		o.logger.WarnWithContext(ctx, "region selector failed", "capture_id", id, "error", err.Error())
		o.count("cancelled")
		return
	}
	if !selected {
		o.logger.InfoWithContext(ctx, "capture cancelled by user", "capture_id", id)
		o.count("cancelled")
		return
	}

	o.setState(stateUploading)

	// Context resolution and token retrieval are independent; run them
	// concurrently and join before the upload.
	start = time.Now()
	resolved := make(chan windowctx.Context, 1)
	tokens := make(chan string, 1)
	go func() {
		resolved <- o.resolver.Resolve(ctx, region)
	}()
	go func() {
		token, err := o.tokens.Token(ctx)
		if err != nil {
			o.logger.WarnWithContext(ctx, "token retrieval failed", "capture_id", id, "error", err.Error())
		}
		tokens <- token
	}()
	srcCtx := <-resolved
	token := <-tokens
	o.observe("resolve", start)

	if token == "" {
		o.logger.WarnWithContext(ctx, "no session, discarding capture", "capture_id", id)
		o.count("no_session")
		return
	}

	cropped := o.temp.NewPath()
	defer o.temp.Cleanup(cropped)
	if err := CropPNG(shot, cropped, region, o.cfg.ScaleFactor); err != nil {
		o.logger.WarnWithContext(ctx, "crop failed", "capture_id", id, "error", err.Error())
		o.count("crop_failed")
		return
	}

	start = time.Now()
	if err := o.uploader.Upload(ctx, cropped, token, srcCtx); err != nil {
		o.logger.WarnWithContext(ctx, "upload failed", "capture_id", id, "error", err.Error())
		o.count("upload_failed")
		return
	}
	o.observe("upload", start)

	if o.journal != nil {
		rec := store.CaptureRecord{
			ID:         id,
			SourceApp:  srcCtx.SourceApp,
			SourceURL:  srcCtx.SourceURL,
			UploadedAt: time.Now().UTC(),
		}
		if err := o.journal.RecordCapture(rec); err != nil {
			o.logger.WarnWithContext(ctx, "failed to journal capture", "capture_id", id, "error", err.Error())
		}
	}

	o.count("uploaded")
	o.logger.InfoWithContext(ctx, "capture uploaded", "capture_id", id)
}

func (o *Orchestrator) setState(state string) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

func (o *Orchestrator) observe(stage string, start time.Time) {
	if o.metrics != nil {
		o.metrics.CaptureStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func (o *Orchestrator) count(outcome string) {
	if o.metrics != nil {
		o.metrics.CapturesTotal.WithLabelValues(outcome).Inc()
	}
}
