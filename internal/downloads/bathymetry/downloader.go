package bathymetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"bathy-export/internal/arcgis"
	"bathy-export/internal/downloads"
	"bathy-export/internal/geo"
	"bathy-export/internal/raster"
	"bathy-export/internal/utils/naming"
)

// Exporter is the minimal client surface the engine needs; *arcgis.Client
// satisfies it
type Exporter interface {
	ExportImage(ctx context.Context, serviceURL string, p arcgis.ExportParams) (*arcgis.ExportResult, error)
}

// Options configures one download run
type Options struct {
	// Source is the depth (or classification, when exporting TID directly)
	// service to fetch
	Source raster.Source

	// Classification is the companion TID service, required whenever any
	// requested mode filters by measurement type
	Classification *raster.Source

	// Request carries the region, canvas size, CRS and output directory
	Request downloads.Request

	// Modes lists the outputs to produce; empty means a single combined
	// (unmasked) output
	Modes []MaskMode

	Progress    downloads.ProgressFunc
	Status      downloads.StatusFunc
	StateChange downloads.StateFunc

	// TrackEvent receives analytics events if the user opted in
	TrackEvent func(event string, properties map[string]interface{})
}

// Downloader runs one export from planning through written files. A
// Downloader is single-use: create one per run.
type Downloader struct {
	client Exporter
	logger *zap.Logger
	opts   Options

	cancelled     atomic.Bool
	cancelFunc    context.CancelFunc
	lastPercent   int
	lastStateRank int
	mu            sync.Mutex
}

// stateOrder ranks the pipeline stages. Multi-output runs revisit masking and
// writing per output; the caller-facing stream must still never move backward,
// so repeated or lower-ranked stages are swallowed. Terminal states carry no
// rank and always pass.
var stateOrder = map[downloads.State]int{
	downloads.StatePlanning:     1,
	downloads.StateFetching:     2,
	downloads.StateAssembling:   3,
	downloads.StateMasking:      4,
	downloads.StateReprojecting: 5,
	downloads.StateWriting:      6,
	downloads.StateDone:         7,
}

// NewDownloader wires a run
func NewDownloader(client Exporter, logger *zap.Logger, opts Options) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.Modes) == 0 {
		opts.Modes = []MaskMode{MaskCombined}
	}
	return &Downloader{client: client, logger: logger, opts: opts}
}

// Cancel requests cooperative cancellation. It is safe to call from any
// goroutine and at any point in the run; the engine observes it before the
// next fetch or pipeline stage.
func (d *Downloader) Cancel() {
	d.cancelled.Store(true)
	d.mu.Lock()
	cancel := d.cancelFunc
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes the export and returns the paths of the files it wrote. On
// cancellation it returns downloads.Cancelled and leaves no output files
// behind; partial outputs are likewise removed on failure.
func (d *Downloader) Run(ctx context.Context) (paths []string, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.mu.Lock()
	d.cancelFunc = cancel
	d.mu.Unlock()

	var written []string
	defer func() {
		if err == nil {
			return
		}
		for _, p := range written {
			os.Remove(p)
		}
		if downloads.IsCancelled(err) {
			d.setState(downloads.StateCancelled)
		} else {
			d.setState(downloads.StateFailed)
		}
	}()

	d.setState(downloads.StatePlanning)
	d.emitProgress(0)

	req := d.opts.Request
	if err := req.Validate(); err != nil {
		return nil, err
	}

	needsClassification := false
	for _, m := range d.opts.Modes {
		if m.RequiresClassification() {
			needsClassification = true
		}
	}
	if needsClassification && d.opts.Classification == nil {
		return nil, downloads.NewError(downloads.KindUnexpectedShape,
			"masked outputs requested but no classification source configured")
	}

	plan, err := PlanTiles(req.BBox, req.Width, req.Height, PlanOptions{Tiling: req.Tiling})
	if err != nil {
		return nil, err
	}

	if req.Width > LargeCanvasThreshold || req.Height > LargeCanvasThreshold {
		d.emitStatus(fmt.Sprintf(
			"Large request: %dx%d pixels. This may take a while and produce a large file.",
			req.Width, req.Height))
		d.logger.Warn("large canvas requested",
			zap.Int("width", req.Width), zap.Int("height", req.Height))
	}

	rule := raster.RuleForClass(d.opts.Source.Class)

	totalFetches := len(plan.Tiles)
	if needsClassification {
		totalFetches *= 2
	}
	done := 0

	d.setState(downloads.StateFetching)
	d.emitProgress(10)
	d.emitStatus(fmt.Sprintf("Downloading %s (%d fetch(es))...", d.opts.Source.Name, len(plan.Tiles)))

	depth, err := d.fetchCanvas(ctx, plan, d.opts.Source, rule, &done, totalFetches)
	if err != nil {
		return nil, err
	}

	var classification *raster.Buffer
	if needsClassification {
		classSource := *d.opts.Classification
		classRule := raster.RuleForClass(classSource.Class)
		d.emitStatus(fmt.Sprintf("Downloading %s (%d fetch(es))...", classSource.Name, len(plan.Tiles)))
		classification, err = d.fetchCanvas(ctx, plan, classSource, classRule, &done, totalFetches)
		if err != nil {
			return nil, err
		}
	}

	d.setState(downloads.StateAssembling)
	d.emitProgress(90)

	timestamp := time.Now()
	for _, mode := range d.opts.Modes {
		if err := d.checkCancelled(ctx); err != nil {
			return nil, err
		}

		buf := depth.Clone()
		if mode.RequiresClassification() {
			d.setState(downloads.StateMasking)
			d.emitStatus(fmt.Sprintf("Applying %s mask...", mode))
			if err := ApplyMask(buf, classification, mode); err != nil {
				return nil, err
			}
		}

		if err := d.checkCancelled(ctx); err != nil {
			return nil, err
		}

		if req.TargetCRS != "" && req.TargetCRS != req.CRS {
			d.setState(downloads.StateReprojecting)
			d.emitStatus(fmt.Sprintf("Reprojecting to %s...", req.TargetCRS))
			buf, err = Reproject(buf, req.TargetCRS)
			if err != nil {
				return nil, err
			}
		}

		if err := d.checkCancelled(ctx); err != nil {
			return nil, err
		}

		d.setState(downloads.StateWriting)
		filename := naming.OutputFilename(d.opts.Source.Name, mode.FileLabel(), timestamp)
		if d.opts.Source.Class == raster.ClassLegacy && mode == MaskCombined {
			// Custom sources carry the region in the name instead of a mode
			filename = naming.RegionFilename(d.opts.Source.Name,
				req.BBox.YMin, req.BBox.XMin, req.BBox.YMax, req.BBox.XMax, timestamp)
		}
		path := filepath.Join(req.OutputDir, filename)
		if err := downloads.ValidateOutputPath(req.OutputDir, path); err != nil {
			return nil, downloads.WrapError(downloads.KindWriteFailure, "invalid output path", err)
		}
		d.emitStatus(fmt.Sprintf("Writing %s...", filename))
		if err := WriteGeoTIFF(buf, rule, path); err != nil {
			return nil, err
		}
		written = append(written, path)
		d.logger.Info("wrote output",
			zap.String("path", path),
			zap.String("mode", string(mode)),
			zap.String("type", rule.Type.String()))
	}

	if err := d.checkCancelled(ctx); err != nil {
		return nil, err
	}

	d.setState(downloads.StateDone)
	d.emitProgress(100)
	d.trackEvent("download_completed", map[string]interface{}{
		"source": d.opts.Source.Name,
		"tiles":  len(plan.Tiles),
		"modes":  len(d.opts.Modes),
		"width":  req.Width,
		"height": req.Height,
	})
	return written, nil
}

// fetchCanvas downloads every planned tile from one service into a fresh
// canvas, blending overlap margins as it goes. Fetches run sequentially; the
// engine is deliberately gentle with the upstream server.
func (d *Downloader) fetchCanvas(ctx context.Context, plan *Plan, source raster.Source, rule raster.Rule, done *int, total int) (*raster.Buffer, error) {
	canvas := raster.NewBuffer(plan.Width, plan.Height)
	t := plan.Transform
	canvas.Transform = &t
	canvas.CRS = d.opts.Request.CRS

	epsg := 0
	if d.opts.Request.CRS != "" {
		code, err := geo.EPSGCode(d.opts.Request.CRS)
		if err != nil {
			return nil, downloads.WrapError(downloads.KindUnexpectedShape, "request CRS", err)
		}
		epsg = code
	}

	for i, tile := range plan.Tiles {
		if err := d.checkCancelled(ctx); err != nil {
			return nil, err
		}

		buf, err := d.fetchTile(ctx, source, rule, tile, epsg)
		if err != nil {
			return nil, err
		}
		if err := BlendTile(canvas, buf, tile.Fetch); err != nil {
			return nil, err
		}

		*done++
		d.emitProgress(10 + 80*(*done)/total)
		d.logger.Debug("tile merged",
			zap.String("source", source.Name),
			zap.Int("tile", i+1),
			zap.Int("of", len(plan.Tiles)))
	}
	return canvas, nil
}

// fetchTile performs one exportImage call and decodes it. When the typed
// request comes back undecodable the tile is retried exactly once as a plain
// image; a second failure surfaces both decode errors.
func (d *Downloader) fetchTile(ctx context.Context, source raster.Source, rule raster.Rule, tile TileSpec, epsg int) (*raster.Buffer, error) {
	params := arcgis.ExportParams{
		BBox:    tile.BBox,
		Width:   tile.Fetch.Width(),
		Height:  tile.Fetch.Height(),
		BBoxSR:  epsg,
		ImageSR: epsg,
		Format:  arcgis.FormatTIFF,
	}

	res, err := d.client.ExportImage(ctx, source.URL, params)
	if err != nil {
		return nil, err
	}

	decoded, decodeErr := raster.DecodeResponse(res.ContentType, res.Data)
	if decodeErr != nil {
		d.logger.Warn("typed decode failed, retrying as plain image",
			zap.String("source", source.Name),
			zap.Error(decodeErr))

		params.Format = arcgis.FormatPNG
		retry, err := d.client.ExportImage(ctx, source.URL, params)
		if err != nil {
			return nil, err
		}
		decoded, err = raster.DecodeResponse(retry.ContentType, retry.Data)
		if err != nil {
			return nil, downloads.WrapError(downloads.KindUnreadableResponse,
				"response could not be decoded as a raster or image",
				fmt.Errorf("typed attempt: %w; image retry: %v", decodeErr, err))
		}
	}

	if decoded.Diagnostic != "" {
		d.emitStatus("Warning: " + decoded.Diagnostic)
		d.logger.Warn(decoded.Diagnostic, zap.String("source", source.Name))
	}

	rule.MaskDeclaredNodata(decoded.Buffer, decoded.DeclaredNodata)
	return decoded.Buffer, nil
}

func (d *Downloader) checkCancelled(ctx context.Context) error {
	if d.cancelled.Load() || ctx.Err() != nil {
		return downloads.Cancelled
	}
	return nil
}

func (d *Downloader) emitProgress(percent int) {
	d.mu.Lock()
	if percent <= d.lastPercent && percent != 0 {
		d.mu.Unlock()
		return
	}
	d.lastPercent = percent
	d.mu.Unlock()
	if d.opts.Progress != nil {
		d.opts.Progress(percent)
	}
}

func (d *Downloader) emitStatus(message string) {
	if d.opts.Status != nil {
		d.opts.Status(message)
	}
}

func (d *Downloader) setState(state downloads.State) {
	if rank, ok := stateOrder[state]; ok {
		d.mu.Lock()
		if rank <= d.lastStateRank {
			d.mu.Unlock()
			return
		}
		d.lastStateRank = rank
		d.mu.Unlock()
	}
	if d.opts.StateChange != nil {
		d.opts.StateChange(state)
	}
}

func (d *Downloader) trackEvent(event string, properties map[string]interface{}) {
	if d.opts.TrackEvent != nil {
		d.opts.TrackEvent(event, properties)
	}
}
