// Package arcgis talks to ArcGIS ImageServer REST endpoints: the exportImage
// operation that returns raster data for a bounding box, and the service
// metadata probe used to validate a service before downloading from it.
package arcgis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"bathy-export/internal/downloads"
	"bathy-export/internal/geo"
)

const (
	// FormatTIFF asks the server for a typed raster response
	FormatTIFF = "tiff"

	// FormatPNG is the plain-image fallback when a typed response cannot
	// be decoded
	FormatPNG = "png"

	// Interpolation used for all exports; bilinear resampling matches the
	// continuous nature of depth grids
	Interpolation = "RSP_BilinearInterpolation"

	// ExportTimeout bounds a single exportImage call. The server renders
	// the raster synchronously, so large tiles can take minutes.
	ExportTimeout = 300 * time.Second

	// ProbeTimeout bounds the service metadata request
	ProbeTimeout = 15 * time.Second

	UserAgent = "bathy-export/1.0"
)

// ExportParams describes one exportImage call
type ExportParams struct {
	BBox   geo.BoundingBox
	Width  int
	Height int

	// BBoxSR / ImageSR are EPSG codes for the bbox and response rasters;
	// zero means the service default
	BBoxSR  int
	ImageSR int

	// Format is FormatTIFF or FormatPNG
	Format string
}

// ExportResult is the raw server response
type ExportResult struct {
	Data        []byte
	ContentType string
}

// ServiceInfo is the subset of the ?f=json service descriptor the
// downloader cares about
type ServiceInfo struct {
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	ServiceDataType string  `json:"serviceDataType"`
	PixelSizeX      float64 `json:"pixelSizeX"`
	PixelSizeY      float64 `json:"pixelSizeY"`
	PixelType       string  `json:"pixelType"`
	BandCount       int     `json:"bandCount"`

	MinValues []float64 `json:"minValues"`
	MaxValues []float64 `json:"maxValues"`

	Extent struct {
		XMin             float64 `json:"xmin"`
		YMin             float64 `json:"ymin"`
		XMax             float64 `json:"xmax"`
		YMax             float64 `json:"ymax"`
		SpatialReference struct {
			WKID int `json:"wkid"`
		} `json:"spatialReference"`
	} `json:"extent"`

	// Error is populated when the service responds 200 with an embedded
	// JSON error, which ArcGIS servers routinely do
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client issues requests against an ImageServer endpoint
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client with system proxy support
func NewClient(logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   ExportTimeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// ExportImage calls <serviceURL>/exportImage and returns the raw response
// bytes. Errors are classified: HTTP 500 means the server refused or failed
// the render (usually the area is too large), other statuses are generic
// HTTP errors, and transport failures are network errors.
func (c *Client) ExportImage(ctx context.Context, serviceURL string, p ExportParams) (*ExportResult, error) {
	q := url.Values{}
	q.Set("bbox", p.BBox.String())
	q.Set("size", fmt.Sprintf("%d,%d", p.Width, p.Height))
	if p.BBoxSR != 0 {
		q.Set("bboxSR", strconv.Itoa(p.BBoxSR))
	}
	if p.ImageSR != 0 {
		q.Set("imageSR", strconv.Itoa(p.ImageSR))
	}
	format := p.Format
	if format == "" {
		format = FormatTIFF
	}
	q.Set("format", format)
	q.Set("pixelType", "UNKNOWN")
	q.Set("noData", "true")
	q.Set("interpolation", Interpolation)
	q.Set("f", "image")

	reqURL := serviceURL + "/exportImage?" + q.Encode()
	c.logger.Debug("exportImage request",
		zap.String("bbox", p.BBox.String()),
		zap.Int("width", p.Width),
		zap.Int("height", p.Height),
		zap.String("format", format))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, downloads.WrapError(downloads.KindNetworkError, "failed to create request", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil, downloads.Cancelled
		}
		return nil, downloads.WrapError(downloads.KindNetworkError, "exportImage request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusInternalServerError {
		e := downloads.NewError(downloads.KindServerOverloaded,
			"server error (500): the requested area may be too large, or the server is temporarily unavailable; try a smaller area or enable tiling")
		e.StatusCode = resp.StatusCode
		return nil, e
	}
	if resp.StatusCode != http.StatusOK {
		e := downloads.NewError(downloads.KindHTTPError,
			fmt.Sprintf("exportImage failed with status %d", resp.StatusCode))
		e.StatusCode = resp.StatusCode
		return nil, e
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, downloads.Cancelled
		}
		return nil, downloads.WrapError(downloads.KindNetworkError, "failed to read exportImage response", err)
	}

	return &ExportResult{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Probe fetches the service descriptor from <serviceURL>?f=json. It reports
// an error both for transport failures and for descriptors that embed an
// ArcGIS error object.
func (c *Client) Probe(ctx context.Context, serviceURL string) (*ServiceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceURL+"?f=json", nil)
	if err != nil {
		return nil, downloads.WrapError(downloads.KindNetworkError, "failed to create request", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, downloads.WrapError(downloads.KindNetworkError, "service probe failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e := downloads.NewError(downloads.KindHTTPError,
			fmt.Sprintf("service probe failed with status %d", resp.StatusCode))
		e.StatusCode = resp.StatusCode
		return nil, e
	}

	var info ServiceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, downloads.WrapError(downloads.KindUnreadableResponse, "failed to parse service descriptor", err)
	}
	if info.Error != nil {
		return nil, downloads.NewError(downloads.KindHTTPError,
			fmt.Sprintf("service error %d: %s", info.Error.Code, info.Error.Message))
	}

	c.logger.Debug("service probe",
		zap.String("name", info.Name),
		zap.String("pixelType", info.PixelType),
		zap.Float64("pixelSizeX", info.PixelSizeX))

	return &info, nil
}
