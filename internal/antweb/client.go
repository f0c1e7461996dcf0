package antweb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/nao1215/antmaps/internal/config"
	"github.com/nao1215/antmaps/internal/model"
)

// Fixed parameters of the specimen query.
const (
	// SpecimenLimit is the number of upstream records requested.
	SpecimenLimit = 100

	// DateMin and DateMax bound the collection date of returned specimens.
	DateMin = "2017-03-01"
	DateMax = "2018-03-25"
)

const (
	opSpecimens  = "geoSpecimens"
	opTaxaImages = "taxaImages"
)

// Client issues AntWeb API requests over an injected *http.Client.
// It is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root. A trailing slash is ignored.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithMaxBodySize limits how many bytes of a response body are read.
// Non-positive values keep the default.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client. The httpClient is shared and owned by the caller;
// if nil, http.DefaultClient is used.
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		httpClient:  httpClient,
		baseURL:     config.DefaultBaseURL,
		maxBodySize: config.DefaultMaxBodySize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SpecimensURL returns the geo query URL for q. Coordinates are truncated to integers.
func (c *Client) SpecimensURL(q config.Query) string {
	return fmt.Sprintf("%s/geoSpecimens?coords=%d,%d&limit=%d&radius=%d&dateMin=%s&dateMax=%s",
		c.baseURL,
		int(q.Latitude),
		int(q.Longitude),
		SpecimenLimit,
		q.RadiusKm,
		DateMin,
		DateMax,
	)
}

// TaxaImagesURL returns the image lookup URL for one taxon.
func (c *Client) TaxaImagesURL(taxonName string, variant model.PhotoVariant) string {
	return fmt.Sprintf("%s/taxaImages?shotType=%s&taxonName=%s",
		c.baseURL,
		variant.Code(),
		url.QueryEscape(taxonName),
	)
}

// Specimens fetches the specimens within the query radius and returns their
// taxon identifiers in response order.
func (c *Client) Specimens(ctx context.Context, q config.Query) ([]model.SpecimenRecord, error) {
	reqURL := c.SpecimensURL(q)

	var records []model.SpecimenRecord
	err := c.get(ctx, opSpecimens, reqURL, func(body io.Reader) error {
		var err error
		records, err = decodeSpecimens(body)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched specimens", "url", reqURL, "count", len(records))
	return records, nil
}

// TaxonImage looks up the representative image of one taxon.
// A response without any image yields a reference without URL and a nil error.
func (c *Client) TaxonImage(ctx context.Context, taxonName string, variant model.PhotoVariant) (model.ImageReference, error) {
	reqURL := c.TaxaImagesURL(taxonName, variant)
	ref := model.ImageReference{TaxonName: taxonName}

	err := c.get(ctx, opTaxaImages, reqURL, func(body io.Reader) error {
		echoed, imageURL, ok, err := decodeTaxaImages(body)
		if err != nil {
			return err
		}
		if echoed != "" && echoed != taxonName {
			c.logger.Debug("taxon name echo differs", "requested", taxonName, "echoed", echoed)
		}
		if ok {
			ref.URL = imageURL
		}
		return nil
	})
	if err != nil {
		return model.ImageReference{}, err
	}

	return ref, nil
}

// get performs a GET request and hands the (size-limited) body to decode.
// Every failure is returned as a *FetchError.
func (c *Client) get(ctx context.Context, op, reqURL string, decode func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &FetchError{Op: op, URL: reqURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{Op: op, URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort
		return &FetchError{
			Op:         op,
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	body := &limitedReader{r: resp.Body, remaining: c.maxBodySize}
	if err := decode(body); err != nil {
		if body.exceeded {
			err = fmt.Errorf("response body exceeds %d bytes: %w", c.maxBodySize, err)
		}
		return &FetchError{Op: op, URL: reqURL, Err: err}
	}
	return nil
}

// limitedReader behaves like io.LimitReader but remembers whether the limit
// was hit, so a truncated body is reported as such.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		l.exceeded = true
		return 0, io.ErrUnexpectedEOF
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}
