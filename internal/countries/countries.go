package countries

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RichardoC/aether-chat/internal/metrics"
	"github.com/RichardoC/aether-chat/internal/models"
)

const DefaultURL = "https://restcountries.com/v3.1/all?fields=name,cca2,idd"

// FailureNotice is shown when the selector falls back to the built-in list.
const FailureNotice = "Failed to load countries"

var fallback = []models.Country{
	{Name: "United States", Code: "US", DialCode: "+1"},
	{Name: "United Kingdom", Code: "GB", DialCode: "+44"},
	{Name: "India", Code: "IN", DialCode: "+91"},
	{Name: "Canada", Code: "CA", DialCode: "+1"},
	{Name: "Australia", Code: "AU", DialCode: "+61"},
	{Name: "Germany", Code: "DE", DialCode: "+49"},
	{Name: "France", Code: "FR", DialCode: "+33"},
	{Name: "Japan", Code: "JP", DialCode: "+81"},
	{Name: "China", Code: "CN", DialCode: "+86"},
	{Name: "Brazil", Code: "BR", DialCode: "+55"},
	{Name: "Mexico", Code: "MX", DialCode: "+52"},
	{Name: "Spain", Code: "ES", DialCode: "+34"},
	{Name: "Italy", Code: "IT", DialCode: "+39"},
	{Name: "South Korea", Code: "KR", DialCode: "+82"},
	{Name: "Netherlands", Code: "NL", DialCode: "+31"},
}

// Fallback returns the built-in country list.
func Fallback() []models.Country {
	out := make([]models.Country, len(fallback))
	copy(out, fallback)
	return out
}

type Config struct {
	Enabled  bool
	URL      string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type Result struct {
	Countries []models.Country `json:"countries"`
	Notice    string           `json:"notice,omitempty"`
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	cached    []models.Country
	fetchedAt time.Time
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		now:    time.Now,
	}
}

// apiCountry is the subset of the restcountries v3.1 payload we read.
type apiCountry struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	CCA2 string `json:"cca2"`
	IDD  struct {
		Root     string   `json:"root"`
		Suffixes []string `json:"suffixes"`
	} `json:"idd"`
}

// List never returns an empty selector: on failure it serves the built-in
// list together with a notice.
func (c *Client) List(ctx context.Context) Result {
	if !c.cfg.Enabled {
		return Result{Countries: Fallback()}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.now().Sub(c.fetchedAt) < c.cfg.CacheTTL {
		return Result{Countries: clone(c.cached)}
	}

	list, err := c.fetch(ctx)
	if err != nil {
		metrics.CountryFetchFailures.Inc()
		c.logger.Warn("failed to fetch countries", zap.Error(err), zap.String("url", c.cfg.URL))
		return Result{Countries: Fallback(), Notice: FailureNotice}
	}

	c.cached = list
	c.fetchedAt = c.now()
	return Result{Countries: clone(list)}
}

func (c *Client) fetch(ctx context.Context) ([]models.Country, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload []apiCountry
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode countries: %w", err)
	}

	list := make([]models.Country, 0, len(payload))
	for _, p := range payload {
		if p.IDD.Root == "" || p.Name.Common == "" {
			continue
		}
		dial := p.IDD.Root
		if len(p.IDD.Suffixes) == 1 {
			dial += p.IDD.Suffixes[0]
		}
		list = append(list, models.Country{Name: p.Name.Common, Code: p.CCA2, DialCode: dial})
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("no countries with dial codes in response")
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func clone(in []models.Country) []models.Country {
	out := make([]models.Country, len(in))
	copy(out, in)
	return out
}
