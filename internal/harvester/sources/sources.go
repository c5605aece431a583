// Package sources implements the harvester's concrete entropy sources,
// grounded on original_source/services/harvester/sources/*.py. Each
// source's actual signal-capture mechanism (ICMP pings, audio capture)
// is deliberately out of scope per the spec's non-goals; those sources
// are modeled as capability contracts over an injected Pinger/Recorder
// collaborator so the harvester binary can wire in a real implementation
// at deploy time without this package depending on cgo or raw sockets.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const httpTimeout = 20 * time.Second

func getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("sources: build request: %w", err)
	}
	client := &http.Client{Timeout: httpTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sources: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sources: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("sources: read body: %w", err)
	}
	return json.Unmarshal(body, out)
}

// Currency samples a snapshot of USD exchange rates, grounded on
// original_source's services/harvester/sources/currency.py.
type Currency struct {
	APIURL string
}

// NewCurrency returns a Currency source targeting the public
// exchangerate-api.com endpoint, matching the original's default.
func NewCurrency() *Currency {
	return &Currency{APIURL: "https://api.exchangerate-api.com/v4/latest/USD"}
}

func (c *Currency) Name() string          { return "currency" }
func (c *Currency) Period() time.Duration { return 5 * time.Minute }

func (c *Currency) Sample(ctx context.Context) ([]byte, error) {
	var resp struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := getJSON(ctx, c.APIURL, &resp); err != nil {
		return nil, err
	}
	if len(resp.Rates) == 0 {
		return nil, nil
	}

	encoded, err := json.Marshal(resp.Rates)
	if err != nil {
		return nil, fmt.Errorf("sources: marshal rates: %w", err)
	}
	return encoded, nil
}

// city is one weather sample point, matching the original's fixed
// five-city list.
type city struct {
	Name      string
	Latitude  float64
	Longitude float64
}

var defaultCities = []city{
	{"London", 51.5074, -0.1278},
	{"New York", 40.7128, -74.0060},
	{"Tokyo", 35.6895, 139.6917},
	{"Sydney", -33.8688, 151.2093},
	{"Florianopolis", -27.5935, -48.5585},
}

// Weather samples current-weather readings across several cities,
// grounded on original_source's services/harvester/sources/weather.py.
type Weather struct {
	APIURL string
	Cities []city
}

// NewWeather returns a Weather source targeting the public
// open-meteo.com forecast endpoint across the original's five cities.
func NewWeather() *Weather {
	return &Weather{APIURL: "https://api.open-meteo.com/v1/forecast", Cities: defaultCities}
}

func (w *Weather) Name() string          { return "weather" }
func (w *Weather) Period() time.Duration { return 5 * time.Minute }

func (w *Weather) Sample(ctx context.Context) ([]byte, error) {
	var out strings.Builder
	for _, c := range w.Cities {
		url := fmt.Sprintf("%s?latitude=%g&longitude=%g&current_weather=true&timezone=auto", w.APIURL, c.Latitude, c.Longitude)
		var resp struct {
			CurrentWeather struct {
				Temperature float64 `json:"temperature"`
				WindSpeed   float64 `json:"windspeed"`
				WeatherCode int     `json:"weathercode"`
			} `json:"current_weather"`
		}
		if err := getJSON(ctx, url, &resp); err != nil {
			continue
		}
		fmt.Fprintf(&out, "%g%g%d", resp.CurrentWeather.Temperature, resp.CurrentWeather.WindSpeed, resp.CurrentWeather.WeatherCode)
	}
	if out.Len() == 0 {
		return nil, nil
	}
	return []byte(out.String()), nil
}

// BlockchainClient fetches the latest block hash from a chain endpoint;
// grounded on original_source's services/harvester_blockchain package,
// which the distilled spec's signal list (§1) mentions directly.
type BlockchainClient interface {
	LatestBlockHash(ctx context.Context) (string, error)
}

// HTTPBlockchainClient is a BlockchainClient backed by a block-explorer
// JSON API returning {"hash": "..."} for its latest-block endpoint.
type HTTPBlockchainClient struct {
	URL string
}

func (c *HTTPBlockchainClient) LatestBlockHash(ctx context.Context) (string, error) {
	var resp struct {
		Hash string `json:"hash"`
	}
	if err := getJSON(ctx, c.URL, &resp); err != nil {
		return "", err
	}
	return resp.Hash, nil
}

// Blockchain samples the latest block hash across one or more
// configured chains.
type Blockchain struct {
	clients []BlockchainClient
}

// NewBlockchain returns a Blockchain source polling each of clients.
func NewBlockchain(clients ...BlockchainClient) *Blockchain {
	return &Blockchain{clients: clients}
}

func (b *Blockchain) Name() string          { return "blockchain" }
func (b *Blockchain) Period() time.Duration { return time.Minute }

func (b *Blockchain) Sample(ctx context.Context) ([]byte, error) {
	var out strings.Builder
	for _, c := range b.clients {
		hash, err := c.LatestBlockHash(ctx)
		if err != nil || hash == "" {
			continue
		}
		out.WriteString(hash)
	}
	if out.Len() == 0 {
		return nil, nil
	}
	return []byte(out.String()), nil
}

// Pinger measures round-trip latency to a host. Its concrete
// implementation (ICMP sockets, which need elevated privileges) is an
// out-of-scope collaborator per the spec's non-goals; Latency is
// constructed with whichever Pinger the deploy environment provides.
type Pinger interface {
	Ping(ctx context.Context, host string) (time.Duration, error)
}

// Latency samples round-trip time to a fixed list of public resolvers,
// grounded on original_source's services/harvester/sources/latency.py.
type Latency struct {
	pinger  Pinger
	targets []string
}

// NewLatency returns a Latency source pinging the original's four
// public resolvers via pinger.
func NewLatency(pinger Pinger) *Latency {
	return &Latency{
		pinger: pinger,
		targets: []string{
			"8.8.8.8",
			"1.1.1.1",
			"9.9.9.9",
			"208.67.222.222",
		},
	}
}

func (l *Latency) Name() string          { return "latency" }
func (l *Latency) Period() time.Duration { return 10 * time.Second }

func (l *Latency) Sample(ctx context.Context) ([]byte, error) {
	var out strings.Builder
	for _, host := range l.targets {
		rtt, err := l.pinger.Ping(ctx, host)
		if err != nil {
			continue
		}
		fmt.Fprintf(&out, "%.15f", rtt.Seconds()*1000)
	}
	if out.Len() == 0 {
		return nil, nil
	}
	return []byte(out.String()), nil
}

// Recorder captures a short raw audio sample. Its concrete
// implementation (an OS audio stack) is an out-of-scope collaborator per
// the spec's non-goals; Radio is constructed with whichever Recorder the
// deploy environment provides.
type Recorder interface {
	Record(ctx context.Context, d time.Duration) ([]byte, error)
}

// Radio samples ambient audio noise, grounded on original_source's
// services/harvester/sources/radio.py.
type Radio struct {
	recorder Recorder
	sample   time.Duration
}

// NewRadio returns a Radio source capturing 100ms of audio via recorder,
// matching the original's record_seconds.
func NewRadio(recorder Recorder) *Radio {
	return &Radio{recorder: recorder, sample: 100 * time.Millisecond}
}

func (r *Radio) Name() string          { return "radio" }
func (r *Radio) Period() time.Duration { return 5 * time.Second }

func (r *Radio) Sample(ctx context.Context) ([]byte, error) {
	data, err := r.recorder.Record(ctx, r.sample)
	if err != nil {
		return nil, fmt.Errorf("sources: radio capture: %w", err)
	}
	return data, nil
}
