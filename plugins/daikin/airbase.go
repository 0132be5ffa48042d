package daikin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/barneyonline/core/internal/hub"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultModel          = "AirBase"

	resourceBasicInfo   = "common/basic_info"
	resourceControlInfo = "aircon/get_control_info"
	resourceModelInfo   = "aircon/get_model_info"
	resourceSensorInfo  = "aircon/get_sensor_info"
	resourceZoneSetting = "aircon/get_zone_setting"
	resourceSetZone     = "aircon/set_zone_setting"
)

var (
	ErrZoneNotFound    = errors.New("zone not found")
	ErrUnknownZoneKey  = errors.New("unknown zone setting")
	ErrInvalidSetpoint = errors.New("zone setpoint must be a finite number")
)

// zoneKeys are the list settings set_zone_setting accepts.
var zoneKeys = []string{"zone_onoff", "lztemp_c", "lztemp_h"}

var modeNames = map[string]hub.HVACMode{
	"0": hub.HVACModeFanOnly,
	"1": hub.HVACModeHeat,
	"2": hub.HVACModeCool,
	"3": hub.HVACModeHeatCool,
	"7": hub.HVACModeDry,
}

// Zone is one damper zone of an AirBase system.
type Zone struct {
	Name string
	On   bool
	// Temperature is the zone setpoint, 0 when the unit has no zone
	// temperature control.
	Temperature float64
}

// Option configures an AirBase client.
type Option func(*AirBase) error

// WithHTTPClient replaces the HTTP client, e.g. with a rate-limited one.
func WithHTTPClient(client *http.Client) Option {
	return func(a *AirBase) error {
		if client == nil {
			return errors.New("http client is nil")
		}
		a.client = client
		return nil
	}
}

// WithTimeout bounds each request. Default is 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(a *AirBase) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		a.timeout = d
		return nil
	}
}

// WithLogger sets a structured logger for request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(a *AirBase) error {
		a.logger = logger
		return nil
	}
}

// AirBase talks to a Daikin AirBase (BRP15B61) adapter over its local HTTP API.
type AirBase struct {
	host    string
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	values Values
}

// NewAirBase builds a client for host, which is an address or a base URL.
func NewAirBase(host string, opts ...Option) (*AirBase, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, errors.New("host is required")
	}
	baseURL := host
	if !strings.Contains(host, "://") {
		baseURL = "http://" + host
	}

	a := &AirBase{
		host:    host,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
		timeout: defaultRequestTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		values:  make(Values),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	return a, nil
}

// Init reads identity, model and current state.
func (a *AirBase) Init(ctx context.Context) error {
	for _, resource := range []string{resourceBasicInfo, resourceModelInfo} {
		values, err := a.get(ctx, resource, "")
		if err != nil {
			return err
		}
		a.merge(values)
	}
	if a.MAC() == "" {
		return fmt.Errorf("%s: basic_info has no mac", a.host)
	}
	return a.Update(ctx)
}

// Update refreshes control, sensor and zone state.
func (a *AirBase) Update(ctx context.Context) error {
	for _, resource := range []string{resourceControlInfo, resourceSensorInfo, resourceZoneSetting} {
		values, err := a.get(ctx, resource, "")
		if err != nil {
			return err
		}
		a.merge(values)
	}
	return nil
}

func (a *AirBase) Host() string {
	return a.host
}

func (a *AirBase) MAC() string {
	v, _ := a.value("mac")
	return v
}

func (a *AirBase) Name() string {
	v, _ := a.value("name")
	return v
}

func (a *AirBase) Model() string {
	if v, ok := a.value("model"); ok && v != "" && v != "NOTSUPPORT" {
		return v
	}
	return defaultModel
}

func (a *AirBase) Firmware() string {
	v, _ := a.value("ver")
	return strings.ReplaceAll(v, "_", ".")
}

// Values returns a copy of the raw values.
func (a *AirBase) Values() Values {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.values.Clone()
}

// IsOn reports whether the unit is powered on.
func (a *AirBase) IsOn() bool {
	v, _ := a.value("pow")
	return v == "1"
}

// HVACMode maps the unit mode; unknown modes read as heat_cool.
func (a *AirBase) HVACMode() hub.HVACMode {
	v, _ := a.value("mode")
	if mode, ok := modeNames[v]; ok {
		return mode
	}
	return hub.HVACModeHeatCool
}

// TargetTemperature returns the unit setpoint when it reports one.
func (a *AirBase) TargetTemperature() (float64, bool) {
	return a.temperature("stemp")
}

func (a *AirBase) InsideTemperature() (float64, bool) {
	return a.temperature("htemp")
}

func (a *AirBase) OutsideTemperature() (float64, bool) {
	return a.temperature("otemp")
}

// SupportsZoneTemperature reports whether zones carry their own setpoint.
func (a *AirBase) SupportsZoneTemperature() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return supportsZoneTemperature(a.values)
}

// Zones lists the configured zones, nil when the unit reports none.
func (a *AirBase) Zones() []Zone {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return zonesFrom(a.values)
}

// SetZone changes element zoneID of the zone list setting key.
func (a *AirBase) SetZone(ctx context.Context, zoneID int, key, value string) error {
	if !slices.Contains(zoneKeys, key) {
		return fmt.Errorf("%w: %s", ErrUnknownZoneKey, key)
	}

	current, err := a.get(ctx, resourceZoneSetting, "")
	if err != nil {
		return err
	}

	list := current.List(key)
	if zoneID < 0 || zoneID >= len(list) {
		return fmt.Errorf("%w: %d (unit has %d)", ErrZoneNotFound, zoneID, len(list))
	}
	list[zoneID] = value
	current[key] = encodeList(list)

	query := []string{
		"zone_name=" + current["zone_name"],
		"zone_onoff=" + encodeList(current.List("zone_onoff")),
	}
	if supportsZoneTemperature(current) {
		query = append(query,
			"lztemp_c="+encodeList(current.List("lztemp_c")),
			"lztemp_h="+encodeList(current.List("lztemp_h")),
		)
	}

	if _, err := a.get(ctx, resourceSetZone, strings.Join(query, "&")); err != nil {
		return err
	}
	a.merge(current)
	return nil
}

// SetZoneTemperature writes temperature as the heating setpoint of zoneID.
func (a *AirBase) SetZoneTemperature(ctx context.Context, zoneID int, temperature float64) error {
	value, err := zoneSetpoint(temperature)
	if err != nil {
		return err
	}
	return a.SetZone(ctx, zoneID, "lztemp_h", value)
}

func (a *AirBase) TurnOnZone(ctx context.Context, zoneID int) error {
	return a.SetZone(ctx, zoneID, "zone_onoff", "1")
}

func (a *AirBase) TurnOffZone(ctx context.Context, zoneID int) error {
	return a.SetZone(ctx, zoneID, "zone_onoff", "0")
}

func (a *AirBase) get(ctx context.Context, resource, query string) (Values, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	url := a.baseURL + "/skyfi/" + resource
	if query != "" {
		url += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", a.host, resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", a.host, resource, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: status %d: %s", a.host, resource, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	values, err := ParseResponse(string(body))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", a.host, resource, err)
	}
	a.logger.Debug("airbase response", "host", a.host, "resource", resource, "keys", len(values))
	return values, nil
}

func (a *AirBase) merge(values Values) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values.Merge(values)
}

func (a *AirBase) value(key string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.values.Get(key)
}

func (a *AirBase) temperature(key string) (float64, bool) {
	v, ok := a.value(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// zoneSetpoint rounds half to even; the adapter takes whole degrees.
func zoneSetpoint(temperature float64) (string, error) {
	if math.IsNaN(temperature) || math.IsInf(temperature, 0) {
		return "", fmt.Errorf("%w: %v", ErrInvalidSetpoint, temperature)
	}
	return strconv.Itoa(int(math.RoundToEven(temperature))), nil
}

func supportsZoneTemperature(v Values) bool {
	_, cool := v["lztemp_c"]
	_, heat := v["lztemp_h"]
	return cool && heat
}

func zonesFrom(v Values) []Zone {
	names := v.List("zone_name")
	if len(names) == 0 {
		return nil
	}

	count := len(names)
	if en, ok := v.Get("en_zone"); ok {
		if n, err := strconv.Atoi(en); err == nil && n >= 0 && n < count {
			count = n
		}
	}

	onoff := v.List("zone_onoff")
	var temps []string
	if supportsZoneTemperature(v) {
		key := "lztemp_h"
		if mode, _ := v.Get("mode"); mode == "2" {
			key = "lztemp_c"
		}
		temps = v.List(key)
	}

	zones := make([]Zone, 0, count)
	for i := 0; i < count; i++ {
		z := Zone{Name: strings.Trim(names[i], " +,")}
		if i < len(onoff) {
			z.On = onoff[i] == "1"
		}
		if i < len(temps) {
			z.Temperature, _ = strconv.ParseFloat(temps[i], 64)
		}
		zones = append(zones, z)
	}
	return zones
}
