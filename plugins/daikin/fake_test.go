package daikin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/barneyonline/core/internal/hub"
	"github.com/barneyonline/core/internal/logging"
)

const (
	fakeMAC       = "A0B1C2D3E4F5"
	fakeBasicInfo = "ret=OK,type=aircon,reg=au,dst=1,ver=1_1_8,rev=1F,pow=1,err=0,location=0," +
		"name=%4c%6f%75%6e%67%65,icon=0,method=home only,port=30050,id=,pw=,lpw_flag=0,adp_kind=3," +
		"led=1,en_setzone=1,mac=" + fakeMAC + ",adp_mode=run,ssid=DaikinAP,err_type=0,err_code=0,en_ch=1"
	fakeModelInfo = "ret=OK,model=NOTSUPPORT,type=N,humd=0,s_humd=0,en_zone=8,en_filter_sign=1," +
		"acled=1,land=0,elec=0,temp=1,en_temp_setting=1,en_frate=1,cool_l=16,cool_h=32,heat_l=16,heat_h=32"
	fakeSensorInfo = "ret=OK,err=0,htemp=21,otemp=14,shum=-,cmpfreq=-"
)

// fakeAirBase answers the /skyfi/ endpoints of a four zone AirBase adapter.
type fakeAirBase struct {
	t      *testing.T
	server *httptest.Server

	mu         sync.Mutex
	power      string
	mode       string
	stemp      string
	zoneNames  []string
	zoneOnOff  []string
	lztempC    []string
	lztempH    []string
	failSets   int
	busySets   int
	setQueries []string
	requests   []string
}

func newFakeAirBase(t *testing.T) *fakeAirBase {
	t.Helper()
	f := &fakeAirBase{
		t:         t,
		power:     "1",
		mode:      "1",
		stemp:     "22",
		zoneNames: []string{"Living", "Kitchen", "Bed 1", "-"},
		zoneOnOff: []string{"1", "0", "1", "0"},
		lztempC:   []string{"24", "24", "24", "0"},
		lztempH:   []string{"22", "21", "20", "0"},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAirBase) URL() string {
	return f.server.URL
}

func (f *fakeAirBase) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.URL.Path)

	switch r.URL.Path {
	case "/skyfi/common/basic_info":
		_, _ = io.WriteString(w, fakeBasicInfo)
	case "/skyfi/aircon/get_model_info":
		_, _ = io.WriteString(w, fakeModelInfo)
	case "/skyfi/aircon/get_sensor_info":
		_, _ = io.WriteString(w, fakeSensorInfo)
	case "/skyfi/aircon/get_control_info":
		_, _ = io.WriteString(w, "ret=OK,pow="+f.power+",mode="+f.mode+",operate=1,stemp="+f.stemp+",f_rate=1,f_dir=0")
	case "/skyfi/aircon/get_zone_setting":
		_, _ = io.WriteString(w, strings.Join([]string{
			"ret=OK",
			"zone_name=" + escapeList(f.zoneNames),
			"zone_onoff=" + escapeList(f.zoneOnOff),
			"lztemp_c=" + escapeList(f.lztempC),
			"lztemp_h=" + escapeList(f.lztempH),
		}, ","))
	case "/skyfi/aircon/set_zone_setting":
		f.setQueries = append(f.setQueries, r.URL.RawQuery)
		if f.busySets > 0 {
			f.busySets--
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		if f.failSets > 0 {
			f.failSets--
			_, _ = io.WriteString(w, "ret=PARAM NG")
			return
		}
		q := r.URL.Query()
		f.zoneNames = strings.Split(q.Get("zone_name"), ";")
		f.zoneOnOff = strings.Split(q.Get("zone_onoff"), ";")
		if v := q.Get("lztemp_c"); v != "" {
			f.lztempC = strings.Split(v, ";")
		}
		if v := q.Get("lztemp_h"); v != "" {
			f.lztempH = strings.Split(v, ";")
		}
		_, _ = io.WriteString(w, "ret=OK")
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAirBase) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.setQueries)
}

func (f *fakeAirBase) heatSetpoints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lztempH...)
}

func (f *fakeAirBase) onOff() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.zoneOnOff...)
}

func (f *fakeAirBase) setPower(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.power = "0"
	if on {
		f.power = "1"
	}
}

func escapeList(items []string) string {
	return url.PathEscape(strings.Join(items, ";"))
}

func testLogger() *slog.Logger {
	return logging.Discard()
}

func (f *fakeAirBase) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.setQueries...)
}

type zoneWrite struct {
	zoneID int
	key    string
	value  string
}

// stubDevice is an in-memory Device whose writes can be made to fail.
type stubDevice struct {
	mu        sync.Mutex
	mac       string
	zones     []Zone
	target    float64
	hasTarget bool
	mode      hub.HVACMode
	on        bool
	failures  int
	err       error
	writes    []zoneWrite
}

var _ Device = (*stubDevice)(nil)

func newStubDevice() *stubDevice {
	return &stubDevice{
		mac: fakeMAC,
		zones: []Zone{
			{Name: "Living", On: true, Temperature: 22},
			{Name: "Kitchen", On: false, Temperature: 21},
			{Name: "-", On: false, Temperature: 0},
		},
		target:    22,
		hasTarget: true,
		mode:      hub.HVACModeHeat,
		on:        true,
		err:       errors.New("boom"),
	}
}

func (d *stubDevice) MAC() string { return d.mac }

func (d *stubDevice) Zones() []Zone {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Zone(nil), d.zones...)
}

func (d *stubDevice) TargetTemperature() (float64, bool) { return d.target, d.hasTarget }
func (d *stubDevice) HVACMode() hub.HVACMode             { return d.mode }
func (d *stubDevice) IsOn() bool                         { return d.on }

func (d *stubDevice) SetZone(_ context.Context, zoneID int, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, zoneWrite{zoneID: zoneID, key: key, value: value})
	if d.failures > 0 {
		d.failures--
		return d.err
	}
	if zoneID < 0 || zoneID >= len(d.zones) {
		return ErrZoneNotFound
	}
	switch key {
	case "lztemp_h":
		d.zones[zoneID].Temperature, _ = strconv.ParseFloat(value, 64)
	case "zone_onoff":
		d.zones[zoneID].On = value == "1"
	}
	return nil
}

func (d *stubDevice) TurnOnZone(ctx context.Context, zoneID int) error {
	return d.SetZone(ctx, zoneID, "zone_onoff", "1")
}

func (d *stubDevice) TurnOffZone(ctx context.Context, zoneID int) error {
	return d.SetZone(ctx, zoneID, "zone_onoff", "0")
}

func (d *stubDevice) recorded() []zoneWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]zoneWrite(nil), d.writes...)
}
