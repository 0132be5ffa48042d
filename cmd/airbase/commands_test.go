package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barneyonline/core/plugins/daikin"
)

func fakeAdapter(t *testing.T) *httptest.Server {
	t.Helper()
	responses := map[string]string{
		"/skyfi/common/basic_info":       "ret=OK,type=aircon,mac=A0B1C2D3E4F5,ver=1_1_8,name=%4c%6f%75%6e%67%65",
		"/skyfi/aircon/get_model_info":   "ret=OK,model=NOTSUPPORT",
		"/skyfi/aircon/get_control_info": "ret=OK,pow=1,mode=1,stemp=22",
		"/skyfi/aircon/get_sensor_info":  "ret=OK,htemp=21,otemp=14",
		"/skyfi/aircon/get_zone_setting": "ret=OK,zone_name=Living%3bKitchen,zone_onoff=1%3b0,lztemp_c=24%3b24,lztemp_h=22%3b21",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := responses[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPrintStatus(t *testing.T) {
	srv := fakeAdapter(t)
	dev, err := daikin.NewAirBase(srv.URL)
	require.NoError(t, err)
	require.NoError(t, dev.Init(context.Background()))

	var out bytes.Buffer
	printStatus(&out, dev)

	text := out.String()
	assert.Contains(t, text, "Lounge (A0B1C2D3E4F5) AirBase firmware 1.1.8")
	assert.Contains(t, text, "Power=ON Mode=heat Setpoint=22 Inside=21 Outside=14")
	assert.Contains(t, text, "Living")
	assert.Contains(t, text, "Kitchen")
}

func TestParseZoneID(t *testing.T) {
	id, err := parseZoneID("2")
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	_, err = parseZoneID("-1")
	assert.Error(t, err)
	_, err = parseZoneID("living")
	assert.Error(t, err)
}

func TestConnectRequiresHost(t *testing.T) {
	targetHost = ""
	_, err := connect(context.Background())
	assert.Error(t, err)
}
