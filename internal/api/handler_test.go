package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medtime-companion/config"
	"medtime-companion/internal/alarms"
	"medtime-companion/internal/alertlog"
	"medtime-companion/internal/db"
	"medtime-companion/internal/device"
	"medtime-companion/internal/discovery"
	"medtime-companion/internal/notification"
	"medtime-companion/internal/poller"
	"medtime-companion/internal/relay"
	"medtime-companion/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeESP answers the device endpoints the handlers use.
type fakeESP struct {
	mu         sync.Mutex
	setAlarms  []map[string]string
	active     string
	ackStatus  int
	listStatus int
}

func (f *fakeESP) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/setAlarm", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		f.mu.Lock()
		f.setAlarms = append(f.setAlarms, map[string]string{
			"hour": r.PostForm.Get("hour"), "minute": r.PostForm.Get("minute"),
			"led": r.PostForm.Get("led"), "name": r.PostForm.Get("name"),
		})
		f.mu.Unlock()
	})
	mux.HandleFunc("/deleteAlarm", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/active", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Write([]byte(f.active))
	})
	mux.HandleFunc("/stopAlarm", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := f.ackStatus
		f.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		w.Write([]byte(`{"ok":true,"acknowledged":true}`))
	})
	mux.HandleFunc("/listAlarms", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := f.listStatus
		f.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			w.Write([]byte("busy"))
			return
		}
		w.Write([]byte(`[{"id":1,"hour":"08","minute":"00","name":"A","led":0,"enabled":true}]`))
	})
	mux.HandleFunc("/configure", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"ip":"192.168.0.42"}`))
	})
	mux.HandleFunc("/reset", func(w http.ResponseWriter, r *http.Request) {})
	return mux
}

func (f *fakeESP) pushes() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.setAlarms...)
}

type testAPI struct {
	router *gin.Engine
	esp    *fakeESP
	kv     *store.MemoryStore
	link   *device.Link
	poller *poller.ActivePoller
	alarms *alarms.Store
}

func testDeviceOptions() device.Options {
	opts := device.DefaultOptions()
	opts.RetryBackoff = 5 * time.Millisecond
	opts.WriteTimeout = time.Second
	return opts
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	esp := &fakeESP{active: `{"active":false}`}
	srv := httptest.NewServer(esp.handler())
	t.Cleanup(srv.Close)

	gormDB, err := db.Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})

	kv := store.NewMemoryStore()
	link := device.New(srv.URL, testDeviceOptions())
	alerts := alertlog.New(kv)
	indicator := poller.NewIndicator(3)
	alarmStore := alarms.New(kv, link, alerts, notification.Discard, alarms.WithLocation(time.UTC))
	activePoller := poller.NewActivePoller(link, alerts, notification.Discard, indicator, time.Second, poller.WithLookup(alarmStore.Lookup))
	relaySvc := relay.NewService(relay.NewClient(config.RelayConfig{}), relay.NewSettings(kv, ""), "")

	h := NewHandler(Deps{
		Alarms:         alarmStore,
		Alerts:         alerts,
		Poller:         activePoller,
		Indicator:      indicator,
		Link:           link,
		KV:             kv,
		Relay:          relaySvc,
		Scanner:        discovery.NewScanner(discovery.LinkProber{Timeout: 50 * time.Millisecond}),
		DB:             gormDB,
		WebPush:        &webpush.Options{},
		FactoryAddress: config.FactoryDeviceAddress,
	})
	cfg := config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, StatusCacheDuration: time.Minute}
	return &testAPI{router: NewRouter(h, cfg), esp: esp, kv: kv, link: link, poller: activePoller, alarms: alarmStore}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestCreateAlarm(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/alarms", `{"hour":7,"minute":5,"name":"Losartana","led":2}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Alarm       map[string]any `json:"alarm"`
		Armed       map[string]any `json:"armed"`
		DeviceError string         `json:"deviceError"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "07", resp.Alarm["hour"])
	assert.Equal(t, "05", resp.Alarm["minute"])
	assert.Empty(t, resp.DeviceError)
	assert.NotNil(t, resp.Armed)

	pushes := a.esp.pushes()
	require.Len(t, pushes, 1)
	assert.Equal(t, map[string]string{"hour": "07", "minute": "05", "led": "2", "name": "Losartana"}, pushes[0])

	w = a.do(t, http.MethodGet, "/api/alarms", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Losartana"`)
}

func TestCreateAlarm_TimeString(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/alarms", `{"time":"21:30","name":"Noite"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	list := a.alarms.List()
	require.Len(t, list, 1)
	assert.Equal(t, "21:30", list[0].Clock())
}

func TestCreateAlarm_Validation(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/alarms", `{"hour":"24","minute":"00"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"invalid hour: must be between 0 and 23","field":"hour"}`, w.Body.String())
	assert.Empty(t, a.alarms.List())
	assert.Empty(t, a.esp.pushes())
}

func TestCreateAlarm_DeviceDown(t *testing.T) {
	a := newTestAPI(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	a.link.SetBaseAddress(dead.URL)

	w := a.do(t, http.MethodPost, "/api/alarms", `{"hour":8,"minute":0}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"deviceError"`)
	assert.Len(t, a.alarms.List(), 1)
}

func TestToggleAndDelete(t *testing.T) {
	a := newTestAPI(t)
	res, err := a.alarms.Create(context.Background(), alarms.Input{Hour: 8, Name: "x"})
	require.NoError(t, err)
	id := res.Alarm.ID

	w := a.do(t, http.MethodPost, "/api/alarms/abc/toggle", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/api/alarms/"+itoa(id)+"/toggle", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"enabled":false`)

	w = a.do(t, http.MethodDelete, "/api/alarms/"+itoa(id), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, a.alarms.List())

	w = a.do(t, http.MethodDelete, "/api/alarms/999", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAlerts(t *testing.T) {
	a := newTestAPI(t)
	_, err := a.alarms.Create(context.Background(), alarms.Input{Hour: 8})
	require.NoError(t, err)

	w := a.do(t, http.MethodGet, "/api/alerts", "")
	assert.Contains(t, w.Body.String(), "Alarm scheduled")

	w = a.do(t, http.MethodDelete, "/api/alerts", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = a.do(t, http.MethodGet, "/api/alerts", "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestActiveAndConfirm(t *testing.T) {
	a := newTestAPI(t)
	a.esp.set(func() { a.esp.active = `{"active":true,"id":7,"name":"Losartana","led":1}` })
	require.True(t, a.poller.PollOnce(context.Background()))

	w := a.do(t, http.MethodGet, "/api/active", "")
	assert.Contains(t, w.Body.String(), `"active":true`)
	assert.Contains(t, w.Body.String(), `"id":7`)

	w = a.do(t, http.MethodPost, "/api/active/confirm", `{"id":7}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/api/active", "")
	assert.JSONEq(t, `{"active":false}`, w.Body.String())
}

func TestConfirm_DeviceRejects(t *testing.T) {
	a := newTestAPI(t)
	a.esp.set(func() { a.esp.ackStatus = http.StatusBadRequest })

	w := a.do(t, http.MethodPost, "/api/active/confirm", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestConfirm_DeviceUnreachable(t *testing.T) {
	a := newTestAPI(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	a.link.SetBaseAddress(dead.URL)

	w := a.do(t, http.MethodPost, "/api/active/confirm", `{"id":7}`)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestStatus_Cached(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"connected":false`)

	w = a.do(t, http.MethodGet, "/api/status", "")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
}

func TestDeviceAddress(t *testing.T) {
	a := newTestAPI(t)
	original := a.link.BaseAddress()

	w := a.do(t, http.MethodPut, "/api/device", `{"address":"192.168.0.50"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"address":"http://192.168.0.50"}`, w.Body.String())
	stored, ok, _ := a.kv.Get(context.Background(), store.KeyDeviceAddress)
	assert.True(t, ok)
	assert.Equal(t, "http://192.168.0.50", stored)

	w = a.do(t, http.MethodDelete, "/api/device", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, config.FactoryDeviceAddress, a.link.BaseAddress())
	assert.NotEqual(t, original, a.link.BaseAddress())

	w = a.do(t, http.MethodPut, "/api/device", `{"address":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeviceAlarmsAndReset(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodGet, "/api/device/alarms", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hour":"08"`)

	w = a.do(t, http.MethodPost, "/api/device/reset", "")
	assert.Equal(t, http.StatusOK, w.Code)

	a.esp.set(func() { a.esp.listStatus = http.StatusBadRequest })
	w = a.do(t, http.MethodGet, "/api/device/alarms", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestConfigureDevice(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/device/configure", `{"pass":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/api/device/configure", `{"ssid":"casa","pass":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://192.168.0.42", a.link.BaseAddress())
}

func TestDiscoverDevice_InvalidIP(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(t, http.MethodPost, "/api/device/discover", `{"localIp":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRelay(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPut, "/api/relay", `{"enabled":true,"recipient":"+5511999990000","notifyOnCreate":false,"notifyOnActive":true,"notifyOnAcknowledge":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/api/relay", "")
	assert.Contains(t, w.Body.String(), `"notifyOnCreate":false`)

	// No relay endpoint configured.
	w = a.do(t, http.MethodPost, "/api/relay/test", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"sent":false`)
}

func TestPutSubscription(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPut, "/api/subscriptions", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())

	w = a.do(t, http.MethodPut, "/api/subscriptions", `{"endpoint":"https://push.example/abc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPut, "/api/subscriptions", `{"endpoint":"https://push.example/abc","p256dh":"k","auth":"a"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	// Browser shape, same endpoint: keys refreshed, still one row.
	w = a.do(t, http.MethodPut, "/api/subscriptions", `{"endpoint":"https://push.example/abc","keys":{"p256dh":"k2","auth":"a2"}}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = a.do(t, http.MethodGet, "/api/subscriptions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":1,"enabled":false}`, w.Body.String())

	w = a.do(t, http.MethodGet, "/api/subscriptions?endpoint=https://push.example/abc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://push.example/abc")

	w = a.do(t, http.MethodDelete, "/api/subscriptions", `{"endpoint":"https://push.example/abc"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(t, http.MethodGet, "/api/subscriptions?endpoint=https://push.example/abc", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodDelete, "/api/subscriptions", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVAPIDNotConfigured(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(t, http.MethodGet, "/api/vapid_public_key", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"enabled":false`)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (f *fakeESP) set(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}
