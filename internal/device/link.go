package device

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"medtime-companion/config"
	"medtime-companion/internal/metrics"
	"medtime-companion/internal/model"
	"medtime-companion/internal/parse"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

// Device API paths.
const (
	pathStatus    = "/status"
	pathList      = "/listAlarms"
	pathSetAlarm  = "/setAlarm"
	pathDelete    = "/deleteAlarm"
	pathActive    = "/active"
	pathStopAlarm = "/stopAlarm"
	pathConfigure = "/configure"
	pathReset     = "/reset"
	pathPing      = "/ping"
)

const maxErrorBody = 256

// Options holds per-operation timeouts and the retry policy.
type Options struct {
	StatusTimeout    time.Duration
	ActiveTimeout    time.Duration
	WriteTimeout     time.Duration
	ConfigureTimeout time.Duration
	RetryAttempts    int
	RetryBackoff     time.Duration
}

// DefaultOptions mirrors the defaults applied by config.Load.
func DefaultOptions() Options {
	return Options{
		StatusTimeout:    5 * time.Second,
		ActiveTimeout:    2 * time.Second,
		WriteTimeout:     8 * time.Second,
		ConfigureTimeout: 25 * time.Second,
		RetryAttempts:    2,
		RetryBackoff:     time.Second,
	}
}

// OptionsFromConfig builds Options from the device section of the config.
func OptionsFromConfig(cfg config.DeviceConfig) Options {
	return Options{
		StatusTimeout:    cfg.StatusTimeout,
		ActiveTimeout:    cfg.ActiveTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		ConfigureTimeout: cfg.ConfigureTTL,
		RetryAttempts:    cfg.RetryAttempts,
		RetryBackoff:     cfg.RetryBackoff,
	}
}

// Link talks to the device over its local HTTP API. It is safe for
// concurrent use; the base address can be swapped at runtime.
type Link struct {
	mu   sync.RWMutex
	base string

	client *resty.Client
	opts   Options
}

// New creates a Link pointing at baseAddress.
func New(baseAddress string, opts Options) *Link {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	client := resty.New().
		SetHeader("Accept", "application/json")
	return &Link{
		base:   NormalizeAddress(baseAddress),
		client: client,
		opts:   opts,
	}
}

// NormalizeAddress trims the address and adds http:// when no scheme is given.
func NormalizeAddress(addr string) string {
	addr = strings.TrimRight(strings.TrimSpace(addr), "/")
	if addr == "" {
		return ""
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return addr
}

// BaseAddress returns the address currently in use.
func (l *Link) BaseAddress() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.base
}

// SetBaseAddress points subsequent calls at addr. Calls already in flight
// finish against the previous address.
func (l *Link) SetBaseAddress(addr string) {
	l.mu.Lock()
	l.base = NormalizeAddress(addr)
	l.mu.Unlock()
}

type call struct {
	op      string
	method  string
	path    string
	form    map[string]string
	timeout time.Duration
	retry   bool
}

type reply struct {
	status int
	body   []byte
}

func (l *Link) do(ctx context.Context, c call) (reply, error) {
	start := time.Now()
	var out reply

	attempt := func() error {
		actx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req := l.client.R().SetContext(actx)
		if c.form != nil {
			req.SetFormData(c.form)
		}
		resp, err := req.Execute(c.method, l.BaseAddress()+c.path)
		if err != nil {
			return &Error{Kind: KindUnreachable, Op: c.op, Err: err}
		}
		out = reply{status: resp.StatusCode(), body: resp.Body()}
		if !resp.IsSuccess() {
			return &Error{
				Kind:   KindRejected,
				Op:     c.op,
				Status: resp.StatusCode(),
				Body:   truncate(strings.TrimSpace(string(out.body)), maxErrorBody),
			}
		}
		return nil
	}

	var err error
	if c.retry && l.opts.RetryAttempts > 1 {
		policy := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(l.opts.RetryBackoff), uint64(l.opts.RetryAttempts-1)),
			ctx,
		)
		err = backoff.Retry(func() error {
			if err := attempt(); err != nil {
				if !retryable(err) {
					return backoff.Permanent(err)
				}
				return err
			}
			return nil
		}, policy)
		var de *Error
		if err != nil && !errors.As(err, &de) {
			err = &Error{Kind: KindUnreachable, Op: c.op, Err: err}
		}
	} else {
		err = attempt()
	}

	metrics.ObserveDevice(c.op, err, time.Since(start))
	return out, err
}

func malformed(op string, err error) error {
	return &Error{Kind: KindMalformed, Op: op, Err: err}
}

// GetStatus checks that the device answers and reads its clock.
// No retry: status checks must not pile up.
func (l *Link) GetStatus(ctx context.Context) (Status, error) {
	r, err := l.do(ctx, call{op: "status", method: http.MethodGet, path: pathStatus, timeout: l.opts.StatusTimeout})
	if err != nil {
		return Status{}, err
	}
	return Status{Connected: true, DeviceTime: parse.DeviceTime(r.body)}, nil
}

// GetActive asks whether an alarm is firing. No retry.
func (l *Link) GetActive(ctx context.Context) (model.ActiveAlarm, error) {
	r, err := l.do(ctx, call{op: "active", method: http.MethodGet, path: pathActive, timeout: l.opts.ActiveTimeout})
	if err != nil {
		return model.ActiveAlarm{}, err
	}
	var active model.ActiveAlarm
	if err := json.Unmarshal(r.body, &active); err != nil {
		return model.ActiveAlarm{}, malformed("active", err)
	}
	return active, nil
}

// ListAlarms returns the alarms the device itself has stored.
func (l *Link) ListAlarms(ctx context.Context) ([]model.Alarm, error) {
	r, err := l.do(ctx, call{op: "list", method: http.MethodGet, path: pathList, timeout: l.opts.WriteTimeout, retry: true})
	if err != nil {
		return nil, err
	}
	var alarms []model.Alarm
	if err := json.Unmarshal(r.body, &alarms); err != nil {
		return nil, malformed("list", err)
	}
	if alarms == nil {
		alarms = []model.Alarm{}
	}
	return alarms, nil
}

// SetAlarm arms the given alarm on the device.
func (l *Link) SetAlarm(ctx context.Context, spec AlarmSpec) error {
	form := map[string]string{
		"hour":   model.ClockUnit(spec.Hour).String(),
		"minute": model.ClockUnit(spec.Minute).String(),
		"led":    strconv.Itoa(spec.LEDIndex),
	}
	if spec.Name != "" {
		form["name"] = spec.Name
	}
	if spec.ID != 0 {
		form["id"] = strconv.FormatInt(spec.ID, 10)
	}
	_, err := l.do(ctx, call{op: "set_alarm", method: http.MethodPost, path: pathSetAlarm, form: form, timeout: l.opts.WriteTimeout, retry: true})
	return err
}

// DeleteAlarm removes the alarm with id from the device.
func (l *Link) DeleteAlarm(ctx context.Context, id int64) error {
	form := map[string]string{"id": strconv.FormatInt(id, 10)}
	_, err := l.do(ctx, call{op: "delete_alarm", method: http.MethodPost, path: pathDelete, form: form, timeout: l.opts.WriteTimeout, retry: true})
	return err
}

// Acknowledge stops the firing alarm. A nil id stops whatever is firing.
// Any 2xx counts as acknowledged unless the body explicitly says otherwise.
func (l *Link) Acknowledge(ctx context.Context, id *int64) (AckResult, error) {
	form := map[string]string{}
	if id != nil {
		form["id"] = strconv.FormatInt(*id, 10)
	}
	r, err := l.do(ctx, call{op: "acknowledge", method: http.MethodPost, path: pathStopAlarm, form: form, timeout: l.opts.WriteTimeout, retry: true})
	if err != nil {
		return AckResult{}, err
	}
	res := AckResult{OK: true, Acknowledged: true}
	var body ackResponse
	if json.Unmarshal(r.body, &body) == nil {
		if body.OK != nil {
			res.OK = *body.OK
		}
		if body.Acknowledged != nil {
			res.Acknowledged = *body.Acknowledged
		}
	}
	return res, nil
}

// ConfigureNetwork sends Wi-Fi credentials. The device reboots during this
// call, so it is never retried.
func (l *Link) ConfigureNetwork(ctx context.Context, ssid, pass string) (NetworkResult, error) {
	form := map[string]string{"ssid": ssid, "pass": pass}
	r, err := l.do(ctx, call{op: "configure", method: http.MethodPost, path: pathConfigure, form: form, timeout: l.opts.ConfigureTimeout})
	if err != nil {
		return NetworkResult{}, err
	}
	var body configureResponse
	if err := json.Unmarshal(r.body, &body); err != nil {
		return NetworkResult{}, malformed("configure", err)
	}
	res := NetworkResult{OK: body.Success}
	if body.Success && body.IP != "" {
		res.NewAddress = NormalizeAddress(body.IP)
	}
	return res, nil
}

// Reset restores the device to factory settings.
func (l *Link) Reset(ctx context.Context) error {
	_, err := l.do(ctx, call{op: "reset", method: http.MethodPost, path: pathReset, form: map[string]string{}, timeout: l.opts.WriteTimeout, retry: true})
	return err
}

// Ping probes the liveness endpoint.
func (l *Link) Ping(ctx context.Context) (PingResult, error) {
	r, err := l.do(ctx, call{op: "ping", method: http.MethodGet, path: pathPing, timeout: l.opts.StatusTimeout})
	if err != nil {
		return PingResult{}, err
	}
	var res PingResult
	if err := json.Unmarshal(r.body, &res); err != nil {
		return PingResult{}, malformed("ping", err)
	}
	return res, nil
}

// IsUnreachable reports whether err means the device could not be reached.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
