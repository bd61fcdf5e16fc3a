package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "medtime_"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

var (
	registerOnce sync.Once

	deviceRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "device_requests_total",
			Help: "Device API calls by operation and result",
		},
		[]string{"op", "result"},
	)
	deviceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "device_request_seconds",
			Help:    "Device API call latency in seconds, including retries",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"op"},
	)
	activePolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "active_polls_total",
			Help: "Active-alarm poll ticks by result",
		},
		[]string{"result"},
	)
	alarmEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "alarm_events_total",
			Help: "Alarm lifecycle events by type",
		},
		[]string{"event"},
	)
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "notifications_total",
			Help: "Notification deliveries by sink and result",
		},
		[]string{"sink", "result"},
	)
	alarmPushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "alarm_pushes_total",
			Help: "Pushes of the next alarm to the device by result",
		},
		[]string{"result"},
	)
	deviceConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: metricPrefix + "device_connected",
			Help: "1 when the last status check reached the device",
		},
	)
)

// Init registers the collectors with reg. Safe to call more than once.
func Init(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			deviceRequests,
			deviceLatency,
			activePolls,
			alarmEvents,
			notifications,
			alarmPushes,
			deviceConnected,
		)
	})
}

// ObserveDevice records one device operation.
func ObserveDevice(op string, err error, duration time.Duration) {
	deviceRequests.WithLabelValues(op, resultOf(err)).Inc()
	deviceLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// ObservePoll records the outcome of an active-alarm poll tick.
func ObservePoll(result string) {
	activePolls.WithLabelValues(result).Inc()
}

// IncAlarmEvent counts an alarm lifecycle event.
func IncAlarmEvent(event string) {
	alarmEvents.WithLabelValues(event).Inc()
}

// ObserveNotification records one delivery attempt to a sink.
func ObserveNotification(sink string, err error) {
	notifications.WithLabelValues(sink, resultOf(err)).Inc()
}

// ObserveAlarmPush records one push of the armed alarm.
func ObserveAlarmPush(err error) {
	alarmPushes.WithLabelValues(resultOf(err)).Inc()
}

// SetConnected updates the connectivity gauge.
func SetConnected(connected bool) {
	if connected {
		deviceConnected.Set(1)
		return
	}
	deviceConnected.Set(0)
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
