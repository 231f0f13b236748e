package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	OTPRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aether",
		Name:      "otp_requests_total",
		Help:      "OTP codes requested through the login wizard.",
	})

	Logins = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aether",
		Name:      "logins_total",
		Help:      "Completed logins.",
	})

	ChatroomsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aether",
		Name:      "chatrooms_created_total",
		Help:      "Chatrooms created.",
	})

	ChatroomsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aether",
		Name:      "chatrooms_deleted_total",
		Help:      "Chatrooms deleted.",
	})

	Messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aether",
		Name:      "messages_total",
		Help:      "Messages appended, by role.",
	}, []string{"role"})

	PendingReplies = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "aether",
		Name:      "pending_replies",
		Help:      "Assistant replies waiting on their thinking time.",
	})

	CountryFetchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aether",
		Name:      "country_fetch_failures_total",
		Help:      "Country list fetches that fell back to the built-in list.",
	})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		OTPRequests,
		Logins,
		ChatroomsCreated,
		ChatroomsDeleted,
		Messages,
		PendingReplies,
		CountryFetchFailures,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
