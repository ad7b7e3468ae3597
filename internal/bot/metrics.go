package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics структура для метрик Prometheus
type Metrics struct {
	MessagesProcessed    prometheus.Counter
	ErrorsTotal          prometheus.Counter
	UpdateProcessingTime prometheus.Histogram
	BookingsCreated      *prometheus.CounterVec
	BookingTransitions   *prometheus.CounterVec
	SlotsOffered         prometheus.Histogram
}

// NewMetrics создает новые метрики
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "avtomaster_bot_messages_processed_total",
			Help: "Total number of processed Telegram messages",
		}),
		ErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "avtomaster_bot_errors_total",
			Help: "Total number of handler errors and panics",
		}),
		UpdateProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "avtomaster_bot_update_processing_time_seconds",
			Help:    "Time spent processing updates",
			Buckets: prometheus.DefBuckets,
		}),
		BookingsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "avtomaster_bot_bookings_created_total",
			Help: "Total number of booking requests created",
		}, []string{"service_name"}),
		BookingTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "avtomaster_bot_booking_transitions_total",
			Help: "Booking lifecycle transitions by target status",
		}, []string{"to_status"}),
		SlotsOffered: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "avtomaster_bot_slots_offered",
			Help:    "Number of free slots offered per availability request",
			Buckets: []float64{0, 1, 2, 4, 8, 12, 16, 20},
		}),
	}
}
