package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallbacksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Total number of payment callbacks by reconciliation outcome",
	}, []string{"outcome"})

	CallbackProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_callback_latency_seconds",
		Help:    "Latency of callback reconciliation",
		Buckets: prometheus.DefBuckets,
	})

	PaymentsInitiatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_initiated_total",
		Help: "Total number of STK push requests accepted by the gateway",
	}, []string{"kind"})

	PaymentInitiationFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_initiation_failed_total",
		Help: "Total number of STK push requests that failed",
	}, []string{"kind", "reason"})

	GatewayLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_gateway_latency_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	})

	TopupsCreditedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topups_credited_total",
		Help: "Total number of top-ups credited to balances",
	})

	PurchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchases_total",
		Help: "Total number of completed purchases",
	}, []string{"method"})

	DeliveryFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_failures_total",
		Help: "Total number of paid items that could not be delivered",
	}, []string{"reason"})

	BalanceChargesRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "balance_charges_rejected_total",
		Help: "Total number of balance charges rejected for insufficient funds",
	})

	NotificationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_notification_failures_total",
		Help: "Total number of outbound chat messages that failed",
	})

	ChatUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_updates_total",
		Help: "Total number of inbound chat updates by type",
	}, []string{"type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
