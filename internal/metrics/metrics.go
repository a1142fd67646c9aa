// Package metrics holds the service's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Created counts successfully stored first-blood records.
	Created = promauto.NewCounter(prometheus.CounterOpts{
		Name: "firstblood_created_total",
		Help: "First-blood records created.",
	})

	// Duplicates counts creation attempts rejected by the uniqueness constraint.
	Duplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "firstblood_duplicates_total",
		Help: "Creation attempts rejected as duplicates.",
	})

	// Claimed counts records handed out by claim calls (update_was_sent=true).
	Claimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "firstblood_claimed_total",
		Help: "Records claimed for notification delivery.",
	})

	// Unauthorized counts requests rejected by the bearer-token check.
	Unauthorized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "firstblood_unauthorized_total",
		Help: "Requests rejected with an invalid or missing token.",
	})
)
