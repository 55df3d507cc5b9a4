package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pickup_registrations_total",
		Help: "Successful user registrations.",
	})
	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pickup_logins_total",
		Help: "Login attempts by result.",
	}, []string{"result"})
	detectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pickup_detections_published_total",
		Help: "Detection events accepted and published to the queue.",
	})
)
