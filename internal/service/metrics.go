package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	identityResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oakley_identity_resolutions_total",
			Help: "Identity resolutions by matching path",
		},
		[]string{"path"}, // external_id, email, created, failed
	)

	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oakley_logins_total",
			Help: "Login callbacks by outcome",
		},
		[]string{"outcome"},
	)

	sessionRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oakley_session_refreshes_total",
			Help: "Session refresh attempts by outcome",
		},
		[]string{"outcome"},
	)
)
