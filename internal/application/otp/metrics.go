package otp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	otpIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zabira_otp_issued_total",
			Help: "OTP challenges persisted, by purpose and delivery method.",
		},
		[]string{"purpose", "method"},
	)

	otpVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zabira_otp_verifications_total",
			Help: "OTP verification attempts, by purpose and result.",
		},
		[]string{"purpose", "result"},
	)

	otpDispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zabira_otp_dispatch_failures_total",
			Help: "Codes that were persisted but could not be handed to a channel.",
		},
		[]string{"method"},
	)
)
