// Package worker holds the AMQP message handlers run by cmd/ledger-worker.
package worker

import (
	"errors"

	"wealthwise/internal/amqp"
	"wealthwise/internal/metrics"
)

// Message outcomes recorded under metrics.MessagesConsumed.
const (
	resultOK      = "ok"
	resultDropped = "dropped"
	resultRetry   = "requeued"
)

// observe records how a delivery from queue ended and passes err through.
func observe(queue string, err error) error {
	result := resultOK
	switch {
	case errors.Is(err, amqp.ErrDrop):
		result = resultDropped
	case err != nil:
		result = resultRetry
	}
	metrics.MessagesConsumed.WithLabelValues(queue, result).Inc()
	return err
}
