// Package paymentsvc charges mobile money payments.
package paymentsvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/smartlearn/core"
)

type simulatedProcessor struct {
	subscribeLatency time.Duration
	purchaseLatency  time.Duration
	logger           core.Logger
}

var _ core.PaymentProcessor = (*simulatedProcessor)(nil)

// NewSimulatedProcessor approves every charge after the configured latency.
// Subscriptions and multi-book purchases take the subscribe latency; single purchases the purchase latency.
func NewSimulatedProcessor(conf core.PaymentConfig, logger core.Logger) core.PaymentProcessor {
	return &simulatedProcessor{
		subscribeLatency: conf.SubscribeLatency,
		purchaseLatency:  conf.PurchaseLatency,
		logger:           logger,
	}
}

func (p *simulatedProcessor) latency(kind string) time.Duration {
	switch kind {
	case core.PaymentSubscription, core.PaymentBooks:
		return p.subscribeLatency
	default:
		return p.purchaseLatency
	}
}

func (p *simulatedProcessor) Charge(ctx context.Context, req core.PaymentRequest) (core.PaymentResult, error) {
	if d := p.latency(req.Kind); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return core.PaymentResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	res := core.PaymentResult{Status: core.PaymentSucceeded, TransactionID: uuid.NewString()}
	p.logger.Debug(fmt.Sprintf("charged %s for %s (tx %s)", req.IdentityID, req.Description, res.TransactionID))
	return res, nil
}

// ProcessorMock records the charges and answers them synchronously.
type ProcessorMock struct {
	mu      sync.Mutex
	charges []core.PaymentRequest

	// Decline makes every charge fail with DeclineReason.
	Decline       bool
	DeclineReason string
	// Err is returned as a processor failure when set.
	Err error
	// Started, if not nil, receives every request as soon as it arrives.
	Started chan<- core.PaymentRequest
	// Wait, if not nil, blocks every charge until it is closed.
	Wait chan struct{}
}

var _ core.PaymentProcessor = (*ProcessorMock)(nil)

func (m *ProcessorMock) Charge(ctx context.Context, req core.PaymentRequest) (core.PaymentResult, error) {
	if m.Started != nil {
		m.Started <- req
	}
	if m.Wait != nil {
		select {
		case <-ctx.Done():
			return core.PaymentResult{}, ctx.Err()
		case <-m.Wait:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges = append(m.charges, req)

	if m.Err != nil {
		return core.PaymentResult{}, m.Err
	}
	if m.Decline {
		return core.PaymentResult{Status: core.PaymentDeclined, Reason: m.DeclineReason}, nil
	}
	return core.PaymentResult{
		Status:        core.PaymentSucceeded,
		TransactionID: fmt.Sprintf("tx-%d", len(m.charges)),
	}, nil
}

// Charges returns the requests received so far.
func (m *ProcessorMock) Charges() []core.PaymentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.PaymentRequest(nil), m.charges...)
}
