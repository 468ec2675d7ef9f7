/*
Package gateway holds payment-gateway integrations.

PURPOSE:
  The sweep needs a Capturer to collect money for due installments. Real
  deployments wire a provider SDK here; Local is the development
  implementation that always succeeds and mints its own capture refs.
*/
package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/CortekUK/drive-247-sub010/ledger"
)

// Local is an in-process capturer for development and tests. Every capture
// succeeds and returns a generated reference.
type Local struct {
	Log *logrus.Logger
}

func NewLocal(log *logrus.Logger) *Local {
	return &Local{Log: log}
}

func (l *Local) Capture(ctx context.Context, scope ledger.Scope, amount decimal.Decimal, reference string) (string, error) {
	ref := fmt.Sprintf("local_%s", uuid.NewString())
	l.Log.WithFields(logrus.Fields{
		"tenant_id":   scope.TenantID,
		"customer_id": scope.CustomerID,
		"amount":      amount.String(),
		"reference":   reference,
		"capture_ref": ref,
	}).Info("captured payment")
	return ref, nil
}
