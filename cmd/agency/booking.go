package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/saga"
)

// bookingFaults injects failures into the demo booking saga.
type bookingFaults struct {
	failCharge      bool
	failHotelCancel bool
}

// bookingSteps reserves a flight and a hotel, then charges the card.
// Each reservation is undone by cancelling the confirmation it returned.
func bookingSteps(f bookingFaults) []saga.TransactionStep {
	reserve := func(kind string) saga.Action {
		return func(_ context.Context, ec *domain.ExecutionContext) (any, error) {
			confirmation := fmt.Sprintf("%s-%s", kind, uuid.NewString()[:8])
			ec.SetMeta(kind+"_confirmation", confirmation)
			return confirmation, nil
		}
	}
	cancel := func(kind string, fail bool) saga.Compensation {
		return func(_ context.Context, ec *domain.ExecutionContext, result any) error {
			if fail {
				return fmt.Errorf("%s provider rejected cancellation of %v", kind, result)
			}
			ec.SetMeta(kind+"_cancelled", fmt.Sprint(result))
			return nil
		}
	}

	return []saga.TransactionStep{
		saga.NewStep("reserve_flight", reserve("flight"), cancel("flight", false)),
		saga.NewStep("reserve_hotel", reserve("hotel"), cancel("hotel", f.failHotelCancel)),
		saga.NewStep("charge_card", func(context.Context, *domain.ExecutionContext) (any, error) {
			if f.failCharge {
				return nil, errors.New("card declined")
			}
			return map[string]any{"amount": 1250, "currency": "EUR"}, nil
		}, nil).WithRetries(1),
	}
}
