package paywall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ecosoraculo/oraculo/internal/domain"
	"github.com/ecosoraculo/oraculo/internal/sessionstore"
)

// saveSnapshot writes the payment session to the primary and backup keys.
func saveSnapshot(ctx context.Context, device *sessionstore.Bag, snap *domain.PaymentSession) error {
	if err := device.SetJSON(ctx, PaymentDataKey, snap); err != nil {
		return fmt.Errorf("save payment data: %w", err)
	}
	if err := device.SetJSON(ctx, PaymentDataBackupKey, snap); err != nil {
		return fmt.Errorf("save payment data backup: %w", err)
	}
	return nil
}

// readSnapshot returns the payment session for serviceID. The primary copy
// wins; the backup is read only when the primary is missing or corrupt.
// A snapshot saved for another service is ignored.
func readSnapshot(ctx context.Context, device *sessionstore.Bag, serviceID string) (*domain.PaymentSession, error) {
	for _, key := range []string{PaymentDataKey, PaymentDataBackupKey} {
		var snap domain.PaymentSession
		ok, err := device.JSON(ctx, key, &snap)
		if errors.Is(err, sessionstore.ErrCorrupt) {
			slog.Warn("Discarding corrupt payment data", "key", key)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if snap.ServiceID != serviceID {
			slog.Debug("Payment data belongs to another service", "key", key, "service_id", snap.ServiceID)
			return nil, nil
		}
		return &snap, nil
	}
	return nil, nil
}

func clearSnapshot(ctx context.Context, device *sessionstore.Bag) error {
	return device.Clear(ctx, PaymentDataKey, PaymentDataBackupKey)
}
