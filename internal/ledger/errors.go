package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/loanbook-backend/internal/platform/logger"
)

var (
	// ErrPolicyMisconfigured means no valid accounting policy is configured.
	// Fatal at construction time; the engine refuses to process mutations.
	ErrPolicyMisconfigured = errors.New("ledger: accounting policy misconfigured")
	// ErrMalformedRecord means a payment record fails validation and the
	// triggering transaction must abort with no partial aggregate write.
	ErrMalformedRecord = errors.New("ledger: malformed payment record")
	// ErrConflict indicates a uniqueness/concurrency conflict.
	ErrConflict = errors.New("ledger: write conflict")
	// ErrRetryable indicates a transient failure worth retrying in a fresh
	// transaction (serialization failure, deadlock, lock timeout).
	ErrRetryable = errors.New("ledger: retryable")
)

// MapError classifies infrastructure failures into the ledger taxonomy.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrPolicyMisconfigured),
		errors.Is(err, ErrMalformedRecord),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrRetryable),
		errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrRetryable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return fmt.Errorf("%s: %w: %w", op, ErrConflict, err) // unique_violation
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%s: %w: %w", op, ErrRetryable, err) // serialization/deadlock/lock_not_available
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

const txMaxAttempts = 3

// RunInTx executes fn inside one transaction, retrying on transient
// serialization failures. Concurrent write conflicts between loans are
// resolved here and never surface to callers under correct operation.
func RunInTx(ctx context.Context, db *gorm.DB, log *logger.Logger, op string, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		err = MapError(op, db.WithContext(ctx).Transaction(fn))
		if err == nil || !errors.Is(err, ErrRetryable) {
			return err
		}
		if log != nil {
			log.Warn("retrying transaction after transient failure",
				"op", op, "attempt", attempt, "error", err)
		}
		select {
		case <-ctx.Done():
			return MapError(op, ctx.Err())
		case <-time.After(time.Duration(attempt) * 25 * time.Millisecond):
		}
	}
	return err
}
