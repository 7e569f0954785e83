package postgres

import (
	"errors"
	"net/http"

	"core-ledger/pkg/apperror"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Constraint and trigger names from the migrations.
const (
	constraintNameNotBlank       = "accounts_name_not_blank"
	constraintNameUnique         = "accounts_name_key"
	constraintBalanceNonNegative = "accounts_balance_non_negative"
	constraintAmountPositive     = "transactions_amount_positive"
	constraintKindValid          = "transactions_kind_valid"
	constraintShape              = "transactions_shape"
	triggerDeleteRequiresZero    = "accounts_delete_requires_zero_balance"
	triggerAppendOnly            = "transactions_append_only"
)

// classify turns PostgreSQL errors the schema raises on purpose into the
// same ledger errors the engine's own checks return. Anything unrecognised
// is returned as is and treated as a storage fault by the caller.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.CheckViolation:
		switch pgErr.ConstraintName {
		case constraintBalanceNonNegative:
			return wrap(apperror.ErrInsufficientFunds(), err)
		case triggerDeleteRequiresZero:
			return wrap(apperror.ErrAccountNotEmpty(), err)
		case constraintAmountPositive:
			return wrap(apperror.ErrInvalidAmount("Amount must be positive"), err)
		case constraintNameNotBlank:
			return wrap(apperror.Validation("Account name cannot be empty"), err)
		case constraintKindValid, constraintShape:
			return wrap(apperror.Validation("Transaction violates ledger shape rules"), err)
		case triggerAppendOnly:
			return wrap(apperror.Validation("Transactions are append-only"), err)
		}
	case pgerrcode.UniqueViolation:
		if pgErr.ConstraintName == constraintNameUnique {
			return apperror.Wrap(apperror.KindConflict, "LED_007", "Account name already exists", http.StatusConflict, err)
		}
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return apperror.ErrStorage(err)
	case pgerrcode.LockNotAvailable:
		return apperror.ErrLockTimeout(err)
	}
	return err
}

func wrap(appErr *apperror.AppError, cause error) *apperror.AppError {
	appErr.Err = cause
	return appErr
}
