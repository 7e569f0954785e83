package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"core-ledger/internal/core/ports"
	"core-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// MaxSimulationSize bounds a single simulation run.
const MaxSimulationSize = 1000

// SimulatorImpl implements ports.Simulator. Every operation goes through the
// ledger engine, so rejected ones leave no trace.
type SimulatorImpl struct {
	ledger ports.LedgerService
	log    zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator creates a simulator seeded with seed.
func NewSimulator(ledger ports.LedgerService, seed int64, log zerolog.Logger) *SimulatorImpl {
	return &SimulatorImpl{
		ledger: ledger,
		log:    log,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Run issues n random deposits, withdrawals and transfers between existing
// accounts with amounts between 10.00 and 500.00.
func (s *SimulatorImpl) Run(ctx context.Context, n int) (*ports.SimulationResult, error) {
	if n < 1 || n > MaxSimulationSize {
		return nil, apperror.Validation(fmt.Sprintf("Simulation size must be between 1 and %d", MaxSimulationSize))
	}
	accounts, err := s.ledger.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) < 2 {
		return nil, apperror.Validation("Need at least 2 accounts for simulation")
	}

	result := &ports.SimulationResult{
		Requested: n,
		Rejected:  make(map[string]int),
		Receipts:  make([]ports.Receipt, 0, n),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		amount := fmt.Sprintf("%d.%02d", 10+s.rng.Intn(490), s.rng.Intn(100))
		fromIdx := s.rng.Intn(len(accounts))
		from := accounts[fromIdx]

		var receipt *ports.Receipt
		var opErr error
		switch s.rng.Intn(3) {
		case 0:
			receipt, opErr = s.ledger.Deposit(ctx, ports.MovementRequest{AccountID: from.ID, Amount: amount, Description: "Simulated deposit"})
		case 1:
			receipt, opErr = s.ledger.Withdraw(ctx, ports.MovementRequest{AccountID: from.ID, Amount: amount, Description: "Simulated withdrawal"})
		default:
			toIdx := s.rng.Intn(len(accounts) - 1)
			if toIdx >= fromIdx {
				toIdx++
			}
			to := accounts[toIdx]
			receipt, opErr = s.ledger.Transfer(ctx, ports.TransferRequest{
				FromAccountID: from.ID, ToAccountID: to.ID, Amount: amount, Description: "Simulated transfer",
			})
		}

		if opErr != nil {
			code := "UNKNOWN"
			var appErr *apperror.AppError
			if errors.As(opErr, &appErr) {
				code = appErr.Code
			}
			result.Rejected[code]++
			continue
		}
		result.Committed++
		result.Receipts = append(result.Receipts, *receipt)
	}

	s.log.Info().
		Int("requested", result.Requested).
		Int("committed", result.Committed).
		Interface("rejected", result.Rejected).
		Msg("simulation finished")
	return result, nil
}
