package service

import (
	"context"
	"log/slog"

	"github.com/sakif/vibelist/internal/apperror"
	"github.com/sakif/vibelist/internal/model"
	"github.com/sakif/vibelist/internal/repository"
)

// CreditService fronts the user credit ledger.
type CreditService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewCreditService(users repository.UserRepository, logger *slog.Logger) *CreditService {
	return &CreditService{users: users, logger: logger}
}

// Balance returns the user's current credit balance.
func (s *CreditService) Balance(ctx context.Context, userID string) (int, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.CreditsRemaining, nil
}

// CostFor returns the credit cost of a generation by input type.
func CostFor(inputType model.InputType) int {
	if inputType == model.InputImage {
		return model.ImageCost
	}
	return model.TextCost
}

// Charge deducts cost from the user's balance, returning the new balance. A
// zero cost (a free regeneration) just reads the balance back. The deduction
// is a single atomic check-and-decrement, so concurrent charges can never
// overdraw the account.
func (s *CreditService) Charge(ctx context.Context, userID string, cost int) (int, error) {
	if cost == 0 {
		return s.Balance(ctx, userID)
	}

	balance, err := s.users.DeductCredits(ctx, userID, cost)
	if err != nil {
		return 0, err
	}
	if balance < 0 {
		s.logger.Info("charge rejected, insufficient credits", "user_id", userID, "cost", cost)
		return 0, apperror.InsufficientCredits(cost)
	}

	s.logger.Info("credits charged", "user_id", userID, "cost", cost, "balance", balance)
	return balance, nil
}
