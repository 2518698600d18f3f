package handler

import (
	"context"
	"time"

	"github.com/holiman/uint256"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/smartbank-server/internal/api/grpc/rpc"
	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
)

// LedgerService defines the session-scoped banking operations.
type LedgerService interface {
	Deposit(ctx context.Context, session model.Session, amount uint256.Int) (uint256.Int, error)
	Withdraw(ctx context.Context, session model.Session, amount uint256.Int) (uint256.Int, error)
	Balance(ctx context.Context, session model.Session, address model.Address) (uint256.Int, error)
	History(ctx context.Context, session model.Session, address model.Address) ([]model.Transaction, error)
	Statistics(ctx context.Context, session model.Session) (model.Statistics, error)
	WithdrawFees(ctx context.Context, session model.Session) (uint256.Int, error)
}

var _ rpc.LedgerServer = (*Ledger)(nil)

// Ledger handles the smartbank.Ledger service.
type Ledger struct {
	ledgerService  LedgerService
	contextManager model.ContextManager
	logger         *logger.Logger
}

func NewLedger(ledgerService LedgerService, contextManager model.ContextManager, logger *logger.Logger) *Ledger {
	return &Ledger{
		ledgerService:  ledgerService,
		contextManager: contextManager,
		logger:         logger,
	}
}

func (h *Ledger) Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.move(ctx, req, "deposit", h.ledgerService.Deposit)
}

func (h *Ledger) Withdraw(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.move(ctx, req, "withdraw", h.ledgerService.Withdraw)
}

func (h *Ledger) move(
	ctx context.Context,
	req *structpb.Struct,
	op string,
	call func(context.Context, model.Session, uint256.Int) (uint256.Int, error),
) (*structpb.Struct, error) {
	session, err := sessionFromContext(ctx, h.contextManager)
	if err != nil {
		return nil, err
	}
	amount, err := amountField(req)
	if err != nil {
		return nil, handleError(err)
	}

	balance, err := call(ctx, session, amount)
	if err != nil {
		h.logger.Info("Ledger handler: operation rejected",
			"operation", op,
			"address", session.Address,
			"amount_wei", amount.Dec(),
			"error", err.Error())
		return nil, handleError(err)
	}

	out := map[string]any{"address": session.Address.String()}
	putAmount(out, "balance", balance)
	return newStruct(out)
}

func (h *Ledger) GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	session, err := sessionFromContext(ctx, h.contextManager)
	if err != nil {
		return nil, err
	}
	address, err := addressOr(req, "address", session.Address)
	if err != nil {
		return nil, handleError(err)
	}

	balance, err := h.ledgerService.Balance(ctx, session, address)
	if err != nil {
		return nil, handleError(err)
	}

	out := map[string]any{"address": address.String()}
	putAmount(out, "balance", balance)
	return newStruct(out)
}

func (h *Ledger) GetHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	session, err := sessionFromContext(ctx, h.contextManager)
	if err != nil {
		return nil, err
	}
	address, err := addressOr(req, "address", session.Address)
	if err != nil {
		return nil, handleError(err)
	}

	history, err := h.ledgerService.History(ctx, session, address)
	if err != nil {
		return nil, handleError(err)
	}

	items := make([]any, 0, len(history))
	for _, tx := range history {
		item := map[string]any{
			"kind":      string(tx.Kind),
			"timestamp": tx.Timestamp.UTC().Format(time.RFC3339),
		}
		putAmount(item, "amount", tx.Amount)
		items = append(items, item)
	}

	return newStruct(map[string]any{
		"address":      address.String(),
		"transactions": items,
	})
}

func (h *Ledger) GetStatistics(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	session, err := sessionFromContext(ctx, h.contextManager)
	if err != nil {
		return nil, err
	}

	stats, err := h.ledgerService.Statistics(ctx, session)
	if err != nil {
		return nil, handleError(err)
	}

	out := map[string]any{}
	putAmount(out, "total_held", stats.TotalHeld)
	putAmount(out, "total_fees_collected", stats.TotalFeesCollected)
	return newStruct(out)
}

func (h *Ledger) WithdrawFees(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	session, err := sessionFromContext(ctx, h.contextManager)
	if err != nil {
		return nil, err
	}

	amount, err := h.ledgerService.WithdrawFees(ctx, session)
	if err != nil {
		h.logger.Warn("Ledger handler: fee withdrawal rejected",
			"address", session.Address,
			"error", err.Error())
		return nil, handleError(err)
	}

	out := map[string]any{}
	putAmount(out, "amount", amount)
	return newStruct(out)
}
