package mocks

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/smartbank-server/internal/model"
)

// LedgerService is a mock type for the LedgerService type
type LedgerService struct {
	mock.Mock
}

// Deposit provides a mock function with given fields: ctx, session, amount
func (_m *LedgerService) Deposit(ctx context.Context, session model.Session, amount uint256.Int) (uint256.Int, error) {
	ret := _m.Called(ctx, session, amount)
	return ret.Get(0).(uint256.Int), ret.Error(1)
}

// Withdraw provides a mock function with given fields: ctx, session, amount
func (_m *LedgerService) Withdraw(ctx context.Context, session model.Session, amount uint256.Int) (uint256.Int, error) {
	ret := _m.Called(ctx, session, amount)
	return ret.Get(0).(uint256.Int), ret.Error(1)
}

// Balance provides a mock function with given fields: ctx, session, address
func (_m *LedgerService) Balance(ctx context.Context, session model.Session, address model.Address) (uint256.Int, error) {
	ret := _m.Called(ctx, session, address)
	return ret.Get(0).(uint256.Int), ret.Error(1)
}

// History provides a mock function with given fields: ctx, session, address
func (_m *LedgerService) History(ctx context.Context, session model.Session, address model.Address) ([]model.Transaction, error) {
	ret := _m.Called(ctx, session, address)

	var r0 []model.Transaction
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Transaction)
	}
	return r0, ret.Error(1)
}

// Statistics provides a mock function with given fields: ctx, session
func (_m *LedgerService) Statistics(ctx context.Context, session model.Session) (model.Statistics, error) {
	ret := _m.Called(ctx, session)
	return ret.Get(0).(model.Statistics), ret.Error(1)
}

// WithdrawFees provides a mock function with given fields: ctx, session
func (_m *LedgerService) WithdrawFees(ctx context.Context, session model.Session) (uint256.Int, error) {
	ret := _m.Called(ctx, session)
	return ret.Get(0).(uint256.Int), ret.Error(1)
}

// NewLedgerService creates a new instance of LedgerService. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewLedgerService(t interface {
	mock.TestingT
	Cleanup(func())
}) *LedgerService {
	m := &LedgerService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
