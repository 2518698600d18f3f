package mocks

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/smartbank-server/internal/model"
)

// FundsTransfer is a mock type for the FundsTransfer type
type FundsTransfer struct {
	mock.Mock
}

// Transfer provides a mock function with given fields: ctx, to, amount
func (_m *FundsTransfer) Transfer(ctx context.Context, to model.Address, amount uint256.Int) error {
	ret := _m.Called(ctx, to, amount)

	if rf, ok := ret.Get(0).(func(context.Context, model.Address, uint256.Int) error); ok {
		return rf(ctx, to, amount)
	}
	return ret.Error(0)
}

// NewFundsTransfer creates a new instance of FundsTransfer. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewFundsTransfer(t interface {
	mock.TestingT
	Cleanup(func())
}) *FundsTransfer {
	m := &FundsTransfer{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
