package mocks

import (
	"net"

	"github.com/stretchr/testify/mock"
)

// SecurityLayer is a mock type for the SecurityLayer type
type SecurityLayer struct {
	mock.Mock
}

// Listen provides a mock function with given fields: protocol, addr
func (_m *SecurityLayer) Listen(protocol string, addr string) (net.Listener, error) {
	ret := _m.Called(protocol, addr)

	if rf, ok := ret.Get(0).(func(string, string) (net.Listener, error)); ok {
		return rf(protocol, addr)
	}
	var l net.Listener
	if ret.Get(0) != nil {
		l = ret.Get(0).(net.Listener)
	}
	return l, ret.Error(1)
}

// NewSecurityLayer creates a new instance of SecurityLayer. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewSecurityLayer(t interface {
	mock.TestingT
	Cleanup(func())
}) *SecurityLayer {
	m := &SecurityLayer{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
