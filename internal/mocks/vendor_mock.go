package mocks

import (
	"context"

	http_utils "github.com/benmeehan/switchbot-bridge/pkg/httpUtils"
	"github.com/stretchr/testify/mock"
)

// MockVendorClient is a mock of the SwitchBot vendor client.
type MockVendorClient struct {
	mock.Mock
}

func (m *MockVendorClient) Get(ctx context.Context, path string) (*http_utils.Response, error) {
	args := m.Called(ctx, path)
	resp, _ := args.Get(0).(*http_utils.Response)
	return resp, args.Error(1)
}

func (m *MockVendorClient) Post(ctx context.Context, path string, body []byte) (*http_utils.Response, error) {
	args := m.Called(ctx, path, body)
	resp, _ := args.Get(0).(*http_utils.Response)
	return resp, args.Error(1)
}
