package adapter

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/correlator/engine/event"
)

// MockAdapter is a testify/mock-based DataSourceAdapter for engine-level
// tests that need to assert on registration, stream creation, or
// teardown calls rather than replay real data.
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) Name() string {
	return m.Called().String(0)
}

func (m *MockAdapter) CreateStream(ctx context.Context, selector string, opts StreamOptions) (<-chan event.LogEvent, error) {
	args := m.Called(ctx, selector, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan event.LogEvent), args.Error(1)
}

func (m *MockAdapter) ValidateQuery(selector string) bool {
	return m.Called(selector).Bool(0)
}

func (m *MockAdapter) Destroy() error {
	return m.Called().Error(0)
}
