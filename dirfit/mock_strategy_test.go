package dirfit

import (
	"reflect"
	"testing"

	"go.uber.org/mock/gomock"
)

// MockDirectionStrategy is a hand-written stand-in for a mockgen-generated
// mock of DirectionStrategy, used to verify Rent calls through the
// strategy interface with the inputs it expects rather than asserting on
// internal allocator state.
type MockDirectionStrategy struct {
	ctrl     *gomock.Controller
	recorder *MockDirectionStrategyMockRecorder
}

// MockDirectionStrategyMockRecorder is the recorder for MockDirectionStrategy.
type MockDirectionStrategyMockRecorder struct {
	mock *MockDirectionStrategy
}

// NewMockDirectionStrategy returns a new mock controlled by ctrl.
func NewMockDirectionStrategy(ctrl *gomock.Controller) *MockDirectionStrategy {
	m := &MockDirectionStrategy{ctrl: ctrl}
	m.recorder = &MockDirectionStrategyMockRecorder{mock: m}
	return m
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockDirectionStrategy) EXPECT() *MockDirectionStrategyMockRecorder {
	return m.recorder
}

// Decide implements DirectionStrategy.
func (m *MockDirectionStrategy) Decide(freeBalance, headOffset, prevDirection float64) bool {
	m.ctrl.T.Helper()

	ret := m.ctrl.Call(m, "Decide", freeBalance, headOffset, prevDirection)
	ret0, _ := ret[0].(bool)

	return ret0
}

// Decide indicates an expected call of Decide.
func (mr *MockDirectionStrategyMockRecorder) Decide(freeBalance, headOffset, prevDirection interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Decide",
		reflect.TypeOf((*MockDirectionStrategy)(nil).Decide), freeBalance, headOffset, prevDirection)
}

func TestRentConsultsStrategyWithNormalizedInputs(t *testing.T) {
	ctrl := gomock.NewController(t)

	strategy := NewMockDirectionStrategy(ctrl)
	strategy.EXPECT().
		Decide(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(balance, headOffset, prevDirection float64) bool {
			if balance < -1 || balance > 1 {
				t.Errorf("balance out of normalized range: %v", balance)
			}

			if headOffset < -1 || headOffset > 1 {
				t.Errorf("headOffset out of normalized range: %v", headOffset)
			}

			if prevDirection != 1 && prevDirection != -1 {
				t.Errorf("prevDirection must be +1 or -1, got %v", prevDirection)
			}

			return true
		})

	a, err := NewWithStrategy(128, strategy)
	if err != nil {
		t.Fatalf("NewWithStrategy: %v", err)
	}
	defer a.Dispose()

	if _, _, ok := a.TryRent(8); !ok {
		t.Fatalf("rent failed")
	}
}

func TestRentWithBackwardStrategyAtCursorZeroSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)

	// A strategy that always insists on backward search from cursor 0
	// still succeeds: the scan examines the run at the cursor first, and
	// on a fresh buffer that is the single free run spanning everything.
	strategy := NewMockDirectionStrategy(ctrl)
	strategy.EXPECT().Decide(gomock.Any(), gomock.Any(), gomock.Any()).Return(false)

	a, err := NewWithStrategy(32, strategy)
	if err != nil {
		t.Fatalf("NewWithStrategy: %v", err)
	}
	defer a.Dispose()

	if _, _, ok := a.TryRent(4); !ok {
		t.Fatalf("rent failed with a backward-only strategy on an empty buffer")
	}
}
