package fault

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestKindSentinels(t *testing.T) {
	err := New(KindResourceExhaustion, "mempool.Lease", "pool exhausted")

	if !errors.Is(err, ErrResourceExhaustion) {
		t.Errorf("Expected error to match ErrResourceExhaustion")
	}
	if errors.Is(err, ErrSystemFailure) {
		t.Errorf("Resource exhaustion must not match ErrSystemFailure")
	}
	if KindOf(err) != KindResourceExhaustion {
		t.Errorf("Expected kind %s, got %s", KindResourceExhaustion, KindOf(err))
	}
	if !strings.Contains(err.Error(), "mempool.Lease") || !strings.Contains(err.Error(), "pool exhausted") {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

func TestTimeoutIsSynchronizationFailure(t *testing.T) {
	err := New(KindTimeout, "lock.LockTimeout", "timed out")

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected error to match ErrTimeout")
	}
	if !errors.Is(err, ErrSynchronizationFailure) {
		t.Errorf("Expected timeout to also be a synchronization failure")
	}
	if Is(New(KindSynchronizationFailure, "", "x"), KindTimeout) {
		t.Errorf("A plain synchronization failure is not a timeout")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(KindSystemFailure, "listener.Accept", io.ErrUnexpectedEOF)

	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected wrapped cause to be reachable")
	}
	if !Is(err, KindSystemFailure) {
		t.Errorf("Expected SystemFailure kind")
	}
	if Wrap(KindSystemFailure, "noop", nil) != nil {
		t.Errorf("Wrapping nil must return nil")
	}
}

func TestKindOfForeignError(t *testing.T) {
	if KindOf(io.EOF) != KindUnknown {
		t.Errorf("Expected KindUnknown for foreign error")
	}
	if Is(nil, KindLogicFailure) {
		t.Errorf("nil error has no kind")
	}
}
