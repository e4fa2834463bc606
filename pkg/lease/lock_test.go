package lease

import (
	"context"
	"fmt"
	"testing"
)

func TestManager_LockLifecycle(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	count := 1000

	for i := 0; i < count; i++ {
		release, err := m.Acquire(ctx, fmt.Sprintf("/scratch/run-%d", i))
		if err != nil {
			t.Fatal(err)
		}
		release()
	}

	if n := len(m.locks); n != 0 {
		t.Errorf("%d lock entries remaining after release", n)
	}
}
