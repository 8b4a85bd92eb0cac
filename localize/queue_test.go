package localize

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"
)

func TestBatchQueueFIFO(t *testing.T) {
	q := NewBatchQueue(10, clock.New())
	first := &Batch{Time: time.Unix(1, 0)}
	second := &Batch{Time: time.Unix(2, 0)}
	q.Push(first)
	q.Push(second)
	test.That(t, q.Len(), test.ShouldEqual, 2)

	got, err := q.Pop(context.Background(), time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldEqual, first)
	got, err = q.Pop(context.Background(), time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldEqual, second)
	test.That(t, q.Len(), test.ShouldEqual, 0)
	test.That(t, q.Dropped(), test.ShouldEqual, 0)
}

func TestBatchQueueOverflowDropsOldest(t *testing.T) {
	q := NewBatchQueue(3, clock.New())
	for i := 0; i < 5; i++ {
		q.Push(&Batch{Time: time.Unix(int64(i), 0)})
	}
	test.That(t, q.Len(), test.ShouldEqual, 3)
	test.That(t, q.Dropped(), test.ShouldEqual, 2)

	// The two oldest batches were evicted; the newest three remain in order.
	for i := 2; i < 5; i++ {
		got, err := q.Pop(context.Background(), time.Second)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.Time, test.ShouldEqual, time.Unix(int64(i), 0))
	}
}

func TestBatchQueueDepthClamped(t *testing.T) {
	// A non-positive depth degrades to a single-slot queue; pushing must
	// never panic.
	for _, depth := range []int{0, -3} {
		q := NewBatchQueue(depth, clock.New())
		q.Push(&Batch{Time: time.Unix(1, 0)})
		q.Push(&Batch{Time: time.Unix(2, 0)})
		test.That(t, q.Len(), test.ShouldEqual, 1)
		test.That(t, q.Dropped(), test.ShouldEqual, 1)

		got, err := q.Pop(context.Background(), time.Second)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.Time, test.ShouldEqual, time.Unix(2, 0))
	}
}

func TestBatchQueuePopTimeout(t *testing.T) {
	clk := clock.NewMock()
	q := NewBatchQueue(3, clk)

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background(), time.Second)
		errCh <- err
	}()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		clk.Add(500 * time.Millisecond)
		select {
		case err := <-errCh:
			test.That(tb, err, test.ShouldBeError, ErrWaitTimeout)
		default:
			tb.Error("pop still waiting")
		}
	})
}

func TestBatchQueuePopCancel(t *testing.T) {
	q := NewBatchQueue(3, clock.New())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Pop(ctx, time.Minute)
		errCh <- err
	}()
	cancel()
	err := <-errCh
	test.That(t, err, test.ShouldBeError, context.Canceled)
}

func TestBatchQueueWakeWithoutData(t *testing.T) {
	q := NewBatchQueue(3, clock.New())
	// A wake-up on an empty queue must not produce a batch.
	q.Wake()
	_, err := q.Pop(context.Background(), 10*time.Millisecond)
	test.That(t, err, test.ShouldBeError, ErrWaitTimeout)
}

func TestBatchQueuePushWhileWaiting(t *testing.T) {
	q := NewBatchQueue(3, clock.New())
	batch := &Batch{Time: time.Unix(42, 0)}

	type result struct {
		batch *Batch
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		got, err := q.Pop(context.Background(), time.Minute)
		resCh <- result{got, err}
	}()
	q.Push(batch)

	res := <-resCh
	test.That(t, res.err, test.ShouldBeNil)
	test.That(t, res.batch, test.ShouldEqual, batch)
}
