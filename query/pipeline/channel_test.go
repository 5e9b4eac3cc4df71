package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
)

func TestChannelEndsWhenAllSendersClosed(t *testing.T) {
	ctx := context.Background()
	tx, rx := newChannel(4)
	other := tx.Clone()

	require.NoError(t, tx.Send(ctx, Result{Err: errors.New("first")}))
	tx.Close()
	tx.Close() // no-op
	require.NoError(t, other.Send(ctx, Result{Err: errors.New("second")}))
	other.Close()

	_, err := rx.Next(ctx)
	require.EqualError(t, err, "first")
	_, err = rx.Next(ctx)
	require.EqualError(t, err, "second")
	_, err = rx.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestChannelReceiverClosed(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	ctx := context.Background()
	tx, rx := newChannel(1)
	defer tx.Close()

	require.NoError(t, tx.Send(ctx, Result{Record: int64Record(mem, 1)}))
	// Releases the buffered record.
	require.NoError(t, rx.Close())

	require.ErrorIs(t, tx.Send(ctx, Result{Err: errors.New("late")}), ErrReceiverClosed)
}

func TestChannelSendCancelled(t *testing.T) {
	tx, rx := newChannel(1)
	defer rx.Close()
	defer tx.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, tx.Send(ctx, Result{Err: errors.New("fills the buffer")}))
	cancel()
	require.ErrorIs(t, tx.Send(ctx, Result{Err: errors.New("blocked")}), context.Canceled)

	_, err := rx.Next(ctx)
	// Either the buffered item or the cancellation, both are fine.
	require.Error(t, err)
}

func TestChannelLastSenderReleasesLateItems(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	tx, rx := newChannel(2)
	require.NoError(t, rx.Close())

	// An item that won the race against the receiver's drain.
	tx.ch.items <- Result{Record: int64Record(mem, 1)}
	tx.Close()
}
