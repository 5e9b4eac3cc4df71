package recovery

import (
	"bytes"
	"errors"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	errBoom := errors.New("boom")

	require.NoError(t, Do(func() error { return nil })())
	require.ErrorIs(t, Do(func() error { return errBoom })(), errBoom)
	require.ErrorIs(t, Do(func() error { panic(errBoom) })(), errBoom)
	require.EqualError(t, Do(func() error { panic("limit") })(), "panic: limit")
	require.EqualError(t, Do(func() error { panic(42) })(), "panic: 42")

	var buf bytes.Buffer
	err := Do(func() error { panic("logged") }, log.NewLogfmtLogger(&buf))()
	require.Error(t, err)
	require.Contains(t, buf.String(), "recovered from panic")
	require.Contains(t, buf.String(), "stacktrace")
}
