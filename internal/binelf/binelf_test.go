package binelf

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse4RoundTrip(t *testing.T) {
	data := []byte{0x12, 0x34, 0x56, 0x78}
	require.Equal(t, uint64(0x78563412), parse4(data, 0))
}

func TestParse8RoundTrip(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	require.Equal(t, uint64(0x0807060504030201), parse8(data, 0))
}

func TestCString(t *testing.T) {
	data := []byte("\x00foo\x00bar\x00")
	require.Equal(t, "foo", cString(data, 1))
	require.Equal(t, "bar", cString(data, 5))
	require.Equal(t, "", cString(data, 100))
}

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Warnf(format string, args ...interface{}) {
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

func TestSizeOfUnknownFileReturnsZero(t *testing.T) {
	logger := &recordingLogger{}
	ins := NewInspector(WithLogger(logger))

	require.Equal(t, uint64(0), ins.SizeOf("/does/not/exist.so", "foo"))
	require.False(t, ins.IsVirtual("/does/not/exist.so", "foo"))
	require.Len(t, logger.messages, 1)

	// A second lookup against the same file must not reparse or log again.
	ins.SizeOf("/does/not/exist.so", "foo")
	require.Len(t, logger.messages, 1)
}

func TestEmptyFileNameIsNoop(t *testing.T) {
	logger := &recordingLogger{}
	ins := NewInspector(WithLogger(logger))

	require.Equal(t, uint64(0), ins.SizeOf("  ", "foo"))
	require.Empty(t, logger.messages)
}

func TestIndexKeySeparatesFileAndFunction(t *testing.T) {
	require.Equal(t, "a##b", indexKey("a", "b"))
	require.NotEqual(t, indexKey("a#", "#b"), indexKey("a", "#b"))
}

func TestPrewarmParsesEveryFileOnceAndSkipsAlreadyParsed(t *testing.T) {
	logger := &recordingLogger{}
	ins := NewInspector(WithLogger(logger))

	ins.Prewarm([]string{"/does/not/exist-a.so", "/does/not/exist-b.so", "/does/not/exist-a.so", ""})
	require.Len(t, logger.messages, 2)

	// Every prewarmed file, including duplicates, must be marked parsed so a
	// later SizeOf/IsVirtual lookup neither reparses nor logs again.
	require.Equal(t, uint64(0), ins.SizeOf("/does/not/exist-a.so", "foo"))
	require.Len(t, logger.messages, 2)
}

func TestPrewarmEmptyInputIsNoop(t *testing.T) {
	logger := &recordingLogger{}
	ins := NewInspector(WithLogger(logger))

	ins.Prewarm(nil)
	require.Empty(t, logger.messages)
}

func TestPrewarmContextCancelledUpfrontStillReturns(t *testing.T) {
	logger := &recordingLogger{}
	ins := NewInspector(WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Must not hang or panic; workers may skip files entirely once ctx is
	// done, so no assertion is made on how many files got parsed.
	ins.PrewarmContext(ctx, []string{"/does/not/exist-a.so", "/does/not/exist-b.so"})
}
