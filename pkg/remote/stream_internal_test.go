package remote

import (
	"context"
	"errors"
	"io"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers
)

func TestChunkReaderPropagatesFetchError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	boom := errors.New("boom")
	r := newChunkReader(context.Background(), func(_ context.Context, offset int64) ([]byte, error) {
		if offset == 0 {
			return []byte("abc"), nil
		}

		return nil, boom
	})
	defer r.Close()

	data, err := io.ReadAll(r)
	g.Expect(string(data)).Should(Equal("abc"))
	g.Expect(err).Should(MatchError(boom))
}

func TestChunkWriterStopsAfterSendError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	boom := errors.New("boom")
	calls := 0
	w := newChunkWriter(2, func([]byte) error {
		calls++
		return boom
	})

	n, err := w.Write([]byte("abcd"))
	g.Expect(n).Should(Equal(2))
	g.Expect(err).Should(MatchError(boom))

	_, err = w.Write([]byte("e"))
	g.Expect(err).Should(MatchError(boom))
	g.Expect(w.Close()).Should(MatchError(boom))
	g.Expect(calls).Should(Equal(1))
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	permanent := errors.New("permanent")
	calls := 0

	err := withRetry(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return permanent
	})

	g.Expect(err).Should(MatchError(permanent))
	g.Expect(calls).Should(Equal(1))
}

func TestWithRetryUnwrapsMarker(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	transient := errors.New("transient")
	calls := 0

	err := withRetry(context.Background(), RetryConfig{MaxAttempts: 2}, func() error {
		calls++
		return retryable(transient)
	})

	g.Expect(err).Should(BeIdenticalTo(transient))
	g.Expect(calls).Should(Equal(2))
}
