package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	fetchErrs []error
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestConsumerCommitsHandledMessages(t *testing.T) {
	reader := &fakeReader{
		fetchErrs: []error{errors.New("broker hiccup")},
		msgs: []kafka.Message{
			{Offset: 1, Key: []byte("a"), Value: []byte(`{"n":1}`)},
			{Offset: 2, Key: []byte("b"), Value: []byte(`bad`)},
			{Offset: 3, Key: []byte("c"), Value: []byte(`{"n":3}`)},
		},
	}
	var seen []int
	c := newConsumer(reader, "query-events", func(_ context.Context, _, value []byte) error {
		v, err := DecodeJSON[struct{ N int }](value)
		if err != nil {
			return err
		}
		seen = append(seen, v.N)
		return nil
	})

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []int{1, 3}, seen)
	assert.Equal(t, []int64{1, 3}, reader.committed, "failed messages stay uncommitted")

	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}

func TestConsumerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader := &fakeReader{fetchErrs: []error{context.Canceled}}
	c := newConsumer(reader, "t", func(context.Context, []byte, []byte) error { return nil })
	assert.NoError(t, c.Run(ctx))
}

func TestDecodeJSON(t *testing.T) {
	v, err := DecodeJSON[map[string]int]([]byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1}, v)

	_, err = DecodeJSON[map[string]int]([]byte(`[`))
	assert.ErrorContains(t, err, "decoding kafka message")
}
