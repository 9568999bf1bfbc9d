package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRateLimited = errors.New("429: rate limit exceeded")

func TestRotatorRotatesOncePerRateLimit(t *testing.T) {
	keys := []string{"k1", "k2", "k3", "k4"}
	for m := 0; m < len(keys); m++ {
		t.Run(fmt.Sprintf("first %d limited", m), func(t *testing.T) {
			r := NewCredentialRotator("test", keys)
			var used []string

			err := r.Do(context.Background(), func(idx int, key string) error {
				used = append(used, key)
				if idx < m {
					return errRateLimited
				}
				return nil
			})

			require.NoError(t, err)
			assert.Equal(t, m, r.Rotations())
			assert.Equal(t, keys[m], used[len(used)-1])
			assert.Len(t, used, m+1)
		})
	}
}

func TestRotatorExhaustsAfterNAttempts(t *testing.T) {
	r := NewCredentialRotator("test", []string{"a", "b", "c"})
	attempts := 0

	err := r.Do(context.Background(), func(int, string) error {
		attempts++
		return errRateLimited
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialsExhausted)
	assert.ErrorIs(t, err, errRateLimited)
	assert.Equal(t, 3, attempts)
}

func TestRotatorDoesNotRotateOnOtherErrors(t *testing.T) {
	r := NewCredentialRotator("test", []string{"a", "b"})
	boom := errors.New("invalid request")
	attempts := 0

	err := r.Do(context.Background(), func(int, string) error {
		attempts++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
	assert.Zero(t, r.Rotations())
}

func TestRotatorKeepsPositionAcrossCalls(t *testing.T) {
	r := NewCredentialRotator("test", []string{"a", "b", "c"})

	require.NoError(t, r.Do(context.Background(), func(idx int, _ string) error {
		if idx == 0 {
			return errRateLimited
		}
		return nil
	}))

	var first string
	require.NoError(t, r.Do(context.Background(), func(_ int, key string) error {
		first = key
		return nil
	}))
	assert.Equal(t, "b", first)

	_, key := r.Current()
	assert.Equal(t, "b", key)
}

func TestRotatorWrapsAround(t *testing.T) {
	r := NewCredentialRotator("test", []string{"a", "b"})
	r.advanceFrom(0)
	r.advanceFrom(1)

	idx, key := r.Current()
	assert.Equal(t, 0, idx)
	assert.Equal(t, "a", key)
	assert.Equal(t, 2, r.Rotations())
}

func TestRotatorConcurrentAdvanceMovesOnce(t *testing.T) {
	r := NewCredentialRotator("test", []string{"a", "b", "c"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.advanceFrom(0)
		}()
	}
	wg.Wait()

	idx, _ := r.Current()
	assert.Equal(t, 1, idx)
	assert.Equal(t, 1, r.Rotations())
}

func TestRotatorWithoutKeys(t *testing.T) {
	r := NewCredentialRotator("test", []string{"", ""})
	assert.Zero(t, r.Len())
	err := r.Do(context.Background(), func(int, string) error { return nil })
	assert.Error(t, err)
}

func TestRotatorHonoursCancelledContext(t *testing.T) {
	r := NewCredentialRotator("test", []string{"a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Do(ctx, func(int, string) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

type stubChat struct {
	reply string
	err   error
	calls int
	last  []*schema.Message
}

func (s *stubChat) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	s.calls++
	s.last = in
	if s.err != nil {
		return nil, s.err
	}
	return &schema.Message{Role: schema.Assistant, Content: s.reply}, nil
}

func TestOpenAIProviderRotatesKeys(t *testing.T) {
	limited := &stubChat{err: errRateLimited}
	ok := &stubChat{reply: "done"}
	rotator := NewCredentialRotator("dashscope", []string{"k1", "k2"})
	p := newOpenAIProvider("dashscope", OpenAIConfig{Model: "m"}, []chatGenerator{limited, ok}, rotator)

	got, err := p.Generate(context.Background(), "hi", 100)
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 1, rotator.Rotations())

	got, err = p.Generate(context.Background(), "again", 100)
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 1, limited.calls)
	assert.Equal(t, 2, ok.calls)
}

func TestOpenAIProviderAllKeysLimited(t *testing.T) {
	a, b := &stubChat{err: errRateLimited}, &stubChat{err: errRateLimited}
	rotator := NewCredentialRotator("dashscope", []string{"k1", "k2"})
	p := newOpenAIProvider("dashscope", OpenAIConfig{}, []chatGenerator{a, b}, rotator)

	_, err := p.Generate(context.Background(), "hi", 0)
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.RateLimited)
	assert.ErrorIs(t, err, ErrCredentialsExhausted)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestOpenAIProviderDescribeSendsImagePart(t *testing.T) {
	chat := &stubChat{reply: "a chart"}
	p := newOpenAIProvider("vl", OpenAIConfig{}, []chatGenerator{chat}, NewCredentialRotator("vl", []string{"k"}))

	got, err := p.Describe(context.Background(), "what is this", ImageRef{Data: []byte{1}, MIMEType: "image/png"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "a chart", got)

	require.Len(t, chat.last, 1)
	parts := chat.last[0].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, "what is this", parts[0].Text)
	assert.Equal(t, "data:image/png;base64,AQ==", parts[1].ImageURL.URL)
}

func TestOpenAIProviderUnconfigured(t *testing.T) {
	p := newOpenAIProvider("none", OpenAIConfig{}, nil, NewCredentialRotator("none", nil))
	assert.False(t, p.IsConfigured())
	_, err := p.Generate(context.Background(), "hi", 0)
	assert.Error(t, err)
}
