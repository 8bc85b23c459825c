package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/classfund/internal/models"
)

type sourceFunc func(ctx context.Context, ticker string) (*models.Quote, error)

func (f sourceFunc) Quote(ctx context.Context, ticker string) (*models.Quote, error) {
	return f(ctx, ticker)
}

func TestScheduler_NeverExceedsConcurrency(t *testing.T) {
	const limit = 3
	var inFlight, peak int32

	src := sourceFunc(func(_ context.Context, tk string) (*models.Quote, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &models.Quote{Ticker: tk, Price: 1}, nil
	})

	tickers := make([]string, 40)
	for i := range tickers {
		tickers[i] = fmt.Sprintf("T%02d", i)
	}

	res := NewScheduler(src, limit, nil).Fetch(context.Background(), tickers)
	assert.Len(t, res.Quotes, 40)
	assert.Empty(t, res.Missing)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(limit))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&peak), int32(1))
}

func TestScheduler_EachTickerFetchedOnce(t *testing.T) {
	var mu sync.Mutex
	counts := map[string]int{}
	src := sourceFunc(func(_ context.Context, tk string) (*models.Quote, error) {
		mu.Lock()
		counts[tk]++
		mu.Unlock()
		return &models.Quote{Ticker: tk, Price: 2}, nil
	})

	res := NewScheduler(src, 4, nil).Fetch(context.Background(), []string{"aaa", "AAA", " aaa ", "bbb", "brk.b", "BRK-B"})
	assert.Equal(t, map[string]int{"AAA": 1, "BBB": 1, "BRK-B": 1}, counts)
	assert.Len(t, res.Quotes, 3)
}

func TestScheduler_MissingSortedAndPanicsRecovered(t *testing.T) {
	src := sourceFunc(func(_ context.Context, tk string) (*models.Quote, error) {
		switch tk {
		case "ZED":
			return nil, errors.New("not found")
		case "MID":
			panic("worker exploded")
		case "NAN":
			return &models.Quote{Ticker: tk, Price: 0}, nil
		}
		return &models.Quote{Ticker: tk, Price: 5}, nil
	})

	res := NewScheduler(src, 2, nil).Fetch(context.Background(), []string{"ZED", "AAA", "MID", "NAN", "BBB"})
	assert.Equal(t, []string{"MID", "NAN", "ZED"}, res.Missing)
	require.Contains(t, res.Quotes, "AAA")
	require.Contains(t, res.Quotes, "BBB")
	assert.NotContains(t, res.Quotes, "MID")
}

func TestScheduler_EmptyInput(t *testing.T) {
	src := sourceFunc(func(context.Context, string) (*models.Quote, error) {
		t.Fatal("source should not be called")
		return nil, nil
	})
	res := NewScheduler(src, 6, nil).Fetch(context.Background(), nil)
	assert.Empty(t, res.Quotes)
	assert.NotNil(t, res.Missing)
	assert.Empty(t, res.Missing)
}

func TestScheduler_ClampsConcurrency(t *testing.T) {
	assert.Equal(t, 1, NewScheduler(nil, 0, nil).Concurrency())
	assert.Equal(t, 1, NewScheduler(nil, -4, nil).Concurrency())
	assert.Equal(t, 8, NewScheduler(nil, 8, nil).Concurrency())
}

func TestScheduler_WithChain(t *testing.T) {
	chain := NewChain(nil, nil)
	res := NewScheduler(chain, DefaultConcurrency, nil).Fetch(context.Background(), []string{"AAA", "BBB"})
	assert.Equal(t, []string{"AAA", "BBB"}, res.Missing)
}
