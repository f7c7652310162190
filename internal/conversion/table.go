package conversion

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Table maintains the symbol -> USD rate mapping used for fee display. The
// refresh routine is the only writer; readers get point-in-time lookups.
// A missing symbol means "rate unknown", never zero.
type Table struct {
	api           RatesAPI
	rates         *cache.Cache
	fiat          string
	nativeSymbols []string
	interval      time.Duration

	mu       sync.Mutex
	tracked  map[string]struct{}
	inFlight string

	stopChan chan struct{}
	running  bool
}

func NewTable(api RatesAPI, fiat string, nativeSymbols []string, interval time.Duration) *Table {
	native := make([]string, 0, len(nativeSymbols))
	for _, s := range nativeSymbols {
		native = append(native, strings.ToLower(s))
	}

	return &Table{
		api:           api,
		rates:         cache.New(cache.NoExpiration, 10*time.Minute),
		fiat:          fiat,
		nativeSymbols: native,
		interval:      interval,
		tracked:       make(map[string]struct{}),
	}
}

// Convert fetches rates for the given symbols plus the chain's native
// symbols, so gas-fee conversions are always resolvable. A failed fetch
// yields an empty mapping, not an error: callers treat a missing symbol as
// "no conversion available". A request identical to one already in flight
// is dropped and answered from the current table.
func (t *Table) Convert(ctx context.Context, symbols []string, fiat string) map[string]float64 {
	if fiat == "" {
		fiat = t.fiat
	}
	batch := t.batch(symbols)
	key := strings.Join(batch, ",") + "|" + fiat

	t.mu.Lock()
	if t.inFlight == key {
		t.mu.Unlock()
		return t.snapshot(batch)
	}
	t.inFlight = key
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.inFlight = ""
		t.mu.Unlock()
	}()

	fetched, err := t.api.FetchRates(ctx, batch, fiat)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("symbols", key)).Warn("Conversion: fetch failed")
		return map[string]float64{}
	}

	for symbol, rate := range fetched {
		t.rates.Set(strings.ToLower(symbol), rate, cache.NoExpiration)
	}

	return t.snapshot(batch)
}

// Track replaces the tracked symbol set and refreshes immediately, since the
// set changed.
func (t *Table) Track(ctx context.Context, symbols []string) {
	t.mu.Lock()
	t.tracked = make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		t.tracked[strings.ToLower(s)] = struct{}{}
	}
	t.mu.Unlock()

	t.Convert(ctx, symbols, t.fiat)
}

// StartRefresh polls for fresh rates while at least one symbol is tracked.
func (t *Table) StartRefresh() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return
	}
	t.running = true
	t.stopChan = make(chan struct{})

	go t.refreshLoop(t.stopChan)
}

func (t *Table) StopRefresh() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.running = false
	close(t.stopChan)
}

func (t *Table) refreshLoop(stop chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			symbols := make([]string, 0, len(t.tracked))
			for s := range t.tracked {
				symbols = append(symbols, s)
			}
			t.mu.Unlock()

			if len(symbols) == 0 {
				continue
			}
			t.Convert(context.Background(), symbols, t.fiat)
		}
	}
}

// CryptoToFiat converts a decimal token amount to fiat using the current
// table. Unknown symbols and unparseable amounts yield 0, never an error.
func (t *Table) CryptoToFiat(amount string, symbol string) float64 {
	rate, ok := t.Rate(symbol)
	if !ok {
		return 0
	}

	value, err := strconv.ParseFloat(amount, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}

	return value * rate
}

func (t *Table) Rate(symbol string) (float64, bool) {
	if entry, exists := t.rates.Get(strings.ToLower(symbol)); exists {
		return entry.(float64), true
	}
	return 0, false
}

// batch is the deduplicated, lower-cased symbol set including the native
// symbols, in stable order.
func (t *Table) batch(symbols []string) []string {
	seen := make(map[string]struct{})
	for _, s := range symbols {
		seen[strings.ToLower(s)] = struct{}{}
	}
	for _, s := range t.nativeSymbols {
		seen[s] = struct{}{}
	}

	batch := make([]string, 0, len(seen))
	for s := range seen {
		batch = append(batch, s)
	}
	sort.Strings(batch)

	return batch
}

func (t *Table) snapshot(symbols []string) map[string]float64 {
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if rate, ok := t.Rate(s); ok {
			out[s] = rate
		}
	}
	return out
}
