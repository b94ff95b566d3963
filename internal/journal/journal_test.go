package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/engine"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func statusLog(seq uint64, orderID string) engine.Log {
	return engine.Log{
		Seq:       seq,
		Type:      engine.LogOrderStatusChanged,
		ProductID: "BTC-USDT",
		Timestamp: time.Date(2025, 1, 1, 0, 0, int(seq), 0, time.UTC),
		Order: &domain.Order{
			ID:        orderID,
			ProductID: "BTC-USDT",
			Price:     decimal.RequireFromString("100.5"),
			Amount:    decimal.RequireFromString("2"),
			Status:    domain.OrderStatusOpen,
		},
		Status: domain.OrderStatusOpen,
	}
}

func TestJournal_EmptyLast(t *testing.T) {
	j := openTest(t)
	last, err := j.Last()
	if err != nil || last != 0 {
		t.Fatalf("Last() = %d, %v; want 0, nil", last, err)
	}
}

func TestJournal_RoundTripAndRange(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	if err := j.HandleBatch(ctx, []engine.Log{statusLog(1, "a"), statusLog(2, "b")}); err != nil {
		t.Fatal(err)
	}
	if err := j.Append(statusLog(10, "c")); err != nil {
		t.Fatal(err)
	}

	last, err := j.Last()
	if err != nil || last != 10 {
		t.Fatalf("Last() = %d, %v; want 10", last, err)
	}

	l, ok, err := j.Get(2)
	if err != nil || !ok {
		t.Fatalf("Get(2) = %v, %v", ok, err)
	}
	if l.Order.ID != "b" || !l.Order.Price.Equal(decimal.RequireFromString("100.5")) {
		t.Errorf("Get(2) returned %+v", l.Order)
	}

	var seqs []uint64
	err = j.Range(2, func(l engine.Log) error {
		seqs = append(seqs, l.Seq)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seqs) != 2 || seqs[0] != 2 || seqs[1] != 10 {
		t.Errorf("Range(2) = %v, want [2 10]", seqs)
	}
}

func TestJournal_RedeliveryIsIdempotent(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()
	batch := []engine.Log{statusLog(1, "a"), statusLog(2, "b")}
	for i := 0; i < 2; i++ {
		if err := j.HandleBatch(ctx, batch); err != nil {
			t.Fatal(err)
		}
	}

	var n int
	_ = j.Range(0, func(engine.Log) error { n++; return nil })
	if n != 2 {
		t.Errorf("got %d entries after redelivery, want 2", n)
	}
}

func TestJournal_RangeStopsOnError(t *testing.T) {
	j := openTest(t)
	_ = j.HandleBatch(context.Background(), []engine.Log{statusLog(1, "a"), statusLog(2, "b")})

	stop := errors.New("stop")
	var n int
	err := j.Range(0, func(engine.Log) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Errorf("Range() = %v after %d calls", err, n)
	}
}

func TestJournal_RejectsUnsequencedLogs(t *testing.T) {
	j := openTest(t)
	if err := j.HandleBatch(context.Background(), []engine.Log{statusLog(0, "a")}); err == nil {
		t.Fatal("expected an error for seq 0")
	}
}

func TestJournal_MissingEntry(t *testing.T) {
	j := openTest(t)
	_, ok, err := j.Get(42)
	if err != nil || ok {
		t.Errorf("Get(42) = %v, %v; want false, nil", ok, err)
	}
}

func matchedLog(seq uint64, productID string, tradeSeq uint64, taker bool) engine.Log {
	return engine.Log{
		Seq:       seq,
		Type:      engine.LogOrderMatched,
		ProductID: productID,
		Taker:     taker,
		Trade: &domain.Trade{
			ID:        productID + "-t",
			ProductID: productID,
			Price:     decimal.RequireFromString("100"),
			Amount:    decimal.RequireFromString("1"),
			Seq:       tradeSeq,
		},
	}
}

func TestJournal_ReplayCollectsState(t *testing.T) {
	j := openTest(t)
	logs := []engine.Log{
		statusLog(1, "a"),
		matchedLog(2, "BTC-USDT", 1, true),
		matchedLog(3, "BTC-USDT", 1, false),
		matchedLog(4, "ETH-USDT", 7, true),
		matchedLog(5, "BTC-USDT", 2, true),
		statusLog(6, "b"),
	}
	if err := j.HandleBatch(context.Background(), logs); err != nil {
		t.Fatal(err)
	}

	var seen []uint64
	st, err := j.Replay(func(l engine.Log) { seen = append(seen, l.Seq) })
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(seen) != len(logs) {
		t.Fatalf("replayed %d logs, want %d", len(seen), len(logs))
	}
	if st.LastSeq != 6 {
		t.Errorf("LastSeq = %d, want 6", st.LastSeq)
	}
	if st.TradeSeqs["BTC-USDT"] != 2 || st.TradeSeqs["ETH-USDT"] != 7 {
		t.Errorf("TradeSeqs = %v, want BTC-USDT:2 ETH-USDT:7", st.TradeSeqs)
	}
}

func TestJournal_ReplayEmpty(t *testing.T) {
	j := openTest(t)
	st, err := j.Replay(func(engine.Log) { t.Fatal("unexpected log") })
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if st.LastSeq != 0 || len(st.TradeSeqs) != 0 {
		t.Errorf("state = %+v, want zero", st)
	}
}

func TestJournal_CursorSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := j.Cursor("prune"); ok || err != nil {
		t.Fatalf("Cursor on empty journal = %v, %v; want missing", ok, err)
	}

	at := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	if err := j.SaveCursor("prune", at); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}
	if err := j.Append(statusLog(1, "a")); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	j, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	got, ok, err := j.Cursor("prune")
	if err != nil || !ok || !got.Equal(at) {
		t.Fatalf("Cursor = %v, %v, %v; want %v", got, ok, err, at)
	}
	// Cursors live outside the log key range.
	if last, _ := j.Last(); last != 1 {
		t.Errorf("Last() = %d, want 1", last)
	}
	var n int
	if err := j.Range(1, func(engine.Log) error { n++; return nil }); err != nil || n != 1 {
		t.Errorf("Range saw %d logs (err %v), want 1", n, err)
	}
}
