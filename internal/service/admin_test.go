package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/engine"
	"github.com/efreitasn/matchcore/internal/health"
)

func TestAdmin_SetDailyLimit(t *testing.T) {
	env := newTestOrderEnv(t)
	ctx := context.Background()

	if err := env.admin.SetDailyLimit(ctx, "BTC-USDT", true); err != nil {
		t.Fatal(err)
	}
	op, ok := env.submitter.last().(engine.DailyLimitOperation)
	if !ok || op.ProductID != "BTC-USDT" || !op.Open || !op.At.Equal(fixedNow) {
		t.Fatalf("submitted %+v", env.submitter.last())
	}

	if err := env.admin.SetDailyLimit(ctx, "BTC-ETH", false); !errors.Is(err, domain.ErrProductSynthetic) {
		t.Errorf("synthetic product: %v", err)
	}
	if err := env.admin.SetDailyLimit(ctx, "NOPE", false); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("unknown product: %v", err)
	}
}

func TestAdmin_CancelAll(t *testing.T) {
	env := newTestOrderEnv(t)
	if err := env.admin.CancelAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	sig, ok := env.submitter.last().(engine.Signal)
	if !ok || sig.Type != engine.SignalCancelAllOrders {
		t.Fatalf("submitted %+v", env.submitter.last())
	}
}

func TestAdmin_Prune(t *testing.T) {
	env := newTestOrderEnv(t)
	ctx := context.Background()
	start := fixedNow.Add(-time.Hour)

	if err := env.admin.Prune(ctx, PruneRequest{Start: start, Users: []string{"mm-1"}}); err != nil {
		t.Fatal(err)
	}
	req, ok := env.submitter.last().(engine.PruneRequest)
	if !ok || !req.Start.Equal(start) || !req.End.Equal(fixedNow) || len(req.Users) != 1 {
		t.Fatalf("submitted %+v", env.submitter.last())
	}

	var ve *domain.ValidationError
	if err := env.admin.Prune(ctx, PruneRequest{Start: fixedNow, End: start}); !errors.As(err, &ve) {
		t.Errorf("inverted window: %v", err)
	}
	if err := env.admin.Prune(ctx, PruneRequest{Start: start, End: fixedNow.Add(time.Minute)}); !errors.As(err, &ve) {
		t.Errorf("future end: %v", err)
	}
}

func TestAdmin_PauseResume(t *testing.T) {
	env := newTestOrderEnv(t)

	env.admin.Pause("maintenance")
	st := env.admin.Status()
	if !st.Paused || st.Source != health.SourceAdmin || st.Reason != "maintenance" {
		t.Fatalf("status = %+v", st)
	}
	if !env.admin.Resume() {
		t.Fatal("Resume() = false")
	}
	if env.admin.Status().Paused {
		t.Fatal("still paused")
	}
}
