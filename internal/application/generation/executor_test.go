package generation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestExecutor(p Provider, c CacheStore) *StageExecutor {
	return NewStageExecutor(p, c, ExecutorConfig{TTL: time.Hour, Timeout: 5 * time.Second})
}

func TestExecuteServesRepeatFromCache(t *testing.T) {
	provider := newFakeProvider()
	cache := newMapCache()
	exec := newTestExecutor(provider, cache)
	spec := SynthesizeSpec("a small gear", &Dimensions{Width: 40, Height: 40}, []string{"red"})

	first, err := exec.Execute(context.Background(), spec)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	second, err := exec.Execute(context.Background(), SynthesizeSpec("a small gear", &Dimensions{Width: 40, Height: 40}, []string{"red"}))
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("cached result differs:\n%s\n%s", first, second)
	}
	if provider.count() != 1 {
		t.Errorf("upstream calls = %d, want 1", provider.count())
	}
}

func TestExecuteDoesNotCacheFailures(t *testing.T) {
	provider := newFakeProvider()
	provider.failOn["a small gear"] = true
	cache := newMapCache()
	exec := newTestExecutor(provider, cache)

	for i := 0; i < 2; i++ {
		_, err := exec.Execute(context.Background(), SynthesizeSpec("a small gear", nil, nil))
		var se *StageError
		if !errors.As(err, &se) {
			t.Fatalf("attempt %d: err = %v, want *StageError", i, err)
		}
		if se.Stage != StageSynthesize || !errors.Is(err, errUpstream) {
			t.Errorf("attempt %d: unexpected error %v", i, err)
		}
	}
	if provider.count() != 2 {
		t.Errorf("upstream calls = %d, want 2 (failures must not be cached)", provider.count())
	}
	if cache.sets != 0 {
		t.Errorf("cache sets = %d, want 0", cache.sets)
	}
}

func TestExecuteRejectsMissingRequiredField(t *testing.T) {
	provider := newFakeProvider()
	provider.override[StageSynthesize] = `{"scadCode":"cube(1);","svgCode":""}`
	cache := newMapCache()
	exec := newTestExecutor(provider, cache)

	_, err := exec.Execute(context.Background(), SynthesizeSpec("a small gear", nil, nil))
	if !errors.Is(err, ErrContractViolation) {
		t.Fatalf("err = %v, want ErrContractViolation", err)
	}
	if cache.sets != 0 {
		t.Error("contract violations must not be cached")
	}
}

func TestExecuteRejectsNullField(t *testing.T) {
	provider := newFakeProvider()
	provider.override[StageRender] = `{"imageBase64":null,"mimeType":"image/png"}`
	exec := newTestExecutor(provider, newMapCache())

	if _, err := exec.Execute(context.Background(), RenderSpec("a gear")); !errors.Is(err, ErrContractViolation) {
		t.Fatalf("err = %v, want ErrContractViolation", err)
	}
}

func TestExecuteEmptyPlanIsContractViolation(t *testing.T) {
	provider := newFakeProvider()
	provider.override[StageDecompose] = `{"parts":[]}`
	exec := newTestExecutor(provider, newMapCache())

	_, err := exec.Execute(context.Background(), DecomposeSpec("a castle", nil))
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageDecompose {
		t.Fatalf("err = %v, want decompose StageError", err)
	}
}

func TestExecuteExpiredDeadlineFailsWithoutUpstreamCall(t *testing.T) {
	provider := newFakeProvider()
	exec := newTestExecutor(provider, newMapCache())

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := exec.Execute(ctx, SynthesizeSpec("a small gear", nil, nil))
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("err = %v, want ErrBudgetExceeded", err)
	}
	if provider.count() != 0 {
		t.Errorf("upstream calls = %d, want 0", provider.count())
	}
}

func TestExecuteSharedCallIgnoresLeaderDeadline(t *testing.T) {
	provider := newFakeProvider()
	release := make(chan struct{})
	provider.block["a small gear"] = release
	exec := newTestExecutor(provider, newMapCache())
	spec := SynthesizeSpec("a small gear", nil, nil)

	leaderCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	leaderDone := make(chan error, 1)
	go func() {
		_, err := exec.Execute(leaderCtx, spec)
		leaderDone <- err
	}()
	for provider.count() == 0 {
		time.Sleep(time.Millisecond)
	}

	followerDone := make(chan error, 1)
	go func() {
		_, err := exec.Execute(context.Background(), SynthesizeSpec("a small gear", nil, nil))
		followerDone <- err
	}()

	// 发起方的截止时间过去后上游才返回
	<-leaderCtx.Done()
	time.Sleep(50 * time.Millisecond)
	close(release)

	if err := <-followerDone; err != nil {
		t.Fatalf("follower err = %v, want success", err)
	}
	if err := <-leaderDone; err != nil {
		t.Errorf("leader err = %v, want the in-flight call to finish", err)
	}
	if provider.count() != 1 {
		t.Errorf("upstream calls = %d, want 1", provider.count())
	}
}

func TestExecuteReturnsIndependentCopies(t *testing.T) {
	exec := newTestExecutor(newFakeProvider(), newMapCache())
	spec := RenderSpec("a gear")

	first, err := exec.Execute(context.Background(), spec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	first[0] = 'X'
	second, err := exec.Execute(context.Background(), spec)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if second[0] == 'X' {
		t.Error("mutating a returned result changed the cached value")
	}
}
