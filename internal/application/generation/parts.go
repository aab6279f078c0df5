package generation

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/MfFischer/makersai-studio/pkg/logger"
)

// buildParts 为方案中的每个部件执行阶段 A 与阶段 B
//
// 返回值始终是方案的一个连续前缀：第一个失败部件之后的部件不会再启动，
// 并发度大于 1 时已在途的后续部件会跑完但结果被丢弃，也不会归档。
func (o *Orchestrator) buildParts(ctx context.Context, tr *tracker, req DesignRequest, plan []ConstructionPart) ([]GenerationResult, error) {
	n := len(plan)
	done := make([]*GenerationResult, n)
	reqs := make([]DesignRequest, n)
	errs := make([]error, n)

	var failedAt atomic.Int64
	failedAt.Store(int64(n))
	markFailed := func(i int) {
		for {
			cur := failedAt.Load()
			if int64(i) >= cur || failedAt.CompareAndSwap(cur, int64(i)) {
				return
			}
		}
	}

	// 按顺序通知并归档已完成的连续前缀，失败点之后的结果不会越过空位
	var mu sync.Mutex
	next := 0
	publish := func(i int, partReq DesignRequest, res *GenerationResult) {
		mu.Lock()
		defer mu.Unlock()
		done[i] = res
		reqs[i] = partReq
		for next < n && done[next] != nil {
			tr.result(next, done[next])
			o.recordDesign(ctx, reqs[next], done[next])
			next++
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.PartConcurrency)
	for i, part := range plan {
		if int64(i) > failedAt.Load() {
			break
		}
		g.Go(func() error {
			if int64(i) > failedAt.Load() {
				return nil
			}
			partReq := req
			partReq.Prompt = part.SubPrompt
			partReq.Palette = []string{part.AssignedColor}

			spec := SynthesizeSpec(part.SubPrompt, req.Dimensions, partReq.Palette)
			res, err := o.synthesizeAndRender(ctx, spec, tr, i, part.PartName)
			if err != nil {
				errs[i] = err
				markFailed(i)
				return nil
			}
			res.PartName = part.PartName
			res.Color = part.AssignedColor
			publish(i, partReq, res)
			return nil
		})
	}
	_ = g.Wait()

	cut := int(failedAt.Load())
	out := make([]GenerationResult, 0, cut)
	for i := 0; i < cut; i++ {
		out = append(out, *done[i])
	}
	if cut < n {
		logger.Warn(ctx, "construction aborted", "failed_part", cut, "completed", len(out), "total", n)
		return out, errs[cut]
	}
	return out, nil
}
