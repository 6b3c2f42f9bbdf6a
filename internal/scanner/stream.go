package scanner

import (
	"context"
	"sync"
	"time"
)

// ChannelBufferSize is the buffer size of the Stream channel
const ChannelBufferSize = 10

// Stream starts one goroutine per category and delivers each result as it
// completes. The channel is closed once every category has finished.
// Results arrive in completion order; use Aggregate to restore catalog order.
func (e *Engine) Stream(ctx context.Context) <-chan CategoryResult {
	out := make(chan CategoryResult, ChannelBufferSize)

	var wg sync.WaitGroup
	for i := range e.catalog.Categories {
		cat := e.catalog.Categories[i]
		wg.Add(1)
		go func(index int) {
			defer wg.Done()

			start := time.Now()
			items, err := e.scanCategory(ctx, &cat)
			res := CategoryResult{
				Index: index,
				Name:  cat.Name,
				Label: cat.DisplayLabel(),
				Items: items,
				Err:   err,
			}
			res.recompute()

			if err != nil {
				e.logger.Debug("scan of %s stopped: %v", cat.Name, err)
			} else {
				e.logger.Debug("scanned %s: %d items in %v", cat.Name, len(items), time.Since(start))
			}
			select {
			case out <- res:
			case <-ctx.Done():
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
