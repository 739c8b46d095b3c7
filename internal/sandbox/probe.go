package sandbox

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/testkube/simqueue/internal/app"
	"github.com/testkube/simqueue/internal/signals"
)

// Probe is a headless execution context: loading a target fetches its URL
// and reports load on a 2xx answer, error otherwise. Loading again or
// resetting cancels the in-flight fetch.
type Probe struct {
	httpClient *http.Client
	out        *signals.Channel
	log        *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewProbe(out *signals.Channel, timeout time.Duration, log *zap.Logger) *Probe {
	return &Probe{
		httpClient: &http.Client{Timeout: timeout},
		out:        out,
		log:        log,
	}
}

func (p *Probe) Load(ctx context.Context, req app.LoadRequest) error {
	httpReq, err := http.NewRequest(http.MethodGet, req.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.fetch(fetchCtx, httpReq.WithContext(fetchCtx), req)
	}()
	return nil
}

func (p *Probe) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	return nil
}

// Close cancels any fetch in flight and waits for it to finish.
func (p *Probe) Close() {
	p.Reset(context.Background())
	p.wg.Wait()
}

func (p *Probe) fetch(ctx context.Context, httpReq *http.Request, req app.LoadRequest) {
	sig := signals.Signal{Type: signals.TypeLoad, URL: req.URL, Generation: req.Generation}

	resp, err := p.httpClient.Do(httpReq)
	if err == nil {
		defer resp.Body.Close()
	}
	if ctx.Err() != nil {
		// replaced before it finished; nothing left to report to
		return
	}
	if err != nil {
		sig.Type = signals.TypeError
		sig.Message = err.Error()
	} else {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			sig.Type = signals.TypeError
			sig.Message = fmt.Sprintf("HTTP %s", resp.Status)
		}
	}

	if err := p.out.Send(sig); err != nil {
		p.log.Warn("probe signal dropped", zap.String("url", req.URL), zap.Error(err))
	}
}
