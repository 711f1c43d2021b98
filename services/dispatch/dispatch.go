// Package dispatchsvc runs the scheduled email dispatcher: a ticker-driven
// worker that periodically hands due emails to the schedmail service.
package dispatchsvc

import (
	"fmt"
	"time"

	"github.com/zuberi/fizikia/core"
	"github.com/zuberi/fizikia/core/schedmail"
)

type Worker struct {
	svc      schedmail.ServiceInterface
	logger   core.Logger
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

func NewWorker(svc schedmail.ServiceInterface, logger core.Logger, conf *core.Config) *Worker {
	return &Worker{
		svc:      svc,
		logger:   logger,
		interval: conf.Dispatch.Interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start runs the dispatch loop until Stop is called. It ticks immediately so
// emails that came due while the process was down go out right away.
func (w *Worker) Start() {
	defer close(w.stopped)

	w.logger.Info(fmt.Sprintf("email dispatcher started (interval %v)", w.interval))
	w.dispatch()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.dispatch()
		case <-w.done:
			return
		}
	}
}

// Stop ends the loop and waits for an in-flight dispatch to finish.
func (w *Worker) Stop() {
	close(w.done)
	<-w.stopped
	w.logger.Info("email dispatcher stopped")
}

func (w *Worker) dispatch() {
	sent, failed, err := w.svc.DispatchDue()
	if err != nil {
		w.logger.Error(fmt.Sprintf("dispatching due emails: %v", err), err)
	}
	if sent > 0 || failed > 0 {
		w.logger.Info(fmt.Sprintf("dispatched scheduled emails: %d sent, %d failed", sent, failed))
	}
}
