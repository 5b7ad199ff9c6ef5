// Package scheduler runs periodic rescans of a fixed bytecode source on a
// gocron interval, recording each result to scan history.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/aalsanie/shamash-sub001/internal/history"
	"github.com/aalsanie/shamash-sub001/internal/notify"
	"github.com/aalsanie/shamash-sub001/internal/pipeline"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
	"github.com/aalsanie/shamash-sub001/pkg/shamashlog"
)

// UnitSource supplies the bytecode units and config for one scheduled scan.
// Implementations re-read a directory/jar set from disk each tick, so a
// rescan always reflects the current state of the watched sources.
type UnitSource interface {
	Units() ([]factmodel.BytecodeUnit, error)
	ConfigYAML() ([]byte, error)
}

// Scheduler periodically runs the scan pipeline against a UnitSource.
type Scheduler struct {
	s      gocron.Scheduler
	source UnitSource
	store  *history.Store
	notify *notify.Publisher
}

// New builds a Scheduler. store and publisher may be nil to disable
// persistence or NATS notification respectively.
func New(source UnitSource, store *history.Store, publisher *notify.Publisher) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{s: s, source: source, store: store, notify: publisher}, nil
}

// RegisterRescan schedules a rescan every interval, starting on the next
// tick. It returns the gocron job so callers can inspect its next run time.
func (sch *Scheduler) RegisterRescan(interval time.Duration) (gocron.Job, error) {
	shamashlog.Infof("scheduling rescans every %s", interval)
	return sch.s.NewJob(gocron.DurationJob(interval), gocron.NewTask(sch.runOnce))
}

func (sch *Scheduler) runOnce() {
	start := time.Now()
	shamashlog.Infof("scheduled rescan started at %s", start.Format(time.RFC3339))

	units, err := sch.source.Units()
	if err != nil {
		shamashlog.Errorf("scheduled rescan: loading units: %v", err)
		return
	}
	cfgYAML, err := sch.source.ConfigYAML()
	if err != nil {
		shamashlog.Errorf("scheduled rescan: loading config: %v", err)
		return
	}

	result, err := pipeline.Run(context.Background(), units, cfgYAML, nil, start)
	if err != nil {
		shamashlog.Errorf("scheduled rescan failed: %v", err)
		return
	}

	finished := time.Now()
	shamashlog.Infof("scheduled rescan finished: %d findings, score=%d (%s), took %s",
		len(result.Findings), result.Score.Value, result.Score.Band, finished.Sub(start))

	var scanID int64
	if sch.store != nil {
		scanID, err = sch.store.RecordScan(start, finished, "", len(result.Index.Classes), len(result.Index.Edges), result.Findings, result.Score)
		if err != nil {
			shamashlog.Errorf("recording scheduled scan: %v", err)
		}
	}

	if sch.notify != nil {
		if err := sch.notify.PublishScanSummary(scanID, result); err != nil {
			shamashlog.Errorf("publishing scan summary: %v", err)
		}
	}
}

// Start begins running scheduled jobs.
func (sch *Scheduler) Start() {
	sch.s.Start()
}

// Shutdown stops the scheduler and waits for in-flight jobs to finish.
func (sch *Scheduler) Shutdown() error {
	return sch.s.Shutdown()
}
