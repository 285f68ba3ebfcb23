package server

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPeriodicTaskStopsFromInsideCallback(t *testing.T) {
	var calls atomic.Int32
	task := startPeriodic(time.Millisecond, func(self *periodicTask) {
		if calls.Add(1) == 3 {
			self.Stop()
		}
	})
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("task did not exit after stopping itself")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", got)
	}
	task.Stop()
}

func TestPeriodicTaskStopIsNonBlockingAndIdempotent(t *testing.T) {
	task := startPeriodic(time.Hour, func(*periodicTask) {
		t.Errorf("callback must not run")
	})
	task.Stop()
	task.Stop()
	if !task.stopped() {
		t.Fatalf("expected stopped")
	}
	<-task.Done()

	var nilTask *periodicTask
	nilTask.Stop()
	<-nilTask.Done()
}

func TestHubConfigNormalized(t *testing.T) {
	cfg := HubConfig{DefaultSpeed: -1, TickInterval: -time.Second}.Normalized()
	if cfg.TickInterval != DefaultTickInterval || cfg.GracePeriod != DefaultGracePeriod ||
		cfg.SweepInterval != DefaultSweepInterval || cfg.IdleThreshold != DefaultIdleThreshold ||
		cfg.DefaultSpeed != DefaultSpeed || cfg.WriteWait != DefaultWriteWait {
		t.Fatalf("unexpected normalized config %+v", cfg)
	}
	if cfg.Clock == nil || cfg.Logger == nil || cfg.Publisher == nil {
		t.Fatalf("collaborators must be defaulted")
	}
	custom := HubConfig{TickInterval: 50 * time.Millisecond, DefaultSpeed: 3}.Normalized()
	if custom.TickInterval != 50*time.Millisecond || custom.DefaultSpeed != 3 {
		t.Fatalf("explicit values must be kept, got %+v", custom)
	}
}
