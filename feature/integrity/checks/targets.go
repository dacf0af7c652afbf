package checks

import (
	"context"
	"sync"

	"provisioner/core/protocol"
	"provisioner/core/provision"
	"provisioner/core/reconcile"
)

// TargetReport is the result of probing one target.
type TargetReport struct {
	Target    string `json:"target"`
	Reachable bool   `json:"reachable"`
	// Entries counts the direct children of the target base.
	Entries int    `json:"entries"`
	Class   string `json:"class,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CheckTargets pings every target with a one-level search of its base.
// Targets are pinged concurrently; reports keep the order of targets.
func CheckTargets(ctx context.Context, targets []*reconcile.Target) []TargetReport {
	reports := make([]TargetReport, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i] = ping(ctx, t)
		}()
	}
	wg.Wait()
	return reports
}

func ping(ctx context.Context, t *reconcile.Target) TargetReport {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	report := TargetReport{Target: t.ID()}
	ids, err := t.Adapter.Search(ctx, provision.SearchFilter{Base: t.Base, Scope: provision.ScopeOne})
	if err != nil {
		report.Class = protocol.Classify(err)
		report.Error = err.Error()
		return report
	}
	report.Reachable = true
	report.Entries = len(ids)
	return report
}
