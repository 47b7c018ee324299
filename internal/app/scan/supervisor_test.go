package scan_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scanapp "github.com/kaliumosint/api/internal/app/scan"
	"github.com/kaliumosint/api/internal/infra/providers"
	"github.com/kaliumosint/api/pkg/domain/intel"
	"github.com/kaliumosint/api/pkg/domain/scan"
	"github.com/kaliumosint/api/pkg/domain/shared"
	"github.com/kaliumosint/api/pkg/logger"
)

type result struct {
	id      shared.ID
	outcome scan.Outcome
	err     error
}

// blockingHost blocks fetches for slow.example until released or canceled.
func blockingHost(entered chan<- struct{}) *fakeAdapter {
	return &fakeAdapter{
		name:       "shodan",
		configured: true,
		capability: intel.CapabilityHostPortExposure,
		fetch: func(ctx context.Context, target intel.Target) (json.RawMessage, error) {
			if target.Host == "slow.example" {
				entered <- struct{}{}
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return hostSearchData(443), nil
		},
	}
}

func newSupervisorService(adapter intel.Adapter) *scanapp.Service {
	return scanapp.NewService(
		intel.NewRegistry(adapter),
		providers.NewSynthetic(providers.WithSeed(3)),
		scanapp.Config{AdapterTimeout: 10 * time.Second},
		logger.NewNop(),
	)
}

func TestSupervisor_NewRunSupersedesPrevious(t *testing.T) {
	entered := make(chan struct{}, 1)
	sup := scanapp.NewSupervisor(newSupervisorService(blockingHost(entered)), time.Minute, logger.NewNop())
	sink := scanapp.NewMemorySink()
	done := make(chan result, 2)
	onDone := func(id shared.ID, o scan.Outcome, err error) { done <- result{id, o, err} }

	first, err := sup.Start("session-1", scan.NewRequest(scan.TypeQuick, "slow.example", nil), sink, onDone)
	require.NoError(t, err)
	<-entered

	second, err := sup.Start("session-1", scan.NewRequest(scan.TypeQuick, "example.com", nil), sink, onDone)
	require.NoError(t, err)

	results := map[shared.ID]result{}
	for range 2 {
		select {
		case r := <-done:
			results[r.id] = r
		case <-time.After(5 * time.Second):
			t.Fatal("runs did not finish")
		}
	}

	assert.ErrorIs(t, results[first.RunID].err, scan.ErrRunCanceled)
	require.NoError(t, results[second.RunID].err)

	events := sink.Events()
	seenSecond := false
	for _, ev := range events {
		if ev.RunID == second.RunID.String() {
			seenSecond = true
			continue
		}
		assert.False(t, seenSecond, "event of superseded run after newer run started")
		assert.Equal(t, first.RunID.String(), ev.RunID)
	}
	assert.True(t, seenSecond)
	assert.Equal(t, 100, events[len(events)-1].ProgressPercent)
	assert.Zero(t, sup.Active())
}

func TestSupervisor_InvalidRequestKeepsActiveRun(t *testing.T) {
	entered := make(chan struct{}, 1)
	sup := scanapp.NewSupervisor(newSupervisorService(blockingHost(entered)), time.Minute, logger.NewNop())
	sink := scanapp.NewMemorySink()
	done := make(chan error, 1)

	_, err := sup.Start("s", scan.NewRequest(scan.TypeQuick, "slow.example", nil), sink, func(_ shared.ID, _ scan.Outcome, err error) {
		done <- err
	})
	require.NoError(t, err)
	<-entered

	for _, target := range []string{"", "\u200B", " \u200D\x00 "} {
		_, err = sup.Start("s", scan.NewRequest(scan.TypeQuick, target, nil), sink, nil)
		assert.True(t, scan.IsInvalidRequest(err), "%q", target)

		_, err = sup.Run(context.Background(), "s", scan.NewRequest(scan.TypeQuick, target, nil), sink)
		assert.True(t, scan.IsInvalidRequest(err), "%q", target)
	}
	assert.Equal(t, 1, sup.Active())

	assert.True(t, sup.Cancel("s"))
	select {
	case err := <-done:
		assert.ErrorIs(t, err, scan.ErrRunCanceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run was not canceled")
	}
}

func TestSupervisor_RunSync(t *testing.T) {
	sup := scanapp.NewSupervisor(newService(hostAdapter(22, 443)), 0, logger.NewNop())
	sink := scanapp.NewMemorySink()

	outcome, err := sup.Run(context.Background(), "cli", scan.NewRequest(scan.TypeQuick, "example.com", nil), sink)
	require.NoError(t, err)
	assert.Equal(t, scan.OutcomeOK, outcome.PerSource[intel.CapabilityHostPortExposure])
	assertProgress(t, sink.Events(), 8)
	assert.Zero(t, sup.Active())
}

func TestSupervisor_Shutdown(t *testing.T) {
	entered := make(chan struct{}, 1)
	sup := scanapp.NewSupervisor(newSupervisorService(blockingHost(entered)), time.Minute, logger.NewNop())
	done := make(chan error, 1)

	_, err := sup.Start("s", scan.NewRequest(scan.TypeQuick, "slow.example", nil), scanapp.NewMemorySink(), func(_ shared.ID, _ scan.Outcome, err error) {
		done <- err
	})
	require.NoError(t, err)
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sup.Shutdown(ctx))
	assert.ErrorIs(t, <-done, scan.ErrRunCanceled)

	_, err = sup.Start("s", scan.NewRequest(scan.TypeQuick, "example.com", nil), scanapp.NewMemorySink(), nil)
	assert.ErrorIs(t, err, scan.ErrRunCanceled)
}
