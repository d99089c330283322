package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
)

type fakeLocker struct {
	held     map[string]bool
	acquired []string
}

func (f *fakeLocker) For(job string) Lock { return &fakeLock{locker: f, job: job} }

type fakeLock struct {
	locker *fakeLocker
	job    string
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.locker.held[f.job] {
		return false, nil
	}
	f.locker.held[f.job] = true
	f.locker.acquired = append(f.locker.acquired, f.job)
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	delete(f.locker.held, f.job)
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestCronService(t *testing.T, locker Locker, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: registry, Locker: locker})
	require.NoError(t, err)
	return svc
}

func TestRunOnceRunsEveryJobAndJoinsFailures(t *testing.T) {
	retention := &testJob{name: "outbox-retention"}
	payouts := &testJob{name: "payout-batch", err: errors.New("transfer provider down")}
	cleanup := &testJob{name: "notification-cleanup"}
	locker := &fakeLocker{held: map[string]bool{}}
	svc := newTestCronService(t, locker, retention, payouts, cleanup)

	err := svc.RunOnce(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payout-batch: transfer provider down")

	assert.Equal(t, 1, retention.runs)
	assert.Equal(t, 1, payouts.runs)
	assert.Equal(t, 1, cleanup.runs)
	assert.Equal(t, []string{"outbox-retention", "payout-batch", "notification-cleanup"}, locker.acquired)
	assert.Empty(t, locker.held, "every lock is released")
}

func TestRunOnceSkipsJobHeldElsewhere(t *testing.T) {
	payouts := &testJob{name: "payout-batch"}
	retention := &testJob{name: "outbox-retention"}
	locker := &fakeLocker{held: map[string]bool{"payout-batch": true}}
	svc := newTestCronService(t, locker, payouts, retention)

	require.NoError(t, svc.RunOnce(t.Context()))
	assert.Zero(t, payouts.runs)
	assert.Equal(t, 1, retention.runs)
	assert.True(t, locker.held["payout-batch"], "a lock held by another worker is not released")
}

func TestRunOnceRecordsJobMetrics(t *testing.T) {
	locker := &fakeLocker{held: map[string]bool{}}
	svc := newTestCronService(t, locker, &testJob{name: "payout-batch"}, &testJob{name: "outbox-retention", err: errors.New("boom")})

	reg := prometheus.NewRegistry()
	svc.metrics = metrics.NewCronJobMetrics(reg)
	require.Error(t, svc.RunOnce(t.Context()))

	success, err := testutil.GatherAndCount(reg, "fulfillment_cron_job_success_total")
	require.NoError(t, err)
	assert.Equal(t, 1, success)
	failure, err := testutil.GatherAndCount(reg, "fulfillment_cron_job_failure_total")
	require.NoError(t, err)
	assert.Equal(t, 1, failure)
}

func TestRunOnceStopsOnCanceledContext(t *testing.T) {
	job := &testJob{name: "payout-batch"}
	svc := newTestCronService(t, &fakeLocker{held: map[string]bool{}}, job)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := svc.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, job.runs)
}

func TestNewServiceRequiresLocker(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.Nop()})
	require.Error(t, err)
}
