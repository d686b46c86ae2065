package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/palautus/internal/cloud"
	"github.com/yairfalse/palautus/internal/cloud/cloudtest"
	"github.com/yairfalse/palautus/pkg/types"
)

func pausedAfterLag(t *testing.T, lag int) cloud.InstanceClient {
	c := cloudtest.New()
	c.Lag = lag
	c.Put(types.KindInstances, cloud.RawRecord{"id": "vm-1", "status": "active"})
	client := c.Set().Instances
	require.NoError(t, client.Action(context.Background(), "vm-1", cloud.ActionPause))
	return client
}

func TestPollerReachesStatus(t *testing.T) {
	client := pausedAfterLag(t, 2)
	p := poller{attempts: 3}

	err := p.waitFor(context.Background(), types.KindInstances, "vm-1", client, StatusPaused)
	assert.NoError(t, err)
}

func TestPollerTimeout(t *testing.T) {
	client := pausedAfterLag(t, 2)
	p := poller{attempts: 2}

	err := p.waitFor(context.Background(), types.KindInstances, "vm-1", client, StatusPaused)

	var timeout *TransitionTimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, "vm-1", timeout.ResourceID)
	assert.Equal(t, StatusPaused, timeout.Expected)
	assert.Equal(t, StatusActive, timeout.Observed)
	assert.Equal(t, 2, timeout.Attempts)
	assert.Contains(t, err.Error(), "did not reach status paused")
}

func TestPollerGetError(t *testing.T) {
	c := cloudtest.New()
	p := poller{attempts: 3}

	err := p.waitFor(context.Background(), types.KindInstances, "vm-9", c.Set().Instances, StatusActive)
	require.Error(t, err)
	assert.True(t, cloud.IsNotFound(err))

	var timeout *TransitionTimeoutError
	assert.False(t, errors.As(err, &timeout))
}

func TestPollerCancelled(t *testing.T) {
	client := pausedAfterLag(t, 100)
	p := poller{interval: time.Hour, attempts: 5}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.waitFor(ctx, types.KindInstances, "vm-1", client, StatusPaused)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInstancePlanCoversEveryPair(t *testing.T) {
	states := []Status{StatusActive, StatusPaused, StatusSuspended, StatusShutoff}
	for _, from := range states {
		for _, to := range states {
			plan, ok := InstancePlan(from, to)
			if from == to {
				assert.False(t, ok)
				continue
			}
			require.True(t, ok, "%s -> %s", from, to)
			require.NotEmpty(t, plan)
			last := plan[len(plan)-1]
			assert.True(t, last.IsWait())
			assert.Equal(t, to, last.Wait, "%s -> %s", from, to)
		}
	}

	plan, _ := InstancePlan(StatusShutoff, StatusSuspended)
	assert.Equal(t, "start wait(active) suspend wait(suspended)", joinSteps(plan))

	_, ok := InstancePlan(Status("error"), StatusActive)
	assert.False(t, ok)
}

func TestVolumePlan(t *testing.T) {
	_, ok := volumePlan(StatusInUse, StatusAvailable)
	assert.True(t, ok)
	_, ok = volumePlan(StatusAvailable, StatusInUse)
	assert.True(t, ok)
	_, ok = volumePlan(Status("error"), StatusAvailable)
	assert.False(t, ok)
}

func joinSteps(steps []Step) string {
	out := ""
	for i, s := range steps {
		if i > 0 {
			out += " "
		}
		out += s.String()
	}
	return out
}
