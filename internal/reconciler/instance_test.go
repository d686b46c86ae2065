package reconciler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/palautus/internal/cloud"
	"github.com/yairfalse/palautus/internal/cloud/cloudtest"
	"github.com/yairfalse/palautus/pkg/types"
)

func instanceFixture(status string) (*cloudtest.Cloud, *Instance) {
	c := cloudtest.New()
	c.Put(types.KindInstances, cloud.RawRecord{"id": "vm-1", "name": "web", "status": status})
	return c, NewInstance(c.Set().Instances, testOptions())
}

func statusChange(id, before, after string) types.ChangeRecord {
	return changed(
		types.Record{"id": id, "name": "web", "status": before},
		types.Record{"id": id, "name": "web", "status": after},
	)
}

func TestInstanceStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current string
		desired string
		calls   []string
	}{
		{"shutoff to paused", "shutoff", "paused", []string{"start vm-1", "pause vm-1"}},
		{"paused to active", "paused", "active", []string{"unpause vm-1"}},
		{"active to shutoff", "active", "shutoff", []string{"stop vm-1"}},
		{"suspended to shutoff", "suspended", "shutoff", []string{"resume vm-1", "stop vm-1"}},
		{"shutoff to suspended", "shutoff", "suspended", []string{"start vm-1", "suspend vm-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, r := instanceFixture(tt.current)

			entry, err := r.Fix(context.Background(), statusChange("vm-1", tt.desired, tt.current))
			require.NoError(t, err)

			assert.Equal(t, types.Fix, entry.Classification)
			assert.Contains(t, entry.Explanation, "changed status "+tt.current+" -> "+tt.desired)
			assert.Equal(t, tt.calls, c.Calls())

			live, _ := c.Record(types.KindInstances, "vm-1")
			assert.Equal(t, tt.desired, live["status"])
		})
	}
}

func TestInstanceStatusWithLag(t *testing.T) {
	c, r := instanceFixture("shutoff")
	c.Lag = 1

	entry, err := r.Fix(context.Background(), statusChange("vm-1", "active", "shutoff"))
	require.NoError(t, err)
	assert.Equal(t, types.Fix, entry.Classification)
}

func TestInstanceStatusAlreadyRestored(t *testing.T) {
	c, r := instanceFixture("active")

	entry, err := r.Fix(context.Background(), statusChange("vm-1", "active", "paused"))
	require.NoError(t, err)
	assert.Equal(t, types.Fix, entry.Classification)
	assert.Contains(t, entry.Explanation, "already active")
	assert.Empty(t, c.Calls())
}

func TestInstanceStatusUnplanned(t *testing.T) {
	c, r := instanceFixture("error")

	entry, err := r.Fix(context.Background(), statusChange("vm-1", "active", "error"))
	require.NoError(t, err)
	assert.Equal(t, types.Conflict, entry.Classification)
	assert.Contains(t, entry.Explanation, "no transition plan for status error -> active")
	assert.Empty(t, c.Calls())
}

func TestInstanceStatusTimeout(t *testing.T) {
	c, r := instanceFixture("paused")
	c.Stick("vm-1")

	entry, err := r.Fix(context.Background(), statusChange("vm-1", "active", "paused"))
	require.NoError(t, err)

	assert.Equal(t, types.Conflict, entry.Classification)
	assert.Contains(t, entry.Explanation, "paused -> active")
	assert.Contains(t, entry.Explanation, "3 attempts")
	assert.Equal(t, []string{"unpause vm-1"}, c.Calls(), "the plan stops at the failed wait")
}

func TestInstanceStatusTimeoutStopsPlan(t *testing.T) {
	c, r := instanceFixture("shutoff")
	c.Stick("vm-1")

	entry, err := r.Fix(context.Background(), statusChange("vm-1", "paused", "shutoff"))
	require.NoError(t, err)
	assert.Equal(t, types.Conflict, entry.Classification)
	assert.Equal(t, []string{"start vm-1"}, c.Calls())
}

func TestInstanceActionError(t *testing.T) {
	c, r := instanceFixture("active")
	boom := errors.New("boom")
	c.FailOn("pause", "vm-1", boom)

	_, err := r.Fix(context.Background(), statusChange("vm-1", "paused", "active"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestInstanceStatusGetError(t *testing.T) {
	c, r := instanceFixture("active")
	c.Remove(types.KindInstances, "vm-1")

	_, err := r.Fix(context.Background(), statusChange("vm-1", "paused", "active"))
	require.Error(t, err)
	assert.True(t, cloud.IsNotFound(err))
}

func TestInstanceUnknownFieldIsConflict(t *testing.T) {
	c, r := instanceFixture("active")

	change := changed(
		types.Record{"id": "vm-1", "name": "web", "status": "active"},
		types.Record{"id": "vm-1", "name": "api", "status": "active"},
	)
	entry, err := r.Fix(context.Background(), change)
	require.NoError(t, err)
	assert.Equal(t, types.Conflict, entry.Classification)
	assert.Contains(t, entry.Explanation, "name changed web -> api")
	assert.Empty(t, c.Calls())
}

func TestInstanceMixedFieldsMerge(t *testing.T) {
	c, r := instanceFixture("paused")

	change := changed(
		types.Record{"id": "vm-1", "name": "web", "status": "active"},
		types.Record{"id": "vm-1", "name": "api", "status": "paused"},
	)
	entry, err := r.Fix(context.Background(), change)
	require.NoError(t, err)

	assert.Equal(t, types.Conflict, entry.Classification)
	assert.Contains(t, entry.Explanation, "name changed web -> api")
	assert.Contains(t, entry.Explanation, "changed status paused -> active")
	assert.Equal(t, []string{"unpause vm-1"}, c.Calls())
}

func TestInstanceStatusAbsentInBaseline(t *testing.T) {
	c, r := instanceFixture("active")

	change := changed(
		types.Record{"id": "vm-1", "name": "web"},
		types.Record{"id": "vm-1", "name": "web", "status": "active"},
	)
	entry, err := r.Fix(context.Background(), change)
	require.NoError(t, err)
	assert.Equal(t, types.Conflict, entry.Classification)
	assert.Empty(t, c.Calls())
}
