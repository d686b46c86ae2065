package reconciler

import (
	"strings"

	"github.com/yairfalse/palautus/internal/cloud"
)

// Status is a lowercase resource status as reported by the cloud
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusSuspended Status = "suspended"
	StatusShutoff   Status = "shutoff"

	StatusInUse     Status = "in-use"
	StatusAvailable Status = "available"
)

// ParseStatus normalizes a status value from a record
func ParseStatus(v any) Status {
	s, _ := v.(string)
	return Status(strings.ToLower(strings.TrimSpace(s)))
}

type transition struct {
	from Status
	to   Status
}

// Step is one element of a transition plan: either an action or a wait.
type Step struct {
	Action cloud.InstanceAction
	Wait   Status
}

// IsWait reports whether the step polls for a status
func (s Step) IsWait() bool {
	return s.Wait != ""
}

func (s Step) String() string {
	if s.IsWait() {
		return "wait(" + string(s.Wait) + ")"
	}
	return string(s.Action)
}

func do(action cloud.InstanceAction) Step { return Step{Action: action} }
func waitFor(status Status) Step         { return Step{Wait: status} }

// instanceTransitions covers every ordered pair of the four power states.
// Paths through a non-active state go via active first.
var instanceTransitions = map[transition][]Step{
	{StatusActive, StatusPaused}:    {do(cloud.ActionPause), waitFor(StatusPaused)},
	{StatusActive, StatusSuspended}: {do(cloud.ActionSuspend), waitFor(StatusSuspended)},
	{StatusActive, StatusShutoff}:   {do(cloud.ActionStop), waitFor(StatusShutoff)},

	{StatusPaused, StatusActive}:    {do(cloud.ActionUnpause), waitFor(StatusActive)},
	{StatusPaused, StatusSuspended}: {do(cloud.ActionUnpause), waitFor(StatusActive), do(cloud.ActionSuspend), waitFor(StatusSuspended)},
	{StatusPaused, StatusShutoff}:   {do(cloud.ActionUnpause), waitFor(StatusActive), do(cloud.ActionStop), waitFor(StatusShutoff)},

	{StatusSuspended, StatusActive}:  {do(cloud.ActionResume), waitFor(StatusActive)},
	{StatusSuspended, StatusPaused}:  {do(cloud.ActionResume), waitFor(StatusActive), do(cloud.ActionPause), waitFor(StatusPaused)},
	{StatusSuspended, StatusShutoff}: {do(cloud.ActionResume), waitFor(StatusActive), do(cloud.ActionStop), waitFor(StatusShutoff)},

	{StatusShutoff, StatusActive}:    {do(cloud.ActionStart), waitFor(StatusActive)},
	{StatusShutoff, StatusPaused}:    {do(cloud.ActionStart), waitFor(StatusActive), do(cloud.ActionPause), waitFor(StatusPaused)},
	{StatusShutoff, StatusSuspended}: {do(cloud.ActionStart), waitFor(StatusActive), do(cloud.ActionSuspend), waitFor(StatusSuspended)},
}

// InstancePlan returns the steps that move an instance from current to
// desired. ok is false when no path is known.
func InstancePlan(current, desired Status) ([]Step, bool) {
	plan, ok := instanceTransitions[transition{current, desired}]
	if !ok {
		return nil, false
	}
	return append([]Step(nil), plan...), true
}

type volumeOp int

const (
	opDetachAll volumeOp = iota + 1
	opAttachBaseline
	opWait
)

type volumeStep struct {
	op   volumeOp
	wait Status
}

// volumeTransitions only knows in-use <-> available. Any other pair is a conflict.
var volumeTransitions = map[transition][]volumeStep{
	{StatusInUse, StatusAvailable}: {{op: opDetachAll}, {op: opWait, wait: StatusAvailable}},
	{StatusAvailable, StatusInUse}: {{op: opAttachBaseline}, {op: opWait, wait: StatusInUse}},
}

func volumePlan(current, desired Status) ([]volumeStep, bool) {
	plan, ok := volumeTransitions[transition{current, desired}]
	return plan, ok
}
