// Package cloudtest provides an in-memory cloud implementing the capability
// interfaces, with scripted status lag and failure injection.
package cloudtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/yairfalse/palautus/internal/cloud"
	"github.com/yairfalse/palautus/pkg/types"
)

// ActionResults maps an instance action to the status it leads to
var ActionResults = map[cloud.InstanceAction]string{
	cloud.ActionStart:   "active",
	cloud.ActionStop:    "shutoff",
	cloud.ActionPause:   "paused",
	cloud.ActionUnpause: "active",
	cloud.ActionSuspend: "suspended",
	cloud.ActionResume:  "active",
}

type pending struct {
	status    string
	remaining int
}

// Cloud is a fake cloud. The zero value is not usable; call New.
type Cloud struct {
	mu      sync.Mutex
	records map[types.Kind]map[string]cloud.RawRecord
	pending map[string]*pending
	calls   []string
	errs    map[string]error
	stuck   map[string]bool

	// Lag is the number of Get calls that still report the old status after an action
	Lag int
}

// New creates an empty fake cloud
func New() *Cloud {
	return &Cloud{
		records: make(map[types.Kind]map[string]cloud.RawRecord),
		pending: make(map[string]*pending),
		errs:    make(map[string]error),
		stuck:   make(map[string]bool),
	}
}

// Put stores a raw record
func (c *Cloud) Put(kind types.Kind, record cloud.RawRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.records[kind] == nil {
		c.records[kind] = make(map[string]cloud.RawRecord)
	}
	id, _ := record["id"].(string)
	c.records[kind][id] = types.Record(record).Clone()
}

// Remove drops a record without recording a call
func (c *Cloud) Remove(kind types.Kind, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records[kind], id)
}

// Record returns a copy of a stored record
func (c *Cloud) Record(kind types.Kind, id string) (cloud.RawRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[kind][id]
	if !ok {
		return nil, false
	}
	return types.Record(r).Clone(), true
}

// FailOn makes the call "<verb> <id>" return err, e.g. FailOn("delete", "vm-1", err)
func (c *Cloud) FailOn(verb, id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[verb+" "+id] = err
}

// Stick keeps the status of id from ever reaching a pending target
func (c *Cloud) Stick(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stuck[id] = true
}

// Calls returns the mutating calls made so far, formatted "<verb> <args...>"
func (c *Cloud) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// Set returns a cloud.Set backed by this fake
func (c *Cloud) Set() cloud.Set {
	return cloud.Set{
		Instances:      &instances{kindClient{c: c, kind: types.KindInstances}},
		Volumes:        &volumes{kindClient{c: c, kind: types.KindVolumes}},
		Images:         &kindClient{c: c, kind: types.KindImages},
		Tenants:        &kindClient{c: c, kind: types.KindTenants},
		Users:          &kindClient{c: c, kind: types.KindUsers},
		SecurityGroups: &kindClient{c: c, kind: types.KindSecurityGroups},
	}
}

func (c *Cloud) injected(verb, id string) error {
	return c.errs[verb+" "+id]
}

func (c *Cloud) setPending(id, status string) {
	c.pending[id] = &pending{status: status, remaining: c.Lag}
}

// settle applies a pending status once its lag has elapsed. Caller holds mu.
func (c *Cloud) settle(kind types.Kind, id string) {
	p, ok := c.pending[id]
	if !ok || c.stuck[id] {
		return
	}
	if p.remaining > 0 {
		p.remaining--
		return
	}
	if r, ok := c.records[kind][id]; ok {
		r["status"] = p.status
	}
	delete(c.pending, id)
}

type kindClient struct {
	c    *Cloud
	kind types.Kind
}

func (k *kindClient) List(ctx context.Context) ([]cloud.RawRecord, error) {
	k.c.mu.Lock()
	defer k.c.mu.Unlock()
	if err := k.c.injected("list", string(k.kind)); err != nil {
		return nil, err
	}
	out := make([]cloud.RawRecord, 0, len(k.c.records[k.kind]))
	for _, r := range k.c.records[k.kind] {
		out = append(out, types.Record(r).Clone())
	}
	return out, nil
}

func (k *kindClient) Get(ctx context.Context, id string) (cloud.RawRecord, error) {
	k.c.mu.Lock()
	defer k.c.mu.Unlock()
	if err := k.c.injected("get", id); err != nil {
		return nil, err
	}
	k.c.settle(k.kind, id)
	r, ok := k.c.records[k.kind][id]
	if !ok {
		return nil, cloud.NotFound(k.kind, id)
	}
	return types.Record(r).Clone(), nil
}

func (k *kindClient) Delete(ctx context.Context, id string) error {
	k.c.mu.Lock()
	defer k.c.mu.Unlock()
	k.c.calls = append(k.c.calls, "delete "+id)
	if err := k.c.injected("delete", id); err != nil {
		return err
	}
	if _, ok := k.c.records[k.kind][id]; !ok {
		return cloud.NotFound(k.kind, id)
	}
	delete(k.c.records[k.kind], id)
	return nil
}

type instances struct {
	kindClient
}

func (i *instances) Action(ctx context.Context, id string, action cloud.InstanceAction) error {
	c := i.c
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, string(action)+" "+id)
	if err := c.injected(string(action), id); err != nil {
		return err
	}
	if _, ok := c.records[types.KindInstances][id]; !ok {
		return cloud.NotFound(types.KindInstances, id)
	}
	status, ok := ActionResults[action]
	if !ok {
		return fmt.Errorf("unsupported action %q", action)
	}
	c.setPending(id, status)
	return nil
}

type volumes struct {
	kindClient
}

func (v *volumes) Attach(ctx context.Context, volumeID, instanceID, device string) error {
	c := v.c
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fmt.Sprintf("attach %s %s %s", volumeID, instanceID, device))
	if err := c.injected("attach", volumeID); err != nil {
		return err
	}
	r, ok := c.records[types.KindVolumes][volumeID]
	if !ok {
		return cloud.NotFound(types.KindVolumes, volumeID)
	}
	attachments, _ := r["attachments"].([]any)
	r["attachments"] = append(attachments, map[string]any{
		"server_id":     instanceID,
		"device":        device,
		"attachment_id": "att-" + volumeID + "-" + instanceID,
	})
	c.setPending(volumeID, "in-use")
	return nil
}

func (v *volumes) Detach(ctx context.Context, volumeID, instanceID string) error {
	c := v.c
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fmt.Sprintf("detach %s %s", volumeID, instanceID))
	if err := c.injected("detach", volumeID); err != nil {
		return err
	}
	r, ok := c.records[types.KindVolumes][volumeID]
	if !ok {
		return cloud.NotFound(types.KindVolumes, volumeID)
	}
	attachments, _ := r["attachments"].([]any)
	kept := make([]any, 0, len(attachments))
	for _, a := range attachments {
		if m, ok := a.(map[string]any); ok && m["server_id"] == instanceID {
			continue
		}
		kept = append(kept, a)
	}
	r["attachments"] = kept
	if len(kept) == 0 {
		c.setPending(volumeID, "available")
	}
	return nil
}
