package openstack

import (
	"context"
	"fmt"
	"strings"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack/blockstorage/v3/volumes"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/volumeattach"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/projects"
	"github.com/gophercloud/gophercloud/v2/openstack/identity/v3/users"
	"github.com/gophercloud/gophercloud/v2/openstack/image/v2/images"
	"github.com/gophercloud/gophercloud/v2/openstack/networking/v2/extensions/security/groups"

	"github.com/yairfalse/palautus/internal/cloud"
	"github.com/yairfalse/palautus/pkg/types"
)

// Instances exposes nova servers
type Instances struct {
	compute *gophercloud.ServiceClient
}

func serverRecord(s servers.Server) cloud.RawRecord {
	return cloud.RawRecord{
		"id":        s.ID,
		"name":      s.Name,
		"status":    strings.ToLower(s.Status),
		"tenant_id": s.TenantID,
		"image":     s.Image,
		"flavor":    s.Flavor,
	}
}

func (i *Instances) List(ctx context.Context) ([]cloud.RawRecord, error) {
	pages, err := servers.List(i.compute, servers.ListOpts{AllTenants: true}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	all, err := servers.ExtractServers(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract instances: %w", err)
	}
	out := make([]cloud.RawRecord, 0, len(all))
	for _, s := range all {
		out = append(out, serverRecord(s))
	}
	return out, nil
}

func (i *Instances) Get(ctx context.Context, id string) (cloud.RawRecord, error) {
	s, err := servers.Get(ctx, i.compute, id).Extract()
	if err != nil {
		return nil, translate(types.KindInstances, id, err)
	}
	return serverRecord(*s), nil
}

func (i *Instances) Delete(ctx context.Context, id string) error {
	return translate(types.KindInstances, id, servers.Delete(ctx, i.compute, id).ExtractErr())
}

func (i *Instances) Action(ctx context.Context, id string, action cloud.InstanceAction) error {
	var err error
	switch action {
	case cloud.ActionStart:
		err = servers.Start(ctx, i.compute, id).ExtractErr()
	case cloud.ActionStop:
		err = servers.Stop(ctx, i.compute, id).ExtractErr()
	case cloud.ActionPause:
		err = servers.Pause(ctx, i.compute, id).ExtractErr()
	case cloud.ActionUnpause:
		err = servers.Unpause(ctx, i.compute, id).ExtractErr()
	case cloud.ActionSuspend:
		err = servers.Suspend(ctx, i.compute, id).ExtractErr()
	case cloud.ActionResume:
		err = servers.Resume(ctx, i.compute, id).ExtractErr()
	default:
		return fmt.Errorf("unsupported instance action %q", action)
	}
	return translate(types.KindInstances, id, err)
}

// Volumes exposes cinder volumes; attach and detach go through nova
type Volumes struct {
	storage *gophercloud.ServiceClient
	compute *gophercloud.ServiceClient
}

func volumeRecord(v volumes.Volume) cloud.RawRecord {
	attachments := make([]any, 0, len(v.Attachments))
	for _, a := range v.Attachments {
		attachments = append(attachments, map[string]any{
			"server_id":     a.ServerID,
			"device":        a.Device,
			"attachment_id": a.AttachmentID,
		})
	}
	return cloud.RawRecord{
		"id":           v.ID,
		"status":       v.Status,
		"display_name": v.Name,
		"size":         v.Size,
		"attachments":  attachments,
	}
}

func (v *Volumes) List(ctx context.Context) ([]cloud.RawRecord, error) {
	pages, err := volumes.List(v.storage, volumes.ListOpts{AllTenants: true}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes: %w", err)
	}
	all, err := volumes.ExtractVolumes(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract volumes: %w", err)
	}
	out := make([]cloud.RawRecord, 0, len(all))
	for _, vol := range all {
		out = append(out, volumeRecord(vol))
	}
	return out, nil
}

func (v *Volumes) Get(ctx context.Context, id string) (cloud.RawRecord, error) {
	vol, err := volumes.Get(ctx, v.storage, id).Extract()
	if err != nil {
		return nil, translate(types.KindVolumes, id, err)
	}
	return volumeRecord(*vol), nil
}

func (v *Volumes) Delete(ctx context.Context, id string) error {
	return translate(types.KindVolumes, id, volumes.Delete(ctx, v.storage, id, volumes.DeleteOpts{}).ExtractErr())
}

func (v *Volumes) Attach(ctx context.Context, volumeID, instanceID, device string) error {
	_, err := volumeattach.Create(ctx, v.compute, instanceID, volumeattach.CreateOpts{
		VolumeID: volumeID,
		Device:   device,
	}).Extract()
	return translate(types.KindVolumes, volumeID, err)
}

func (v *Volumes) Detach(ctx context.Context, volumeID, instanceID string) error {
	return translate(types.KindVolumes, volumeID, volumeattach.Delete(ctx, v.compute, instanceID, volumeID).ExtractErr())
}

// Images exposes glance images
type Images struct {
	client *gophercloud.ServiceClient
}

func imageRecord(img images.Image) cloud.RawRecord {
	return cloud.RawRecord{
		"id":          img.ID,
		"name":        img.Name,
		"disk_format": img.DiskFormat,
		"checksum":    img.Checksum,
		"status":      string(img.Status),
	}
}

func (im *Images) List(ctx context.Context) ([]cloud.RawRecord, error) {
	pages, err := images.List(im.client, images.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	all, err := images.ExtractImages(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract images: %w", err)
	}
	out := make([]cloud.RawRecord, 0, len(all))
	for _, img := range all {
		out = append(out, imageRecord(img))
	}
	return out, nil
}

func (im *Images) Get(ctx context.Context, id string) (cloud.RawRecord, error) {
	img, err := images.Get(ctx, im.client, id).Extract()
	if err != nil {
		return nil, translate(types.KindImages, id, err)
	}
	return imageRecord(*img), nil
}

func (im *Images) Delete(ctx context.Context, id string) error {
	return translate(types.KindImages, id, images.Delete(ctx, im.client, id).ExtractErr())
}

// Tenants exposes keystone projects
type Tenants struct {
	client *gophercloud.ServiceClient
}

func projectRecord(p projects.Project) cloud.RawRecord {
	return cloud.RawRecord{
		"id":          p.ID,
		"name":        p.Name,
		"enabled":     p.Enabled,
		"description": p.Description,
		"domain_id":   p.DomainID,
	}
}

func (t *Tenants) List(ctx context.Context) ([]cloud.RawRecord, error) {
	pages, err := projects.List(t.client, projects.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	all, err := projects.ExtractProjects(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract tenants: %w", err)
	}
	out := make([]cloud.RawRecord, 0, len(all))
	for _, p := range all {
		out = append(out, projectRecord(p))
	}
	return out, nil
}

func (t *Tenants) Get(ctx context.Context, id string) (cloud.RawRecord, error) {
	p, err := projects.Get(ctx, t.client, id).Extract()
	if err != nil {
		return nil, translate(types.KindTenants, id, err)
	}
	return projectRecord(*p), nil
}

func (t *Tenants) Delete(ctx context.Context, id string) error {
	return translate(types.KindTenants, id, projects.Delete(ctx, t.client, id).ExtractErr())
}

// Users exposes keystone users
type Users struct {
	client *gophercloud.ServiceClient
}

func userRecord(u users.User) cloud.RawRecord {
	return cloud.RawRecord{
		"id":        u.ID,
		"name":      u.Name,
		"enabled":   u.Enabled,
		"domain_id": u.DomainID,
	}
}

func (u *Users) List(ctx context.Context) ([]cloud.RawRecord, error) {
	pages, err := users.List(u.client, users.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	all, err := users.ExtractUsers(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract users: %w", err)
	}
	out := make([]cloud.RawRecord, 0, len(all))
	for _, usr := range all {
		out = append(out, userRecord(usr))
	}
	return out, nil
}

func (u *Users) Get(ctx context.Context, id string) (cloud.RawRecord, error) {
	usr, err := users.Get(ctx, u.client, id).Extract()
	if err != nil {
		return nil, translate(types.KindUsers, id, err)
	}
	return userRecord(*usr), nil
}

func (u *Users) Delete(ctx context.Context, id string) error {
	return translate(types.KindUsers, id, users.Delete(ctx, u.client, id).ExtractErr())
}

// SecurityGroups exposes neutron security groups
type SecurityGroups struct {
	client *gophercloud.ServiceClient
}

func groupRecord(g groups.SecGroup) cloud.RawRecord {
	return cloud.RawRecord{
		"id":          g.ID,
		"name":        g.Name,
		"description": g.Description,
		"tenant_id":   g.TenantID,
	}
}

func (s *SecurityGroups) List(ctx context.Context) ([]cloud.RawRecord, error) {
	pages, err := groups.List(s.client, groups.ListOpts{}).AllPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list security groups: %w", err)
	}
	all, err := groups.ExtractGroups(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract security groups: %w", err)
	}
	out := make([]cloud.RawRecord, 0, len(all))
	for _, g := range all {
		out = append(out, groupRecord(g))
	}
	return out, nil
}

func (s *SecurityGroups) Get(ctx context.Context, id string) (cloud.RawRecord, error) {
	g, err := groups.Get(ctx, s.client, id).Extract()
	if err != nil {
		return nil, translate(types.KindSecurityGroups, id, err)
	}
	return groupRecord(*g), nil
}

func (s *SecurityGroups) Delete(ctx context.Context, id string) error {
	return translate(types.KindSecurityGroups, id, groups.Delete(ctx, s.client, id).ExtractErr())
}
