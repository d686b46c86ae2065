package snapshot

import (
	"fmt"
	"strings"

	"github.com/yairfalse/palautus/internal/cloud"
	"github.com/yairfalse/palautus/pkg/types"
)

// Projections lists the fields kept per kind. Everything else a client
// returns is ignored.
var Projections = map[types.Kind][]string{
	types.KindInstances:      {"id", "status", "name"},
	types.KindVolumes:        {"id", "status", "display_name", "attachments"},
	types.KindImages:         {"id", "disk_format", "name", "checksum"},
	types.KindTenants:        {"id", "name", "enabled", "description"},
	types.KindUsers:          {"id", "name", "enabled", "domain_id"},
	types.KindSecurityGroups: {"id", "name", "description", "tenant_id"},
}

// Project extracts the documented fields of one raw record.
// Fields missing from the raw record stay missing in the projection.
func Project(kind types.Kind, raw cloud.RawRecord) (types.Record, error) {
	fields, ok := Projections[kind]
	if !ok {
		return nil, fmt.Errorf("no projection for kind %q", kind)
	}

	record := make(types.Record, len(fields))
	for _, field := range fields {
		value, present := raw[field]
		if !present {
			continue
		}
		if field == "attachments" {
			value = projectAttachments(value)
		}
		normalized, err := types.Normalize(value)
		if err != nil {
			return nil, fmt.Errorf("field %s is not serializable: %w", field, err)
		}
		record[field] = normalized
	}

	if record.ID() == "" {
		return nil, fmt.Errorf("%s record has no id", kind)
	}
	if status, ok := record["status"].(string); ok {
		record["status"] = strings.ToLower(status)
	}
	return record, nil
}

// projectAttachments keeps only server_id, device and attachment_id
func projectAttachments(value any) any {
	list, ok := value.([]any)
	if !ok {
		if normalized, err := types.Normalize(value); err == nil {
			list, ok = normalized.([]any)
		}
	}
	if !ok {
		return value
	}

	projected := make([]any, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entry := map[string]any{}
		for _, key := range []string{"server_id", "device", "attachment_id"} {
			if v, ok := m[key]; ok && v != "" && v != nil {
				entry[key] = v
			}
		}
		projected = append(projected, entry)
	}
	return projected
}
