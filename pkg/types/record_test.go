package types

import (
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Kind
		wantErr bool
	}{
		{name: "instances", input: "instances", want: KindInstances},
		{name: "mixed case with spaces", input: " Volumes ", want: KindVolumes},
		{name: "security groups", input: "security_groups", want: KindSecurityGroups},
		{name: "unknown", input: "networks", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecord_Attachments(t *testing.T) {
	record := Record{
		"id":     "vol-1",
		"status": "in-use",
		"attachments": []any{
			map[string]any{"server_id": "vm-a", "device": "/dev/vdb", "attachment_id": "att-1"},
		},
	}

	attachments := record.Attachments()
	if len(attachments) != 1 {
		t.Fatalf("Expected 1 attachment, got %d", len(attachments))
	}
	if attachments[0].ServerID != "vm-a" || attachments[0].Device != "/dev/vdb" {
		t.Errorf("Unexpected attachment: %+v", attachments[0])
	}

	if got := (Record{"id": "vol-2"}).Attachments(); got != nil {
		t.Errorf("Expected no attachments for record without field, got %v", got)
	}
	if got := (Record{"id": "vol-3", "attachments": "garbage"}).Attachments(); got != nil {
		t.Errorf("Expected no attachments for malformed field, got %v", got)
	}
}

func TestRecord_Clone(t *testing.T) {
	original := Record{
		"id":          "vol-1",
		"attachments": []any{map[string]any{"server_id": "vm-a"}},
	}

	clone := original.Clone()
	clone["id"] = "changed"
	clone["attachments"].([]any)[0].(map[string]any)["server_id"] = "vm-b"

	if original.ID() != "vol-1" {
		t.Errorf("Clone should not share top-level fields")
	}
	if original.Attachments()[0].ServerID != "vm-a" {
		t.Errorf("Clone should deep copy nested values")
	}
}

func TestNormalize(t *testing.T) {
	v, err := Normalize([]Attachment{{ServerID: "vm-a", Device: "/dev/vdb"}})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	list, ok := v.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("Expected []any with one element, got %T", v)
	}
	entry, ok := list[0].(map[string]any)
	if !ok {
		t.Fatalf("Expected map element, got %T", list[0])
	}
	if entry["server_id"] != "vm-a" {
		t.Errorf("Expected server_id vm-a, got %v", entry["server_id"])
	}
	if _, present := entry["attachment_id"]; present {
		t.Errorf("Empty attachment_id should be omitted")
	}
}
