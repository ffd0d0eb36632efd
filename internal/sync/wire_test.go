package sync

import (
	"encoding/json"
	"testing"

	"github.com/quadrant-tasks/quadrant/internal/schema"
)

func TestEncodeTaskFlattensFields(t *testing.T) {
	task := &schema.Task{
		ID:         "t1",
		Color:      "#FF6B6B",
		Position:   schema.Position{X: 120, Y: 40},
		Completed:  true,
		Deleted:    false,
		CreatedAt:  "2026-09-01T10:00:00Z",
		UpdatedAt:  "2026-09-01T11:00:00Z",
		SyncStatus: schema.SyncModified,
		Fields: map[string]string{
			"text":     "buy milk",
			"priority": "high",
		},
	}

	payload := EncodeTask(task)

	if payload["id"] != "t1" {
		t.Errorf("unexpected id %v", payload["id"])
	}
	if payload["text"] != "buy milk" || payload["priority"] != "high" {
		t.Errorf("user fields not at top level: %v", payload)
	}
	// sync_status is local bookkeeping and never goes on the wire.
	if _, present := payload["sync_status"]; present {
		t.Error("sync_status leaked into wire payload")
	}
}

func TestEncodeTaskFieldCannotShadowFixedKey(t *testing.T) {
	task := &schema.Task{
		ID:        "t1",
		UpdatedAt: "2026-09-01T11:00:00Z",
		Fields: map[string]string{
			"updated_at": "1999-01-01T00:00:00Z",
			"text":       "x",
		},
	}

	payload := EncodeTask(task)
	if payload["updated_at"] != "2026-09-01T11:00:00Z" {
		t.Errorf("user field shadowed fixed key: %v", payload["updated_at"])
	}
}

func TestDecodeTaskRoundTrip(t *testing.T) {
	original := &schema.Task{
		ID:            "t1",
		Color:         "#FF6B6B",
		Position:      schema.Position{X: 120, Y: 40},
		Completed:     true,
		CompletedDate: "2026-09-01",
		CreatedAt:     "2026-09-01T10:00:00Z",
		UpdatedAt:     "2026-09-01T11:00:00Z",
		Fields:        map[string]string{"text": "buy milk", "notes": "2%"},
	}

	data, err := json.Marshal(EncodeTask(original))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	decoded, err := DecodeTask(data)
	if err != nil {
		t.Fatalf("DecodeTask failed: %v", err)
	}

	if decoded.ID != original.ID ||
		decoded.Color != original.Color ||
		decoded.Position != original.Position ||
		decoded.Completed != original.Completed ||
		decoded.CompletedDate != original.CompletedDate ||
		decoded.CreatedAt != original.CreatedAt ||
		decoded.UpdatedAt != original.UpdatedAt {
		t.Errorf("fixed columns changed in round trip: %+v vs %+v", decoded, original)
	}
	if decoded.Field("text") != "buy milk" || decoded.Field("notes") != "2%" {
		t.Errorf("user fields changed in round trip: %+v", decoded.Fields)
	}
}

func TestDecodeTaskSkipsNonStringExtras(t *testing.T) {
	raw := []byte(`{
		"id": "t1",
		"updated_at": "2026-09-01T11:00:00Z",
		"text": "buy milk",
		"user_id": 42,
		"metadata": {"source": "web"}
	}`)

	decoded, err := DecodeTask(raw)
	if err != nil {
		t.Fatalf("DecodeTask failed: %v", err)
	}
	if decoded.Field("text") != "buy milk" {
		t.Errorf("string extra not kept as field: %+v", decoded.Fields)
	}
	if _, present := decoded.Fields["user_id"]; present {
		t.Error("numeric extra kept as user field")
	}
	if _, present := decoded.Fields["metadata"]; present {
		t.Error("object extra kept as user field")
	}
}

func TestDecodeTaskMissingID(t *testing.T) {
	if _, err := DecodeTask([]byte(`{"text": "no id"}`)); err == nil {
		t.Fatal("expected error for payload without id")
	}
	if _, err := DecodeTask([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestDecodeTaskTolerantOfNulls(t *testing.T) {
	decoded, err := DecodeTask([]byte(`{"id": "t1", "color": null, "position": null}`))
	if err != nil {
		t.Fatalf("DecodeTask failed: %v", err)
	}
	if decoded.ID != "t1" {
		t.Errorf("unexpected id %q", decoded.ID)
	}
}
