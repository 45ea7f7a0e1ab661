package wire

import (
	"encoding/json"
	"testing"
)

func TestNewRequestFrame(t *testing.T) {
	t.Parallel()

	frame, err := NewRequestFrame("frame-1", MethodJobSubmit, JobSubmitRequest{Printer: "Front Desk"})
	if err != nil {
		t.Fatalf("NewRequestFrame: %v", err)
	}
	if frame.ID != "frame-1" {
		t.Errorf("ID = %q, want %q", frame.ID, "frame-1")
	}
	if frame.Type != FrameRequest {
		t.Errorf("Type = %q, want %q", frame.Type, FrameRequest)
	}
	if frame.Method != MethodJobSubmit {
		t.Errorf("Method = %q, want %q", frame.Method, MethodJobSubmit)
	}
	if frame.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}

	var req JobSubmitRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if req.Printer != "Front Desk" {
		t.Errorf("Printer = %q, want %q", req.Printer, "Front Desk")
	}
}

func TestNewResponseFrame(t *testing.T) {
	t.Parallel()

	frame, err := NewResponseFrame("correl-1", map[string]string{"status": "ok"})
	if err != nil {
		t.Fatalf("NewResponseFrame: %v", err)
	}
	if frame.Type != FrameResponse {
		t.Errorf("Type = %q, want %q", frame.Type, FrameResponse)
	}
	if frame.CorrelID != "correl-1" {
		t.Errorf("CorrelID = %q, want %q", frame.CorrelID, "correl-1")
	}
	if frame.ID == "" {
		t.Error("ID should be auto-generated")
	}
}

func TestNewErrorFrame(t *testing.T) {
	t.Parallel()

	frame := NewErrorFrame("correl-2", ErrCodeNotFound, "not found")
	if frame.Type != FrameErr {
		t.Errorf("Type = %q, want %q", frame.Type, FrameErr)
	}
	if frame.Error == nil {
		t.Fatal("Error should not be nil")
	}
	if frame.Error.Code != ErrCodeNotFound || frame.Error.Message != "not found" {
		t.Errorf("Error = %+v", frame.Error)
	}
}

func TestGenerateFrameIDUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 1000 {
		fid := GenerateFrameID()
		if seen[fid] {
			t.Fatalf("duplicate frame ID %q", fid)
		}
		seen[fid] = true
	}
}

func TestCodecs(t *testing.T) {
	t.Parallel()

	for _, name := range []string{CodecNameJSON, CodecNameMsgpack} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			codec := GetCodec(name)
			if codec.Name() != name {
				t.Fatalf("Name = %q, want %q", codec.Name(), name)
			}

			in, err := NewEventFrame("job:j1", map[string]string{"type": "job.completed"})
			if err != nil {
				t.Fatalf("NewEventFrame: %v", err)
			}
			in.Credits = 7

			data, err := codec.Encode(in)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			out, err := codec.Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if out.ID != in.ID || out.Type != FrameEvent || out.Channel != "job:j1" || out.Credits != 7 {
				t.Errorf("decoded frame = %+v", out)
			}
			if string(out.Data) != string(in.Data) {
				t.Errorf("Data = %s, want %s", out.Data, in.Data)
			}
		})
	}

	if GetCodec("protobuf").Name() != CodecNameJSON {
		t.Error("unknown codec should fall back to JSON")
	}
}
