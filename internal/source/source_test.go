package source

import (
	"bytes"
	"testing"
)

func TestParseFrameLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		device  string
		data    []byte
		wantErr bool
	}{
		{
			name:   "valid line",
			line:   "lock-a 0011aaff",
			device: "lock-a",
			data:   []byte{0x00, 0x11, 0xaa, 0xff},
		},
		{
			name:   "uppercase hex",
			line:   "D0:0B:12 AABBCC",
			device: "D0:0B:12",
			data:   []byte{0xaa, 0xbb, 0xcc},
		},
		{
			name:   "trailing whitespace on hex",
			line:   "lock-a 0102 ",
			device: "lock-a",
			data:   []byte{0x01, 0x02},
		},
		{
			name:    "no separator",
			line:    "lock-a0011",
			wantErr: true,
		},
		{
			name:    "empty device",
			line:    " 0011",
			wantErr: true,
		},
		{
			name:    "odd hex length",
			line:    "lock-a 011",
			wantErr: true,
		},
		{
			name:    "non-hex bytes",
			line:    "lock-a zz11",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device, data, err := parseFrameLine(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got device=%q data=%x", tt.line, device, data)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFrameLine(%q): %v", tt.line, err)
			}
			if device != tt.device {
				t.Errorf("device = %q, want %q", device, tt.device)
			}
			if !bytes.Equal(data, tt.data) {
				t.Errorf("data = %x, want %x", data, tt.data)
			}
		})
	}
}

func TestDeviceFromTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"wlckg1/raw/lock-a", "lock-a"},
		{"raw/d0:0b:12:33", "d0:0b:12:33"},
		{"lock-a", "lock-a"},
		{"wlckg1/raw/", ""},
	}
	for _, tt := range tests {
		if got := deviceFromTopic(tt.topic); got != tt.want {
			t.Errorf("deviceFromTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestParseWSMessage(t *testing.T) {
	frame, err := parseWSMessage([]byte(`{"device":"lock-a","frame":"00ff10"}`))
	if err != nil {
		t.Fatalf("parseWSMessage: %v", err)
	}
	if frame.Device != "lock-a" {
		t.Errorf("device = %q, want lock-a", frame.Device)
	}
	if !bytes.Equal(frame.Data, []byte{0x00, 0xff, 0x10}) {
		t.Errorf("data = %x, want 00ff10", frame.Data)
	}
	if !frame.At.IsZero() {
		t.Errorf("timestamp should be left unset by the parser")
	}
}

func TestParseWSMessageRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `lock-a 0011`},
		{"missing device", `{"frame":"0011"}`},
		{"bad hex", `{"device":"lock-a","frame":"xx"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseWSMessage([]byte(tt.data)); err == nil {
				t.Errorf("expected error for %s", tt.data)
			}
		})
	}
}
