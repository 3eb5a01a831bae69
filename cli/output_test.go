package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    OutputFormat
		wantErr bool
	}{
		{name: "text format", input: "text", want: OutputFormatText},
		{name: "json format", input: "json", want: OutputFormatJSON},
		{name: "empty string defaults to text", input: "", want: OutputFormatText},
		{name: "invalid format", input: "xml", wantErr: true},
		{name: "invalid format yaml", input: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseOutputFormat() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOutputWriter_Write(t *testing.T) {
	data := map[string]string{"state": "CONNECTED"}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		o := &OutputWriter{format: OutputFormatJSON, writer: &buf}
		called := false
		if err := o.Write(data, func(io.Writer) { called = true }); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if called {
			t.Error("text function called in JSON mode")
		}
		var got map[string]string
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if got["state"] != "CONNECTED" {
			t.Errorf("state = %q", got["state"])
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		o := &OutputWriter{format: OutputFormatText, writer: &buf}
		_ = o.Write(data, func(w io.Writer) { io.WriteString(w, "Connected\n") })
		if buf.String() != "Connected\n" {
			t.Errorf("output = %q", buf.String())
		}
	})
}

func TestOutputWriter_PrintfSilentInJSON(t *testing.T) {
	var buf bytes.Buffer
	o := &OutputWriter{format: OutputFormatJSON, writer: &buf}
	o.Printf("Connecting to %s...\n", "BR")
	if buf.Len() != 0 {
		t.Errorf("Printf wrote %q in JSON mode", buf.String())
	}
}

func TestOutputWriter_Table(t *testing.T) {
	var buf bytes.Buffer
	o := &OutputWriter{format: OutputFormatText, writer: &buf}
	err := o.Table([]string{"ID", "NAME"}, [][]string{{"1", "BR SSH"}, {"12", "V2 US"}})
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if lines[0] != "ID  NAME" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "--  ----" {
		t.Errorf("rule = %q", lines[1])
	}
	if lines[3] != "12  V2 US" {
		t.Errorf("row = %q", lines[3])
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2*time.Hour + 1*time.Minute + 9*time.Second, "2h 1m 9s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOrDash(t *testing.T) {
	if orDash("") != "-" || orDash("x") != "x" {
		t.Error("orDash mismatch")
	}
	if yesNo(true) != "Yes" || yesNo(false) != "No" {
		t.Error("yesNo mismatch")
	}
}
