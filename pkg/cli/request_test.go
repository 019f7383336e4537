package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRequest(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"req.yaml": "session_name: lab\nsample_rate: 16000\nalgorithms:\n  - nlms\n",
		"req.json": `{"session_name":"lab","sample_rate":16000,"algorithms":["nlms"]}`,
		"req.txt":  "session_name: lab\nsample_rate: 16000\nalgorithms: [nlms]\n",
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			var req struct {
				SessionName string   `json:"session_name" yaml:"session_name"`
				SampleRate  int      `json:"sample_rate" yaml:"sample_rate"`
				Algorithms  []string `json:"algorithms" yaml:"algorithms"`
			}
			if err := LoadRequest(path, &req); err != nil {
				t.Fatalf("LoadRequest error: %v", err)
			}
			if req.SessionName != "lab" || req.SampleRate != 16000 || len(req.Algorithms) != 1 {
				t.Errorf("req = %+v", req)
			}
		})
	}

	if err := LoadRequest(filepath.Join(dir, "missing.yaml"), &struct{}{}); err == nil {
		t.Error("LoadRequest should fail for missing file")
	}
}

func TestParseRequest_Invalid(t *testing.T) {
	var v map[string]any
	if err := ParseRequest([]byte("{not json"), "x.json", &v); err == nil {
		t.Error("expected JSON error")
	}
	if err := ParseRequest([]byte("a: [b"), "x.yaml", &v); err == nil {
		t.Error("expected YAML error")
	}
}

func TestLoadRequestFrom(t *testing.T) {
	var v map[string]any
	if err := LoadRequestFrom(strings.NewReader(`{"a":1}`), &v); err != nil || v["a"] != float64(1) {
		t.Errorf("json: %v, %v", v, err)
	}
	v = nil
	if err := LoadRequestFrom(strings.NewReader("a: x\n"), &v); err != nil || v["a"] != "x" {
		t.Errorf("yaml: %v, %v", v, err)
	}
}

func TestRequestBody(t *testing.T) {
	body, err := RequestBody("", "")
	if err != nil || body == nil || len(body) != 0 {
		t.Errorf("empty = %v, %v", body, err)
	}

	body, err = RequestBody("", `{"audio_data":"AAEC"}`)
	if err != nil || body["audio_data"] != "AAEC" {
		t.Errorf("inline = %v, %v", body, err)
	}

	path := filepath.Join(t.TempDir(), "body.yaml")
	os.WriteFile(path, []byte("metadata:\n  device: mic-1\n"), 0644)
	body, err = RequestBody(path, "")
	if err != nil {
		t.Fatalf("RequestBody error: %v", err)
	}
	meta, ok := body["metadata"].(map[string]any)
	if !ok || meta["device"] != "mic-1" {
		t.Errorf("file = %#v", body)
	}

	if _, err := RequestBody(path, "{}"); err == nil {
		t.Error("RequestBody should reject both a file and inline data")
	}
	if _, err := RequestBody("", "{"); err == nil {
		t.Error("RequestBody should reject invalid inline JSON")
	}
}
