package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"testing"
)

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Invalid zip: %v", err)
	}
	out := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		out[f.Name] = b
	}
	return out
}

func TestWriterDeduplicatesNames(t *testing.T) {
	w := NewWriter()
	for _, payload := range []string{"a", "b", "c"} {
		if err := w.Add("photo.jpg", []byte(payload)); err != nil {
			t.Fatal(err)
		}
	}
	if w.Len() != 3 {
		t.Errorf("Expected 3 entries, got %d", w.Len())
	}

	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	files := readZip(t, data)
	for name, want := range map[string]string{"photo.jpg": "a", "photo-1.jpg": "b", "photo-2.jpg": "c"} {
		if string(files[name]) != want {
			t.Errorf("%s: expected %q, got %q", name, want, files[name])
		}
	}
}

func TestWriterFailuresManifest(t *testing.T) {
	w := NewWriter()
	if err := w.Add("ok.png", []byte("png")); err != nil {
		t.Fatal(err)
	}
	if err := w.AddFailures([]Failure{{File: "broken.png", Error: "decode source: bad"}}); err != nil {
		t.Fatal(err)
	}
	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	var failures []Failure
	if err := json.Unmarshal(readZip(t, data)[FailuresManifest], &failures); err != nil {
		t.Fatalf("Manifest is not valid json: %v", err)
	}
	if len(failures) != 1 || failures[0].File != "broken.png" {
		t.Errorf("Unexpected manifest %+v", failures)
	}
	if w.Len() != 1 {
		t.Errorf("Manifest should not count as an image entry, got %d", w.Len())
	}
}

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"holiday.png":          "holiday.jpg",
		"archive.tar.png":      "archive.tar.jpg",
		"noext":                "noext.jpg",
		"../../etc/passwd.png": "passwd.jpg",
		`C:\Users\me\cat.gif`:  "cat.jpg",
		"":                     "image.jpg",
	}
	for in, want := range tests {
		if got := OutputName(in, ".jpg"); got != want {
			t.Errorf("OutputName(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestSanitizeStripsDirectories(t *testing.T) {
	w := NewWriter()
	if err := w.Add("../evil.png", []byte("x")); err != nil {
		t.Fatal(err)
	}
	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := readZip(t, data)["evil.png"]; !ok {
		t.Error("Expected directory components to be stripped")
	}
}
