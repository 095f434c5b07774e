package normalize

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCode(t *testing.T) {
	cases := map[string]string{
		" med001 ": "MED001",
		"a-1":      "A-1",
		"":         "",
	}
	for in, want := range cases {
		if got := Code(in); got != want {
			t.Errorf("Code(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNameContains(t *testing.T) {
	if !NameContains("Reading  SPECTACLES (pair)", "spectacles") {
		t.Error("expected case-insensitive containment")
	}
	if !NameContains("General Bed Charge", "bed  charge") {
		t.Error("expected whitespace-collapsed containment")
	}
	if NameContains("Paracetamol", "") {
		t.Error("empty needle must not match")
	}
	if NameContains("Paracetamol", "hearing aid") {
		t.Error("unexpected match")
	}
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2024-03-05", "2024-03-05 10:11:12", "2024-03-05T10:11:12Z", "Mar 5, 2024", " 2024/03/05 "} {
		got, err := ParseDate(s)
		if err != nil {
			t.Errorf("ParseDate(%q): %v", s, err)
			continue
		}
		if got.Year() != 2024 || got.Month() != 3 || got.Day() != 5 {
			t.Errorf("ParseDate(%q) = %v", s, got)
		}
	}
	for _, s := range []string{"not a date", "  ", "05/03/2024", "3/5/2024"} {
		if _, err := ParseDate(s); !errors.Is(err, ErrBadDate) {
			t.Errorf("ParseDate(%q) err = %v, want ErrBadDate", s, err)
		}
	}
}

func TestOptDeref(t *testing.T) {
	if Opt("") != nil {
		t.Error("Opt of empty string should be nil")
	}
	if p := Opt("x"); p == nil || *p != "x" {
		t.Errorf("Opt(x) = %v", p)
	}
	if Deref[string](nil) != "" {
		t.Error("Deref(nil) should be empty")
	}
	if Opt(int64(0)) != nil {
		t.Error("Opt of zero int should be nil")
	}
}

func TestFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := FileHash(path)
	if err != nil {
		t.Fatalf("FileHash: %v", err)
	}
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("FileHash = %s, want %s", got, want)
	}
	if _, err := FileHash(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBytesHash_Stable(t *testing.T) {
	a := BytesHash([]byte("items"), []byte("services"))
	b := BytesHash([]byte("items"), []byte("services"))
	c := BytesHash([]byte("itemsservices"))
	if a != b {
		t.Error("hash must be deterministic")
	}
	if a == c {
		t.Error("part boundaries must affect the hash")
	}
}

func TestShort(t *testing.T) {
	sum := BytesHash([]byte("catalog"))
	if got := Short(sum); len(got) != ShortLen || got != sum[:ShortLen] {
		t.Errorf("Short = %q", got)
	}
	if Short("abc") != "abc" {
		t.Error("short input must pass through")
	}
}
