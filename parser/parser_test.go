package parser

import (
	"reflect"
	"testing"
)

// ---------------------------------------------------------------------------
// Registry tests
// ---------------------------------------------------------------------------

func TestRegistryBuiltInLoaders(t *testing.T) {
	reg := NewRegistry()

	l, err := reg.Get("pdf")
	if err != nil {
		t.Fatalf("Get(%q) returned error: %v", "pdf", err)
	}
	if _, ok := l.(*PDFLoader); !ok {
		t.Errorf("Get(%q) = %T, want *PDFLoader", "pdf", l)
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry()

	for _, format := range []string{"txt", "docx", "xlsx", ""} {
		t.Run("format_"+format, func(t *testing.T) {
			l, err := reg.Get(format)
			if err == nil {
				t.Errorf("Get(%q) expected error for unknown format, got loader: %v", format, l)
			}
			if l != nil {
				t.Errorf("Get(%q) expected nil loader for unknown format", format)
			}
		})
	}

	if _, err := reg.Open("/tmp/schedule.txt"); err == nil {
		t.Error("Open of an unsupported extension should fail")
	}
}

type stubLoader struct{ doc Document }

func (s stubLoader) Open(string) (Document, error) { return s.doc, nil }
func (s stubLoader) SupportedFormats() []string   { return []string{"mem"} }

func TestRegistryCustomLoader(t *testing.T) {
	reg := NewRegistry()
	doc := &memDocument{}

	reg.Register("mem", stubLoader{doc: doc})
	got, err := reg.Open("/data/term.MEM")
	if err != nil {
		t.Fatalf("Open after Register returned error: %v", err)
	}
	if got != doc {
		t.Error("Open returned a different document")
	}
}

func TestFormat(t *testing.T) {
	tests := map[string]string{
		"a/b/horario.PDF": "pdf",
		"x.pdf":           "pdf",
		"noext":           "",
	}
	for in, want := range tests {
		if got := Format(in); got != want {
			t.Errorf("Format(%q) = %q, want %q", in, got, want)
		}
	}
}

// ---------------------------------------------------------------------------
// PageSelector / Region tests
// ---------------------------------------------------------------------------

func TestPageSelectorResolve(t *testing.T) {
	got, err := AllPages().Resolve(3)
	if err != nil || !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("AllPages().Resolve(3) = %v, %v", got, err)
	}

	got, err = Pages(3, 1).Resolve(3)
	if err != nil || !reflect.DeepEqual(got, []int{3, 1}) {
		t.Errorf("Pages(3,1).Resolve(3) = %v, %v", got, err)
	}

	if _, err := Pages(0).Resolve(3); err == nil {
		t.Error("page 0 should be rejected")
	}

	got, err = AllPages().Resolve(0)
	if err != nil || len(got) != 0 {
		t.Errorf("AllPages().Resolve(0) = %v, %v", got, err)
	}
}

func TestRegion(t *testing.T) {
	r := Region{Top: 10, Left: 20, Bottom: 30, Right: 40}
	if !r.Valid() {
		t.Fatal("region should be valid")
	}
	if !r.Contains(20, 10) || !r.Contains(30, 20) {
		t.Error("Contains should include the border and interior")
	}
	if r.Contains(41, 20) || r.Contains(30, 9) {
		t.Error("Contains should exclude points outside")
	}
	if (Region{}).Valid() {
		t.Error("zero region should be invalid")
	}
}

func TestModeValid(t *testing.T) {
	if !ModeGrid.Valid() || !ModeStream.Valid() || Mode("auto").Valid() {
		t.Error("Mode.Valid mismatch")
	}
}
