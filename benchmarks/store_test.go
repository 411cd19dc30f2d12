package benchmarks

import (
	"testing"

	"github.com/randalmurphal/contextaction/pkg/contextaction/compare"
	"github.com/randalmurphal/contextaction/pkg/contextaction/store"
)

// Document is a mid-sized nested value.
type Document struct {
	ID     string
	Title  string
	Tags   []string
	Fields map[string]string
	Items  []Item
}

// Item is a nested element of Document.
type Item struct {
	Name  string
	Price float64
}

func newDocument(n int) Document {
	d := Document{
		ID:     "doc",
		Title:  "benchmark",
		Tags:   []string{"a", "b", "c"},
		Fields: map[string]string{"owner": "bench", "state": "open"},
	}
	for i := 0; i < n; i++ {
		d.Items = append(d.Items, Item{Name: "item", Price: float64(i)})
	}
	return d
}

// BenchmarkSetValue_Int sets a changing int on a reference-compared store.
func BenchmarkSetValue_Int(b *testing.B) {
	s := store.New("counter", 0)
	s.Subscribe(func() {})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.SetValue(i)
	}
}

// BenchmarkSetValue_DeepEqual sets an equal document under deep comparison.
func BenchmarkSetValue_DeepEqual(b *testing.B) {
	doc := newDocument(50)
	s := store.New("doc", doc, store.WithComparison(compare.Options{Strategy: compare.Deep}))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.SetValue(doc)
	}
}

// BenchmarkGetValue_Clone measures the defensive copy of a document.
func BenchmarkGetValue_Clone(b *testing.B) {
	s := store.New("doc", newDocument(50))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.GetValue()
	}
}

// BenchmarkGetSnapshot reads the cached snapshot.
func BenchmarkGetSnapshot(b *testing.B) {
	s := store.New("doc", newDocument(50))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.GetSnapshot()
	}
}

// BenchmarkCompare_Deep compares two equal documents.
func BenchmarkCompare_Deep(b *testing.B) {
	x, y := newDocument(100), newDocument(100)
	opts := compare.Options{Strategy: compare.Deep}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		compare.Equal(x, y, opts)
	}
}
