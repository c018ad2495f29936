package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/codec"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/record"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/scorer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/internal/vectorizer/vector"
)

const vocabulary = 2000

func benchTable(b *testing.B) *scorer.Table {
	b.Helper()
	dfs := make([]record.DocumentFrequency, vocabulary)
	for i := range dfs {
		dfs[i] = record.DocumentFrequency{Term: fmt.Sprintf("term%d", i), Count: i%500 + 1}
	}
	table, err := scorer.NewTable(1000, dfs)
	if err != nil {
		b.Fatal(err)
	}
	return table
}

func benchDocs(n, termsPerDoc int) []record.Document {
	docs := make([]record.Document, n)
	for i := range docs {
		raw := fmt.Sprintf("%d,", i)
		for j := 0; j < termsPerDoc; j++ {
			raw += fmt.Sprintf("term%d ", (i*7+j*13)%vocabulary)
		}
		docs[i] = record.Document{Raw: raw}
	}
	return docs
}

func BenchmarkPipelineRun(b *testing.B) {
	table := benchTable(b)
	docs := benchDocs(1000, 50)
	for _, workers := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			p, err := vectorizer.New(tokenizer.DefaultStopWords(), table, vectorizer.Options{Workers: workers, Partitions: 16})
			if err != nil {
				b.Fatal(err)
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := p.Run(context.Background(), docs); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkPipelineProcess(b *testing.B) {
	p, err := vectorizer.New(tokenizer.DefaultStopWords(), benchTable(b), vectorizer.Options{Workers: 1, Partitions: 1})
	if err != nil {
		b.Fatal(err)
	}
	doc := benchDocs(1, 50)[0]
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Process(context.Background(), doc); err != nil {
			b.Fatal(err)
		}
	}
}

func benchVector(entries int) *vector.SparseWeightVector {
	v := vector.New()
	v.SetDocID(42)
	for i := 0; i < entries; i++ {
		v.Add(fmt.Sprintf("term%d", i), float64(i)*0.37)
	}
	return v
}

func BenchmarkEncode(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		v := benchVector(n)
		b.Run(fmt.Sprintf("entries_%d", n), func(b *testing.B) {
			buf := make([]byte, 0, 64*1024)
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				out, err := codec.Append(buf[:0], v)
				if err != nil {
					b.Fatal(err)
				}
				b.SetBytes(int64(len(out)))
			}
		})
	}
}

func BenchmarkDecode(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		payload, err := codec.Encode(benchVector(n))
		if err != nil {
			b.Fatal(err)
		}
		b.Run(fmt.Sprintf("entries_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(payload)))
			for i := 0; i < b.N; i++ {
				if _, err := codec.Decode(payload); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
