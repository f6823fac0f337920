package parcel

import (
	"strings"
	"testing"
)

var benchGraph = NewString16("digraph{" + strings.Repeat("uid_10001->uid_10002[label=\"tag 0x4\"];", 200) + "}")

func BenchmarkWriteString16(b *testing.B) {
	for i := 0; i < b.N; i++ {
		p := New()
		p.WriteNoException()
		p.WriteString16(benchGraph)
	}
}

func BenchmarkReadString16(b *testing.B) {
	p := New()
	p.WriteString16(benchGraph)
	data := p.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := FromBytes(data).ReadString16(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkNarrow(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = benchGraph.Narrow()
	}
}
