// Package record defines the keyed records that flow between pipeline
// stages.
package record

// Document is one raw input line: "docId,field1,field2,...".
type Document struct {
	Raw string
}

type TermFrequency struct {
	DocID     int32
	Term      string
	Frequency int
}

type DocumentFrequency struct {
	Term  string
	Count int
}

type Scored struct {
	DocID  int32
	Term   string
	Weight float64
}

// TermKey and DocKey are the partitioning keys of the join and fold stages.
func TermKey(tf TermFrequency) string { return tf.Term }

func DFTermKey(df DocumentFrequency) string { return df.Term }

func DocKey(s Scored) int32 { return s.DocID }
