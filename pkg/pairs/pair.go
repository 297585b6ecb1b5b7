package pairs

// Labels carried by a Pair.
const (
	LabelNegative = 0
	LabelPositive = 1
)

// Pair is one labeled training example.
//
// Context holds exactly ContextSize utterances. It is a private copy owned
// by the pair and is not retained by the Builder.
type Pair[U comparable] struct {
	Context  []U `json:"context" msgpack:"context"`
	Response U   `json:"response" msgpack:"response"`
	Label    int `json:"label" msgpack:"label"`
}

// Positive reports whether the pair holds the true next utterance.
func (p Pair[U]) Positive() bool { return p.Label == LabelPositive }
