package stage

import "github.com/hambosto/adapipe/internal/corerr"

// ApplyForward runs chain in order, feeding each stage's output to the
// next (spec §4.3: "the returned bytes become the input to the next
// stage").
func ApplyForward(chain []Stage, in []byte, ctx *Context) ([]byte, error) {
	data := in
	for _, s := range chain {
		out, err := s.Forward(data, ctx)
		if err != nil {
			return nil, wrapStageErr(err, s)
		}
		data = out
	}
	return data, nil
}

// ApplyReverse runs chain in reverse order with each stage's Reverse
// (spec §4.5's "Reversal rule").
func ApplyReverse(chain []Stage, in []byte, ctx *Context) ([]byte, error) {
	data := in
	for i := len(chain) - 1; i >= 0; i-- {
		out, err := chain[i].Reverse(data, ctx)
		if err != nil {
			return nil, wrapStageErr(err, chain[i])
		}
		data = out
	}
	return data, nil
}

func wrapStageErr(err error, s Stage) error {
	if corerr.KindOf(err) != "" {
		return err
	}
	d := s.Descriptor()
	return corerr.New(corerr.CorruptData, string(d.Kind)+"/"+d.Algorithm, err)
}
