package stage

// PassThrough is the identity stage in both directions.
type PassThrough struct {
	order uint32
}

// NewPassThrough builds a PassThrough stage at the given descriptor
// order.
func NewPassThrough(order uint32) *PassThrough {
	return &PassThrough{order: order}
}

func (p *PassThrough) Kind() Kind { return KindPassThrough }

func (p *PassThrough) Descriptor() Descriptor {
	return Descriptor{Kind: KindPassThrough, Algorithm: "identity", Order: p.order}
}

func (p *PassThrough) Forward(in []byte, _ *Context) ([]byte, error) { return in, nil }

func (p *PassThrough) Reverse(in []byte, _ *Context) ([]byte, error) { return in, nil }
