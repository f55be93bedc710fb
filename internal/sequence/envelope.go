package sequence

import "sort"

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func ease(kind string, x float64) float64 {
	switch kind {
	case "smooth":
		return x * x * (3 - 2*x)
	case "cubic":
		return x * x * x * (x*(x*6-15) + 10)
	default:
		return x
	}
}

// Eval interpolates the envelope at t. Outside the keyed range it holds the
// nearest end value; an empty envelope is 0.
func (e Envelope) Eval(t float64) float64 {
	n := len(e)
	switch {
	case n == 0:
		return 0
	case t <= e[0].T:
		return e[0].V
	case t >= e[n-1].T:
		return e[n-1].V
	}
	// first key strictly after t; a is the one before it
	i := sort.Search(n, func(i int) bool { return e[i].T > t })
	a, b := e[i-1], e[i]
	span := b.T - a.T
	if span <= 0 {
		return b.V
	}
	u := ease(a.Ease, clamp01((t-a.T)/span))
	return a.V + (b.V-a.V)*u
}
