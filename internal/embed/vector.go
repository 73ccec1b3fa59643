// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import "math"

// Base channel weights before renormalization.
const (
	WeightMain    = 0.7
	WeightTopic   = 0.2
	WeightConcept = 0.1
)

// ChannelWeights are the effective weights of the present channels. They
// sum to 1; absent channels have weight 0.
type ChannelWeights struct {
	Main    float64
	Topic   float64
	Concept float64
}

// Weights drops absent channels and rescales the rest to sum to 1.
// Primary only gives 1.0; primary and topic give 0.778 and 0.222.
func Weights(hasTopic, hasConcept bool) ChannelWeights {
	w := ChannelWeights{Main: WeightMain}
	if hasTopic {
		w.Topic = WeightTopic
	}
	if hasConcept {
		w.Concept = WeightConcept
	}
	total := w.Main + w.Topic + w.Concept
	w.Main /= total
	w.Topic /= total
	w.Concept /= total
	return w
}

// Combine returns the L2-normalized weighted sum of the channel vectors.
// Nil topic or concept means the channel is absent. If the sum has zero
// norm, main is returned unchanged. All present vectors must share the
// length of main.
func Combine(main, topic, concept []float32) []float32 {
	w := Weights(topic != nil, concept != nil)

	sum := make([]float64, len(main))
	for i, v := range main {
		sum[i] = w.Main * float64(v)
	}
	for i, v := range topic {
		sum[i] += w.Topic * float64(v)
	}
	for i, v := range concept {
		sum[i] += w.Concept * float64(v)
	}

	norm := norm64(sum)
	if norm == 0 {
		return main
	}
	out := make([]float32, len(sum))
	for i, v := range sum {
		out[i] = float32(v / norm)
	}
	return out
}

// Normalize returns a unit-length copy of v. A zero vector yields a zero
// vector of the same length.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var ss float64
	for _, x := range v {
		ss += float64(x) * float64(x)
	}
	if ss == 0 {
		return out
	}
	n := math.Sqrt(ss)
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// Mean returns the element-wise average of vecs, which must share a length.
func Mean(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	sum := make([]float64, len(vecs[0]))
	for _, v := range vecs {
		for i, x := range v {
			sum[i] += float64(x)
		}
	}
	out := make([]float32, len(sum))
	for i, s := range sum {
		out[i] = float32(s / float64(len(vecs)))
	}
	return out
}

// Dot returns the inner product of a and b accumulated in float64. For unit
// vectors this is the cosine similarity.
func Dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var ss float64
	for _, x := range v {
		ss += float64(x) * float64(x)
	}
	return math.Sqrt(ss)
}

func norm64(v []float64) float64 {
	var ss float64
	for _, x := range v {
		ss += x * x
	}
	return math.Sqrt(ss)
}
