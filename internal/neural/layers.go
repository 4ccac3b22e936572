package neural

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// param is a trainable weight block with its gradient and Adam moments.
type param struct {
	val  []float64
	grad []float64
	m    []float64
	v    []float64
}

func newParam(n int) *param {
	return &param{
		val:  make([]float64, n),
		grad: make([]float64, n),
		m:    make([]float64, n),
		v:    make([]float64, n),
	}
}

func (p *param) zeroGrad() {
	clear(p.grad)
}

// matrix views val as a rows x cols row-major matrix without copying.
func (p *param) matrix(rows, cols int) *mat.Dense {
	return mat.NewDense(rows, cols, p.val)
}

// gradMatrix views grad as a rows x cols row-major matrix without copying.
func (p *param) gradMatrix(rows, cols int) *mat.Dense {
	return mat.NewDense(rows, cols, p.grad)
}

// glorotUniform fills p with samples from U(-limit, limit), limit = sqrt(6/(fanIn+fanOut)).
func (p *param) glorotUniform(rng *rand.Rand, fanIn, fanOut int) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range p.val {
		p.val[i] = (rng.Float64()*2 - 1) * limit
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// lstmLayer is a single LSTM with gates laid out as [input, forget, cell, output].
type lstmLayer struct {
	w     *param // [4*units x in]
	u     *param // [4*units x units]
	b     *param // [4*units]
	in    int
	units int
}

// lstmStep caches one timestep of the forward pass for backpropagation.
type lstmStep struct {
	x     []float64
	hPrev []float64
	cPrev []float64
	i     []float64
	f     []float64
	g     []float64
	o     []float64
	tanhC []float64
}

func newLSTMLayer(rng *rand.Rand, in, units int) *lstmLayer {
	l := &lstmLayer{
		in:    in,
		units: units,
		w:     newParam(4 * units * in),
		u:     newParam(4 * units * units),
		b:     newParam(4 * units),
	}
	l.w.glorotUniform(rng, in, 4*units)
	l.u.glorotUniform(rng, units, 4*units)
	for j := units; j < 2*units; j++ {
		l.b.val[j] = 1
	}
	return l
}

func (l *lstmLayer) params() []*param {
	return []*param{l.w, l.u, l.b}
}

// forward runs the sequence and returns the hidden state at every step.
// When cache is true the per-step activations are kept for backward.
func (l *lstmLayer) forward(xs [][]float64, cache bool) ([][]float64, []lstmStep) {
	units := l.units
	h := make([]float64, units)
	c := make([]float64, units)
	outs := make([][]float64, len(xs))
	var steps []lstmStep
	if cache {
		steps = make([]lstmStep, len(xs))
	}

	w := l.w.matrix(4*units, l.in)
	u := l.u.matrix(4*units, units)
	bias := mat.NewVecDense(4*units, l.b.val)
	z := mat.NewVecDense(4*units, nil)
	recur := mat.NewVecDense(4*units, nil)
	for t, x := range xs {
		// z = W·x + U·h + b
		z.MulVec(w, mat.NewVecDense(l.in, x))
		recur.MulVec(u, mat.NewVecDense(units, h))
		z.AddVec(z, recur)
		z.AddVec(z, bias)

		ig := make([]float64, units)
		fg := make([]float64, units)
		gg := make([]float64, units)
		og := make([]float64, units)
		cNew := make([]float64, units)
		tc := make([]float64, units)
		hNew := make([]float64, units)
		for j := 0; j < units; j++ {
			ig[j] = sigmoid(z.AtVec(j))
			fg[j] = sigmoid(z.AtVec(units + j))
			gg[j] = math.Tanh(z.AtVec(2*units + j))
			og[j] = sigmoid(z.AtVec(3*units + j))
			cNew[j] = fg[j]*c[j] + ig[j]*gg[j]
			tc[j] = math.Tanh(cNew[j])
			hNew[j] = og[j] * tc[j]
		}

		if cache {
			steps[t] = lstmStep{x: x, hPrev: h, cPrev: c, i: ig, f: fg, g: gg, o: og, tanhC: tc}
		}
		outs[t] = hNew
		h, c = hNew, cNew
	}

	return outs, steps
}

// backward accumulates parameter gradients given dL/dh for each step
// (nil entries mean no gradient at that step) and returns dL/dx per step.
func (l *lstmLayer) backward(steps []lstmStep, dhs [][]float64) [][]float64 {
	units := l.units
	w := l.w.matrix(4*units, l.in)
	u := l.u.matrix(4*units, units)
	gw := l.w.gradMatrix(4*units, l.in)
	gu := l.u.gradMatrix(4*units, units)
	dxs := make([][]float64, len(steps))
	dhNext := make([]float64, units)
	dcNext := make([]float64, units)
	dz := make([]float64, 4*units)
	dh := make([]float64, units)

	for t := len(steps) - 1; t >= 0; t-- {
		s := steps[t]
		copy(dh, dhNext)
		if dhs[t] != nil {
			floats.Add(dh, dhs[t])
		}

		for j := 0; j < units; j++ {
			do := dh[j] * s.tanhC[j]
			dc := dcNext[j] + dh[j]*s.o[j]*(1-s.tanhC[j]*s.tanhC[j])
			di := dc * s.g[j]
			dg := dc * s.i[j]
			df := dc * s.cPrev[j]

			dz[j] = di * s.i[j] * (1 - s.i[j])
			dz[units+j] = df * s.f[j] * (1 - s.f[j])
			dz[2*units+j] = dg * (1 - s.g[j]*s.g[j])
			dz[3*units+j] = do * s.o[j] * (1 - s.o[j])

			dcNext[j] = dc * s.f[j]
		}

		dzv := mat.NewVecDense(4*units, dz)
		gw.RankOne(gw, 1, dzv, mat.NewVecDense(l.in, s.x))
		gu.RankOne(gu, 1, dzv, mat.NewVecDense(units, s.hPrev))
		floats.Add(l.b.grad, dz)

		dx := make([]float64, l.in)
		mat.NewVecDense(l.in, dx).MulVec(w.T(), dzv)
		mat.NewVecDense(units, dhNext).MulVec(u.T(), dzv)
		dxs[t] = dx
	}

	return dxs
}

// denseLayer projects a hidden vector to a single scalar.
type denseLayer struct {
	w *param
	b *param
}

func newDenseLayer(rng *rand.Rand, in int) *denseLayer {
	d := &denseLayer{w: newParam(in), b: newParam(1)}
	d.w.glorotUniform(rng, in, 1)
	return d
}

func (d *denseLayer) params() []*param {
	return []*param{d.w, d.b}
}

func (d *denseLayer) forward(h []float64) float64 {
	return d.b.val[0] + floats.Dot(d.w.val, h)
}

func (d *denseLayer) backward(h []float64, dy float64) []float64 {
	floats.AddScaled(d.w.grad, dy, h)
	d.b.grad[0] += dy
	return floats.ScaleTo(make([]float64, len(h)), dy, d.w.val)
}

// adam implements the Adam update rule.
type adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int
}

func (a *adam) step(params []*param) {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))
	for _, p := range params {
		for i, g := range p.grad {
			p.m[i] = a.beta1*p.m[i] + (1-a.beta1)*g
			p.v[i] = a.beta2*p.v[i] + (1-a.beta2)*g*g
			mHat := p.m[i] / bc1
			vHat := p.v[i] / bc2
			p.val[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
		p.zeroGrad()
	}
}
