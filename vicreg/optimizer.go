package vicreg

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// Optimizer updates a flat set of parameter matrices in place given their
// matching gradients, mirroring the original's
// "builder interface { build(params) -> unique_ptr<implementation> }" shape
// collapsed into a single stateful Go value built once per training run.
type Optimizer interface {
	Step(params, grads []*mat.Dense)
	LR() float64
	SetLR(lr float64)
}

type sgd struct {
	lr, momentum, weightDecay float64
	nesterov                  bool
	velocity                  []*mat.Dense
}

func (o *sgd) LR() float64     { return o.lr }
func (o *sgd) SetLR(lr float64) { o.lr = lr }

func (o *sgd) Step(params, grads []*mat.Dense) {
	if o.velocity == nil {
		o.velocity = make([]*mat.Dense, len(params))
	}
	for i, p := range params {
		g := grads[i]
		if o.weightDecay != 0 {
			g = addScaled(g, p, o.weightDecay)
		}
		if o.momentum != 0 {
			if o.velocity[i] == nil {
				o.velocity[i] = mat.DenseCopyOf(g)
			} else {
				o.velocity[i].Scale(o.momentum, o.velocity[i])
				o.velocity[i].Add(o.velocity[i], g)
			}
			if o.nesterov {
				g = addScaled(g, o.velocity[i], o.momentum)
			} else {
				g = o.velocity[i]
			}
		}
		p.Sub(p, scaled(g, o.lr))
	}
}

type adamLike struct {
	lr, beta1, beta2, eps, weightDecay float64
	decoupledDecay                     bool // true for AdamW
	t                                  int
	m, v                               []*mat.Dense
}

func (o *adamLike) LR() float64      { return o.lr }
func (o *adamLike) SetLR(lr float64) { o.lr = lr }

func (o *adamLike) Step(params, grads []*mat.Dense) {
	if o.m == nil {
		o.m = make([]*mat.Dense, len(params))
		o.v = make([]*mat.Dense, len(params))
	}
	o.t++
	b1c := 1 - math.Pow(o.beta1, float64(o.t))
	b2c := 1 - math.Pow(o.beta2, float64(o.t))
	for i, p := range params {
		g := grads[i]
		if o.weightDecay != 0 && !o.decoupledDecay {
			g = addScaled(g, p, o.weightDecay)
		}
		if o.m[i] == nil {
			rows, cols := g.Dims()
			o.m[i] = mat.NewDense(rows, cols, nil)
			o.v[i] = mat.NewDense(rows, cols, nil)
		}
		o.m[i].Scale(o.beta1, o.m[i])
		o.m[i].Add(o.m[i], scaled(g, 1-o.beta1))

		sq := mat.DenseCopyOf(g)
		sq.MulElem(sq, g)
		o.v[i].Scale(o.beta2, o.v[i])
		o.v[i].Add(o.v[i], scaled(sq, 1-o.beta2))

		mhat := scaled(o.m[i], 1/b1c)
		vhat := scaled(o.v[i], 1/b2c)
		rows, cols := vhat.Dims()
		step := mat.NewDense(rows, cols, nil)
		step.Apply(func(r, c int, v float64) float64 {
			return mhat.At(r, c) / (math.Sqrt(v) + o.eps)
		}, vhat)

		if o.decoupledDecay && o.weightDecay != 0 {
			p.Sub(p, scaled(p, o.lr*o.weightDecay))
		}
		p.Sub(p, scaled(step, o.lr))
	}
}

type rmsprop struct {
	lr, alpha, eps, momentum, weightDecay float64
	square, buf                           []*mat.Dense
}

func (o *rmsprop) LR() float64      { return o.lr }
func (o *rmsprop) SetLR(lr float64) { o.lr = lr }

func (o *rmsprop) Step(params, grads []*mat.Dense) {
	if o.square == nil {
		o.square = make([]*mat.Dense, len(params))
		o.buf = make([]*mat.Dense, len(params))
	}
	for i, p := range params {
		g := grads[i]
		if o.weightDecay != 0 {
			g = addScaled(g, p, o.weightDecay)
		}
		if o.square[i] == nil {
			rows, cols := g.Dims()
			o.square[i] = mat.NewDense(rows, cols, nil)
			o.buf[i] = mat.NewDense(rows, cols, nil)
		}
		sq := mat.DenseCopyOf(g)
		sq.MulElem(sq, g)
		o.square[i].Scale(o.alpha, o.square[i])
		o.square[i].Add(o.square[i], scaled(sq, 1-o.alpha))

		rows, cols := g.Dims()
		update := mat.NewDense(rows, cols, nil)
		update.Apply(func(r, c int, v float64) float64 {
			return g.At(r, c) / (math.Sqrt(v) + o.eps)
		}, o.square[i])

		if o.momentum != 0 {
			o.buf[i].Scale(o.momentum, o.buf[i])
			o.buf[i].Add(o.buf[i], update)
			update = o.buf[i]
		}
		p.Sub(p, scaled(update, o.lr))
	}
}

type adagrad struct {
	lr, lrDecay, weightDecay, eps float64
	t                             int
	sumSq                        []*mat.Dense
}

func (o *adagrad) LR() float64      { return o.lr }
func (o *adagrad) SetLR(lr float64) { o.lr = lr }

func (o *adagrad) Step(params, grads []*mat.Dense) {
	if o.sumSq == nil {
		o.sumSq = make([]*mat.Dense, len(params))
	}
	o.t++
	effLR := o.lr / (1 + float64(o.t-1)*o.lrDecay)
	for i, p := range params {
		g := grads[i]
		if o.weightDecay != 0 {
			g = addScaled(g, p, o.weightDecay)
		}
		if o.sumSq[i] == nil {
			rows, cols := g.Dims()
			o.sumSq[i] = mat.NewDense(rows, cols, nil)
		}
		sq := mat.DenseCopyOf(g)
		sq.MulElem(sq, g)
		o.sumSq[i].Add(o.sumSq[i], sq)

		rows, cols := g.Dims()
		update := mat.NewDense(rows, cols, nil)
		update.Apply(func(r, c int, v float64) float64 {
			return g.At(r, c) / (math.Sqrt(v) + o.eps)
		}, o.sumSq[i])
		p.Sub(p, scaled(update, effLR))
	}
}

// BuildOptimizer constructs the concrete Optimizer named by spec.Type using
// its row's options, the strict "require_options / to_<T>" reading style.
func BuildOptimizer(spec BuilderSpec) (Optimizer, error) {
	r := spec.Row
	// lr is a required key in every optimizer owner schema, so by the time
	// a row reaches here decode-time validation already guarantees its
	// presence; the zero default is unreachable in practice.
	switch spec.Type {
	case "SGD":
		return &sgd{
			lr:          r.OptionFloat("lr", 0),
			momentum:    r.OptionFloat("momentum", 0),
			weightDecay: r.OptionFloat("weight_decay", 0),
			nesterov:    r.OptionBool("nesterov", false),
		}, nil
	case "Adam":
		return &adamLike{
			lr:          r.OptionFloat("lr", 0),
			beta1:       r.OptionFloat("beta1", 0.9),
			beta2:       r.OptionFloat("beta2", 0.999),
			eps:         r.OptionFloat("eps", 1e-8),
			weightDecay: r.OptionFloat("weight_decay", 0),
		}, nil
	case "AdamW":
		return &adamLike{
			lr:             r.OptionFloat("lr", 0),
			beta1:          r.OptionFloat("beta1", 0.9),
			beta2:          r.OptionFloat("beta2", 0.999),
			eps:            r.OptionFloat("eps", 1e-8),
			weightDecay:    r.OptionFloat("weight_decay", 0.01),
			decoupledDecay: true,
		}, nil
	case "RMSprop":
		return &rmsprop{
			lr:          r.OptionFloat("lr", 0),
			alpha:       r.OptionFloat("alpha", 0.99),
			eps:         r.OptionFloat("eps", 1e-8),
			momentum:    r.OptionFloat("momentum", 0),
			weightDecay: r.OptionFloat("weight_decay", 0),
		}, nil
	case "Adagrad":
		return &adagrad{
			lr:          r.OptionFloat("lr", 0),
			lrDecay:     r.OptionFloat("lr_decay", 0),
			weightDecay: r.OptionFloat("weight_decay", 0),
			eps:         r.OptionFloat("eps", 1e-10),
		}, nil
	default:
		return nil, errctx.New(errctx.CodeSchema, "unknown optimizer type %q", spec.Type)
	}
}

func scaled(m *mat.Dense, s float64) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Scale(s, m)
	return out
}

func addScaled(a, b *mat.Dense, s float64) *mat.Dense {
	out := scaled(b, s)
	out.Add(out, a)
	return out
}
