package vicreg

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cuwacunu/tsiemene/internal/errctx"
)

// Loss computes a scalar loss and its gradients with respect to two views
// za, zb (shape [N,E], N the number of valid rows after masking).
type Loss interface {
	Compute(za, zb *mat.Dense) (value float64, gradA, gradB *mat.Dense)
}

type vicRegLoss struct {
	lambdaSim, lambdaStd, lambdaCov, stdTarget float64
}

// Compute implements the VICReg objective:
// L = λ_sim·MSE(za,zb) + λ_std·variance_term + λ_cov·covariance_term.
func (l *vicRegLoss) Compute(za, zb *mat.Dense) (float64, *mat.Dense, *mat.Dense) {
	n, e := za.Dims()
	if n == 0 {
		z := mat.NewDense(0, e, nil)
		return 0, z, mat.DenseCopyOf(z)
	}

	// Invariance (similarity) term: mean squared error between views.
	diff := mat.NewDense(n, e, nil)
	diff.Sub(za, zb)
	simLoss := 0.0
	for r := 0; r < n; r++ {
		for c := 0; c < e; c++ {
			d := diff.At(r, c)
			simLoss += d * d
		}
	}
	simLoss /= float64(n * e)

	gradSimA := mat.NewDense(n, e, nil)
	gradSimA.Scale(2.0/float64(n*e), diff)
	gradSimB := mat.NewDense(n, e, nil)
	gradSimB.Scale(-2.0/float64(n*e), diff)

	stdLossA, gradStdA := varianceTerm(za, l.stdTarget)
	stdLossB, gradStdB := varianceTerm(zb, l.stdTarget)
	stdLoss := stdLossA + stdLossB

	covLossA, gradCovA := covarianceTerm(za)
	covLossB, gradCovB := covarianceTerm(zb)
	covLoss := covLossA + covLossB

	total := l.lambdaSim*simLoss + l.lambdaStd*stdLoss + l.lambdaCov*covLoss

	gradA := mat.NewDense(n, e, nil)
	gradA.Scale(l.lambdaSim, gradSimA)
	gradA.Add(gradA, scaled(gradStdA, l.lambdaStd))
	gradA.Add(gradA, scaled(gradCovA, l.lambdaCov))

	gradB := mat.NewDense(n, e, nil)
	gradB.Scale(l.lambdaSim, gradSimB)
	gradB.Add(gradB, scaled(gradStdB, l.lambdaStd))
	gradB.Add(gradB, scaled(gradCovB, l.lambdaCov))

	return total, gradA, gradB
}

// varianceTerm penalizes each embedding dimension whose std falls below
// target, hinge-style: mean(ReLU(target - std_j)).
func varianceTerm(z *mat.Dense, target float64) (float64, *mat.Dense) {
	n, e := z.Dims()
	grad := mat.NewDense(n, e, nil)
	if n < 2 {
		return 0, grad
	}
	mean := make([]float64, e)
	for c := 0; c < e; c++ {
		sum := 0.0
		for r := 0; r < n; r++ {
			sum += z.At(r, c)
		}
		mean[c] = sum / float64(n)
	}
	variance := make([]float64, e)
	for c := 0; c < e; c++ {
		sum := 0.0
		for r := 0; r < n; r++ {
			d := z.At(r, c) - mean[c]
			sum += d * d
		}
		variance[c] = sum / float64(n-1)
	}
	loss := 0.0
	for c := 0; c < e; c++ {
		std := math.Sqrt(variance[c] + 1e-4)
		hinge := target - std
		if hinge <= 0 {
			continue
		}
		loss += hinge
		// d(hinge)/d(z_rc) = -d(std)/d(z_rc); std = sqrt(var+eps),
		// d(std)/d(z_rc) = (z_rc-mean_c) / ((n-1)*std).
		coeff := -1.0 / (float64(n-1) * std)
		for r := 0; r < n; r++ {
			grad.Set(r, c, coeff*(z.At(r, c)-mean[c]))
		}
	}
	loss /= float64(e)
	grad.Scale(1/float64(e), grad)
	return loss, grad
}

// covarianceTerm penalizes off-diagonal covariance between embedding
// dimensions: sum of squared off-diagonal entries of the covariance
// matrix, normalized by the embedding width.
func covarianceTerm(z *mat.Dense) (float64, *mat.Dense) {
	n, e := z.Dims()
	grad := mat.NewDense(n, e, nil)
	if n < 2 {
		return 0, grad
	}
	centered := mat.NewDense(n, e, nil)
	mean := make([]float64, e)
	for c := 0; c < e; c++ {
		sum := 0.0
		for r := 0; r < n; r++ {
			sum += z.At(r, c)
		}
		mean[c] = sum / float64(n)
	}
	for r := 0; r < n; r++ {
		for c := 0; c < e; c++ {
			centered.Set(r, c, z.At(r, c)-mean[c])
		}
	}

	cov := mat.NewDense(e, e, nil)
	cov.Mul(centered.T(), centered)
	cov.Scale(1/float64(n-1), cov)

	loss := 0.0
	for i := 0; i < e; i++ {
		for j := 0; j < e; j++ {
			if i == j {
				continue
			}
			loss += cov.At(i, j) * cov.At(i, j)
		}
	}
	loss /= float64(e)

	// grad wrt centered = (4/((n-1)*e)) * centered @ offDiagCov
	offDiag := mat.DenseCopyOf(cov)
	for i := 0; i < e; i++ {
		offDiag.Set(i, i, 0)
	}
	grad.Mul(centered, offDiag)
	grad.Scale(4.0/(float64(n-1)*float64(e)), grad)
	return loss, grad
}

type mseLoss struct {
	reduction string
}

func (l *mseLoss) Compute(za, zb *mat.Dense) (float64, *mat.Dense, *mat.Dense) {
	n, e := za.Dims()
	diff := mat.NewDense(n, e, nil)
	diff.Sub(za, zb)
	sum := 0.0
	for r := 0; r < n; r++ {
		for c := 0; c < e; c++ {
			d := diff.At(r, c)
			sum += d * d
		}
	}
	count := float64(n * e)
	value := sum
	scale := 2.0
	if l.reduction != "sum" {
		value = sum / count
		scale = 2.0 / count
	}
	gradA := mat.NewDense(n, e, nil)
	gradA.Scale(scale, diff)
	gradB := mat.NewDense(n, e, nil)
	gradB.Scale(-scale, diff)
	return value, gradA, gradB
}

type crossEntropyLoss struct {
	labelSmoothing float64
	reduction      string
}

// Compute treats za as logits and zb as a one-hot/soft target distribution
// of matching shape, matching the loss.CrossEntropy owner's options.
func (l *crossEntropyLoss) Compute(za, zb *mat.Dense) (float64, *mat.Dense, *mat.Dense) {
	n, e := za.Dims()
	gradA := mat.NewDense(n, e, nil)
	total := 0.0
	for r := 0; r < n; r++ {
		maxLogit := math.Inf(-1)
		for c := 0; c < e; c++ {
			if za.At(r, c) > maxLogit {
				maxLogit = za.At(r, c)
			}
		}
		sumExp := 0.0
		probs := make([]float64, e)
		for c := 0; c < e; c++ {
			p := math.Exp(za.At(r, c) - maxLogit)
			probs[c] = p
			sumExp += p
		}
		for c := 0; c < e; c++ {
			probs[c] /= sumExp
		}
		target := make([]float64, e)
		for c := 0; c < e; c++ {
			target[c] = zb.At(r, c)
		}
		if l.labelSmoothing > 0 {
			for c := range target {
				target[c] = target[c]*(1-l.labelSmoothing) + l.labelSmoothing/float64(e)
			}
		}
		rowLoss := 0.0
		for c := 0; c < e; c++ {
			if target[c] == 0 {
				continue
			}
			rowLoss -= target[c] * math.Log(probs[c]+1e-12)
		}
		total += rowLoss
		for c := 0; c < e; c++ {
			gradA.Set(r, c, probs[c]-target[c])
		}
	}
	if l.reduction != "sum" {
		total /= float64(n)
		gradA.Scale(1/float64(n), gradA)
	}
	return total, gradA, mat.NewDense(n, e, nil)
}

// BuildLoss constructs the concrete Loss named by spec.Type.
func BuildLoss(spec BuilderSpec) (Loss, error) {
	r := spec.Row
	switch spec.Type {
	case "VicReg":
		return &vicRegLoss{
			lambdaSim: r.OptionFloat("lambda_sim", 0),
			lambdaStd: r.OptionFloat("lambda_std", 0),
			lambdaCov: r.OptionFloat("lambda_cov", 0),
			stdTarget: r.OptionFloat("std_target", 1.0),
		}, nil
	case "MeanSquaredError":
		return &mseLoss{reduction: r.OptionString("reduction", "mean")}, nil
	case "CrossEntropy":
		return &crossEntropyLoss{
			labelSmoothing: r.OptionFloat("label_smoothing", 0),
			reduction:      r.OptionString("reduction", "mean"),
		}, nil
	default:
		return nil, errctx.New(errctx.CodeSchema, "unknown loss type %q", spec.Type)
	}
}
