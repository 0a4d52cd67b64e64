// Package optim holds model parameters together with their gradient buffers
// and the optimizers that update them.
package optim

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrUnknownOptimizer is returned by New for unregistered names.
	ErrUnknownOptimizer = errors.New("optim: unknown optimizer")

	// ErrInvalidLearningRate is returned for non-positive learning rates.
	ErrInvalidLearningRate = errors.New("optim: learning rate must be positive")
)

// Parameter is a trainable matrix and its accumulated gradient.
type Parameter struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// NewParameter allocates a zero rows x cols parameter.
func NewParameter(name string, rows, cols int) *Parameter {
	return &Parameter{
		Name:  name,
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// values and grads expose the contiguous backing arrays. Parameters are
// always allocated by NewParameter, so stride equals cols.
func (p *Parameter) values() []float64 { return p.Value.RawMatrix().Data }
func (p *Parameter) grads() []float64  { return p.Grad.RawMatrix().Data }

// Optimizer updates a fixed set of parameters from their gradients.
type Optimizer interface {
	// ZeroGrad clears every gradient buffer.
	ZeroGrad()
	// Step applies one update.
	Step()
	LearningRate() float64
}

// Spec names an optimizer and its learning rate.
type Spec struct {
	Name         string  `koanf:"name"`
	LearningRate float64 `koanf:"learning_rate"`
	WeightDecay  float64 `koanf:"weight_decay"`
}

// New builds the optimizer named by spec over params.
func New(spec Spec, params []*Parameter) (Optimizer, error) {
	if spec.LearningRate <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLearningRate, spec.LearningRate)
	}
	switch strings.ToLower(spec.Name) {
	case "", "sgd":
		return NewSGD(params, spec.LearningRate, spec.WeightDecay), nil
	case "adagrad":
		return NewAdagrad(params, spec.LearningRate), nil
	case "adam":
		return NewAdam(params, spec.LearningRate), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOptimizer, spec.Name)
	}
}

type base struct {
	params []*Parameter
	lr     float64
}

func (b *base) ZeroGrad() {
	for _, p := range b.params {
		p.Grad.Zero()
	}
}

func (b *base) LearningRate() float64 { return b.lr }

// SGD is plain gradient descent with optional L2 weight decay.
type SGD struct {
	base
	weightDecay float64
}

func NewSGD(params []*Parameter, lr, weightDecay float64) *SGD {
	return &SGD{base: base{params: params, lr: lr}, weightDecay: weightDecay}
}

func (o *SGD) Step() {
	for _, p := range o.params {
		v := p.values()
		if o.weightDecay > 0 {
			floats.Scale(1-o.lr*o.weightDecay, v)
		}
		floats.AddScaled(v, -o.lr, p.grads())
	}
}

// Adagrad scales every coordinate by its accumulated squared gradient.
type Adagrad struct {
	base
	eps   float64
	accum [][]float64
}

func NewAdagrad(params []*Parameter, lr float64) *Adagrad {
	accum := make([][]float64, len(params))
	for i, p := range params {
		accum[i] = make([]float64, len(p.values()))
	}
	return &Adagrad{base: base{params: params, lr: lr}, eps: 1e-10, accum: accum}
}

func (o *Adagrad) Step() {
	for i, p := range o.params {
		v, g, acc := p.values(), p.grads(), o.accum[i]
		for j := range v {
			acc[j] += g[j] * g[j]
			v[j] -= o.lr * g[j] / (math.Sqrt(acc[j]) + o.eps)
		}
	}
}

// Adam keeps bias-corrected first and second moment estimates.
type Adam struct {
	base
	beta1, beta2, eps float64
	step              int
	m, v              [][]float64
}

func NewAdam(params []*Parameter, lr float64) *Adam {
	m := make([][]float64, len(params))
	v := make([][]float64, len(params))
	for i, p := range params {
		m[i] = make([]float64, len(p.values()))
		v[i] = make([]float64, len(p.values()))
	}
	return &Adam{
		base:  base{params: params, lr: lr},
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     m,
		v:     v,
	}
}

func (o *Adam) Step() {
	o.step++
	c1 := 1 - math.Pow(o.beta1, float64(o.step))
	c2 := 1 - math.Pow(o.beta2, float64(o.step))
	for i, p := range o.params {
		val, g := p.values(), p.grads()
		m, v := o.m[i], o.v[i]
		for j := range val {
			m[j] = o.beta1*m[j] + (1-o.beta1)*g[j]
			v[j] = o.beta2*v[j] + (1-o.beta2)*g[j]*g[j]
			val[j] -= o.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + o.eps)
		}
	}
}
