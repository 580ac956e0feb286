package optim

import (
	"fmt"
	"math"

	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/tensor"
)

// Adam implements Adaptive Moment Estimation (Kingma & Ba, 2014).
//
// Per element:
//
//	m = beta1*m + (1-beta1)*g
//	v = beta2*v + (1-beta2)*g²
//	mHat = m / (1 - beta1^t)
//	vHat = v / (1 - beta2^t)
//	param -= lr * mHat / (sqrt(vHat) + eps)
//
// The bias correction compensates for the moments starting at zero, which
// otherwise shrinks early updates.
type Adam[B tensor.Backend] struct {
	params  []*nn.Parameter[B]
	lr      float32
	beta1   float32
	beta2   float32
	eps     float32
	t       int
	m       map[*nn.Parameter[B]]*tensor.Tensor[float32, B]
	v       map[*nn.Parameter[B]]*tensor.Tensor[float32, B]
	backend B
}

// AdamConfig configures an Adam optimizer. Zero values take the standard
// defaults: LR 0.001, betas (0.9, 0.999), eps 1e-8.
type AdamConfig struct {
	LR    float32
	Betas [2]float32
	Eps   float32
}

// NewAdam creates an Adam optimizer over params.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		m:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		v:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		backend: backend,
	}
}

// Step applies one Adam update. Parameters without a gradient are skipped.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++
	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		param.SetGrad(tensor.New[float32, B](grad, a.backend))

		m, ok := a.m[param]
		if !ok {
			m = tensor.Zeros[float32, B](param.Tensor().Shape(), a.backend)
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = tensor.Zeros[float32, B](param.Tensor().Shape(), a.backend)
			a.v[param] = v
		}

		paramData := param.Tensor().Data()
		gradData := grad.AsFloat32()
		mData := m.Data()
		vData := v.Data()

		for i := range paramData {
			g := gradData[i]
			mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
			vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

			mHat := mData[i] / biasCorrection1
			vHat := vData[i] / biasCorrection2

			paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
}

// ZeroGrad clears gradients on all parameters.
func (a *Adam[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate, for schedules.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// Timestep returns the number of steps taken, which drives bias correction.
func (a *Adam[B]) Timestep() int {
	return a.t
}

// StateDict exports the moment buffers as "m.{index}" / "v.{index}" plus
// the timestep as a single-element int64 tensor under "t". Resuming
// without the timestep would restart bias correction and spike the first
// updates.
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)

	for i, param := range a.params {
		if m, ok := a.m[param]; ok {
			state[fmt.Sprintf("m.%d", i)] = m.Raw()
		}
		if v, ok := a.v[param]; ok {
			state[fmt.Sprintf("v.%d", i)] = v.Raw()
		}
	}

	if a.t > 0 {
		tRaw, err := tensor.NewRaw(tensor.Shape{1}, tensor.Int64, a.backend.Device())
		if err != nil {
			panic(err)
		}
		tRaw.AsInt64()[0] = int64(a.t)
		state["t"] = tRaw
	}

	return state
}

// LoadStateDict restores moment buffers and the timestep. Shape
// mismatches are rejected before any buffer is replaced.
func (a *Adam[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	for i, param := range a.params {
		for _, prefix := range []string{"m", "v"} {
			raw, ok := state[fmt.Sprintf("%s.%d", prefix, i)]
			if !ok {
				continue
			}
			if !raw.Shape().Equal(param.Tensor().Shape()) {
				return fmt.Errorf("adam: %s.%d has shape %v, parameter has %v",
					prefix, i, raw.Shape(), param.Tensor().Shape())
			}
		}
	}

	loadedM := make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B])
	loadedV := make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B])
	for i, param := range a.params {
		if raw, ok := state[fmt.Sprintf("m.%d", i)]; ok {
			loadedM[param] = tensor.New[float32, B](raw, a.backend)
		}
		if raw, ok := state[fmt.Sprintf("v.%d", i)]; ok {
			loadedV[param] = tensor.New[float32, B](raw, a.backend)
		}
	}

	a.m = loadedM
	a.v = loadedV

	if tRaw, ok := state["t"]; ok {
		if tRaw.DType() != tensor.Int64 || tRaw.NumElements() != 1 {
			return fmt.Errorf("adam: timestep entry must be a single int64, got %s %v", tRaw.DType(), tRaw.Shape())
		}
		a.t = int(tRaw.AsInt64()[0])
	}

	return nil
}
