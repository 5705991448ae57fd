package nn

import (
	"math"
	"math/rand"

	"github.com/tabnet-ml/tabnet/internal/device"
	"github.com/tabnet-ml/tabnet/internal/tensor"
)

// lstmGate indexes the four LSTM parameter groups, in packing order.
const (
	gateForget = iota
	gateInput
	gateState
	gateOutput
	lstmGates
)

// lstmScratch records the per-step internals Forward produces and
// Backward replays.
type lstmScratch struct {
	gateComb [lstmGates]*tensor.Tensor // pre-activation per gate, [rows, neurons]
	gateAct  [lstmGates]*tensor.Tensor // post-activation per gate
	cell     *tensor.Tensor            // cell state per step
}

// LSTM is a long short-term memory layer. Like Recurrent, batch rows are
// time steps and the hidden and cell states reset every timesteps rows.
//
// Each of the four gates (forget, input, state, output, in that order)
// owns a bias vector [neurons], input weights [inputs, neurons] and
// recurrent weights [neurons, neurons]; parameters pack gate by gate in
// that block order.
type LSTM struct {
	inputs    int
	neurons   int
	timesteps int

	biases    [lstmGates]*tensor.Tensor // [neurons]
	weights   [lstmGates]*tensor.Tensor // [inputs, neurons]
	recurrent [lstmGates]*tensor.Tensor // [neurons, neurons]

	activation          Activation // state candidate and cell output
	recurrentActivation Activation // the three sigmoid gates
}

// NewLSTM creates an LSTM layer with tanh state activation and logistic
// gate activation.
func NewLSTM(inputs, neurons, timesteps int, rng *rand.Rand) *LSTM {
	if timesteps < 1 {
		timesteps = 1
	}
	l := &LSTM{
		inputs:              inputs,
		neurons:             neurons,
		timesteps:           timesteps,
		activation:          HyperbolicTangent,
		recurrentActivation: Logistic,
	}
	limit := math.Sqrt(6.0 / float64(inputs+neurons))
	rlimit := math.Sqrt(6.0 / float64(2*neurons))
	for g := 0; g < lstmGates; g++ {
		l.biases[g] = tensor.New(tensor.Shape{neurons})
		l.weights[g] = tensor.RandUniform(tensor.Shape{inputs, neurons}, -limit, limit, rng)
		l.recurrent[g] = tensor.RandUniform(tensor.Shape{neurons, neurons}, -rlimit, rlimit, rng)
	}
	// Positive forget bias keeps early cell states alive.
	l.biases[gateForget].Fill(1)
	return l
}

// Activation returns the state activation function.
func (l *LSTM) Activation() Activation { return l.activation }

// SetActivation changes the state activation function.
func (l *LSTM) SetActivation(a Activation) { l.activation = a }

// RecurrentActivation returns the gate activation function.
func (l *LSTM) RecurrentActivation() Activation { return l.recurrentActivation }

// Timesteps returns the window length after which the states reset.
func (l *LSTM) Timesteps() int { return l.timesteps }

func (l *LSTM) Kind() Kind                { return LongShortTermMemoryKind }
func (l *LSTM) InputShape() tensor.Shape  { return tensor.Shape{l.inputs} }
func (l *LSTM) OutputShape() tensor.Shape { return tensor.Shape{l.neurons} }

// gateParamCount is the size of one gate's parameter block.
func (l *LSTM) gateParamCount() int {
	return l.neurons + l.inputs*l.neurons + l.neurons*l.neurons
}

func (l *LSTM) ParameterCount() int {
	return lstmGates * l.gateParamCount()
}

func (l *LSTM) PackParameters(dst []float64) {
	checkParamLen(LongShortTermMemoryKind, len(dst), l.ParameterCount())
	n := l.neurons
	w := l.inputs * l.neurons
	for g := 0; g < lstmGates; g++ {
		block := dst[g*l.gateParamCount() : (g+1)*l.gateParamCount()]
		copy(block[:n], l.biases[g].Data())
		copy(block[n:n+w], l.weights[g].Data())
		copy(block[n+w:], l.recurrent[g].Data())
	}
}

func (l *LSTM) UnpackParameters(src []float64) {
	checkParamLen(LongShortTermMemoryKind, len(src), l.ParameterCount())
	n := l.neurons
	w := l.inputs * l.neurons
	for g := 0; g < lstmGates; g++ {
		block := src[g*l.gateParamCount() : (g+1)*l.gateParamCount()]
		copy(l.biases[g].Data(), block[:n])
		copy(l.weights[g].Data(), block[n:n+w])
		copy(l.recurrent[g].Data(), block[n+w:])
	}
}

// gateActivation returns the activation used by gate g.
func (l *LSTM) gateActivation(g int) Activation {
	if g == gateState {
		return l.activation
	}
	return l.recurrentActivation
}

func (l *LSTM) Forward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded) {
	checkBatchShape(LongShortTermMemoryKind, inputs, l.InputShape())
	rows := inputs.Shape()[0]
	n := l.neurons

	scratch := &lstmScratch{cell: tensor.New(tensor.Shape{rows, n})}
	for g := 0; g < lstmGates; g++ {
		scratch.gateComb[g] = tensor.New(tensor.Shape{rows, n})
		scratch.gateAct[g] = tensor.New(tensor.Shape{rows, n})
	}
	combinations := tensor.New(tensor.Shape{rows, n})
	activations := tensor.New(tensor.Shape{rows, n})

	windows := (rows + l.timesteps - 1) / l.timesteps
	dev.For(windows, func(w int) {
		start := w * l.timesteps
		end := start + l.timesteps
		if end > rows {
			end = rows
		}
		var hidden, cellPrev []float64
		for t := start; t < end; t++ {
			x := inputs.Row(t)
			for g := 0; g < lstmGates; g++ {
				comb := scratch.gateComb[g].Row(t)
				act := scratch.gateAct[g].Row(t)
				fn := l.gateActivation(g)
				for j := 0; j < n; j++ {
					sum := l.biases[g].At(j)
					for k := 0; k < l.inputs; k++ {
						sum += x[k] * l.weights[g].At(k, j)
					}
					if hidden != nil {
						for k := 0; k < n; k++ {
							sum += hidden[k] * l.recurrent[g].At(k, j)
						}
					}
					comb[j] = sum
					act[j] = fn.Apply(sum)
				}
			}

			cell := scratch.cell.Row(t)
			comb := combinations.Row(t)
			h := activations.Row(t)
			f := scratch.gateAct[gateForget].Row(t)
			in := scratch.gateAct[gateInput].Row(t)
			g := scratch.gateAct[gateState].Row(t)
			o := scratch.gateAct[gateOutput].Row(t)
			for j := 0; j < n; j++ {
				c := in[j] * g[j]
				if cellPrev != nil {
					c += f[j] * cellPrev[j]
				}
				cell[j] = c
				comb[j] = c
				h[j] = o[j] * l.activation.Apply(c)
			}
			hidden = h
			cellPrev = cell
		}
	})

	fwd.Combinations = combinations
	fwd.Activations = activations
	fwd.scratch = scratch
}

func (l *LSTM) Backward(dev *device.Device, inputs *tensor.Tensor, fwd *Forwarded, upstream, downstream *tensor.Tensor, paramGrad []float64) {
	checkParamLen(LongShortTermMemoryKind, len(paramGrad), l.ParameterCount())
	scratch, ok := fwd.scratch.(*lstmScratch)
	if !ok {
		panic("nn: LSTM backward without matching forward state")
	}
	rows := upstream.Shape()[0]
	n := l.neurons
	for i := range paramGrad {
		paramGrad[i] = 0
	}

	gateGrad := func(g int) (bias, weight, recurrent []float64) {
		block := paramGrad[g*l.gateParamCount() : (g+1)*l.gateParamCount()]
		return block[:n], block[n : n+l.inputs*n], block[n+l.inputs*n:]
	}

	dh := make([]float64, n)
	dc := make([]float64, n)
	dcNext := make([]float64, n)
	dGate := make([][]float64, lstmGates)
	dGateNext := make([][]float64, lstmGates)
	for g := 0; g < lstmGates; g++ {
		dGate[g] = make([]float64, n)
		dGateNext[g] = make([]float64, n)
	}

	windows := (rows + l.timesteps - 1) / l.timesteps
	for w := 0; w < windows; w++ {
		start := w * l.timesteps
		end := start + l.timesteps
		if end > rows {
			end = rows
		}
		for j := 0; j < n; j++ {
			dcNext[j] = 0
			for g := 0; g < lstmGates; g++ {
				dGateNext[g][j] = 0
			}
		}
		for t := end - 1; t >= start; t-- {
			up := upstream.Row(t)
			x := inputs.Row(t)
			cell := scratch.cell.Row(t)
			f := scratch.gateAct[gateForget].Row(t)
			in := scratch.gateAct[gateInput].Row(t)
			g := scratch.gateAct[gateState].Row(t)
			o := scratch.gateAct[gateOutput].Row(t)

			// dh_t = upstream_t + Σ_gates U_g · dgate_{t+1}
			for j := 0; j < n; j++ {
				sum := up[j]
				for gi := 0; gi < lstmGates; gi++ {
					next := dGateNext[gi]
					for k := 0; k < n; k++ {
						sum += l.recurrent[gi].At(j, k) * next[k]
					}
				}
				dh[j] = sum
			}

			// Split dh into the cell and output-gate paths; add the cell
			// gradient flowing in from step t+1 through the forget gate.
			for j := 0; j < n; j++ {
				tanhC := l.activation.Apply(cell[j])
				dc[j] = dh[j]*o[j]*l.activation.Derivative(cell[j]) + dcNext[j]
				dGate[gateOutput][j] = dh[j] * tanhC * l.gateActivation(gateOutput).Derivative(scratch.gateComb[gateOutput].At(t, j))
			}
			for j := 0; j < n; j++ {
				var cellPrev float64
				if t > start {
					cellPrev = scratch.cell.At(t-1, j)
				}
				dGate[gateForget][j] = dc[j] * cellPrev * l.gateActivation(gateForget).Derivative(scratch.gateComb[gateForget].At(t, j))
				dGate[gateInput][j] = dc[j] * g[j] * l.gateActivation(gateInput).Derivative(scratch.gateComb[gateInput].At(t, j))
				dGate[gateState][j] = dc[j] * in[j] * l.gateActivation(gateState).Derivative(scratch.gateComb[gateState].At(t, j))
				dcNext[j] = dc[j] * f[j]
			}

			dst := downstream.Row(t)
			for k := 0; k < l.inputs; k++ {
				dst[k] = 0
			}
			for gi := 0; gi < lstmGates; gi++ {
				bias, weight, recurrentG := gateGrad(gi)
				dg := dGate[gi]
				for j := 0; j < n; j++ {
					bias[j] += dg[j]
				}
				for k := 0; k < l.inputs; k++ {
					for j := 0; j < n; j++ {
						weight[k*n+j] += x[k] * dg[j]
					}
					sum := 0.0
					for j := 0; j < n; j++ {
						sum += l.weights[gi].At(k, j) * dg[j]
					}
					dst[k] += sum
				}
				if t > start {
					prev := fwd.Activations.Row(t - 1)
					for k := 0; k < n; k++ {
						for j := 0; j < n; j++ {
							recurrentG[k*n+j] += prev[k] * dg[j]
						}
					}
				}
				copy(dGateNext[gi], dg)
			}
		}
	}
}
