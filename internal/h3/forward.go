package h3

import (
	"fmt"

	"github.com/samcharles93/hippo/internal/checkpoint"
	"github.com/samcharles93/hippo/internal/tensor"
)

// The forward path is a correctness-grade reference implementation: plain
// float32 loops, sequential token-by-token evaluation, SSM mixers run in
// their recurrent form and attention mixers with a per-session KV cache.
// There are deliberately no optimized kernels here.

// Forward runs the model over a token-id sequence and returns one logits row
// (padded-vocab wide) per input position.
func (m *Model) Forward(ids []int) ([][]float32, error) {
	s, err := m.newSession()
	if err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(ids))
	for _, id := range ids {
		logits, err := s.step(id)
		if err != nil {
			return nil, err
		}
		out = append(out, logits)
	}
	return out, nil
}

type session struct {
	m      *Model
	cfg    Config
	emb    tensor.Mat
	lmHead tensor.Mat
	blocks []blockWeights
	states []layerState

	finalNormW []float32
	finalNormB []float32

	// Scratch buffers reused across steps.
	x      []float32
	normed []float32
	mixed  []float32
	q      []float32
	k      []float32
	v      []float32
	u      []float32
	qkv    []float32
	inner  []float32
	scores []float32
}

type blockWeights struct {
	norm1W, norm1B []float32
	norm2W, norm2B []float32

	attn bool

	// SSM mixer.
	qProj, kProj, vProj    tensor.Mat
	qBias, kBias, vBias    []float32
	shiftKernel            tensor.Mat
	logA, ssmB, ssmC       tensor.Mat
	ssmD, logDt            []float32

	// Attention mixer.
	wqkv     tensor.Mat
	wqkvBias []float32

	outProj tensor.Mat
	outBias []float32

	fc1     tensor.Mat
	fc1Bias []float32
	fc2     tensor.Mat
	fc2Bias []float32
}

type layerState struct {
	// SSM layers: the last (state-1) k vectors, oldest first, and the
	// per-channel diagonal SSM state.
	shift []float32
	diag  []float32

	// Attention layers: cached key/value rows, one per position.
	cacheK [][]float32
	cacheV [][]float32
}

func (m *Model) newSession() (*session, error) {
	if !m.loaded {
		return nil, fmt.Errorf("model parameters not loaded")
	}
	cfg := m.cfg
	h := cfg.HiddenSize
	state := cfg.SSMStateSize

	s := &session{
		m:          m,
		cfg:        cfg,
		emb:        mat2(m.param(embeddingsKey)),
		lmHead:     mat2(m.param(lmHeadKey)),
		finalNormW: m.param(finalNormKey + ".weight").Data,
		finalNormB: m.param(finalNormKey + ".bias").Data,
		blocks:     make([]blockWeights, cfg.NumHiddenLayers),
		states:     make([]layerState, cfg.NumHiddenLayers),
		x:          make([]float32, h),
		normed:     make([]float32, h),
		mixed:      make([]float32, h),
		q:          make([]float32, h),
		k:          make([]float32, h),
		v:          make([]float32, h),
		u:          make([]float32, h),
		qkv:        make([]float32, 3*h),
		inner:      make([]float32, cfg.IntermediateSize()),
	}

	for i := 0; i < cfg.NumHiddenLayers; i++ {
		b := &s.blocks[i]
		b.norm1W = m.blockParam(i, "norm1.weight").Data
		b.norm1B = m.blockParam(i, "norm1.bias").Data
		b.norm2W = m.blockParam(i, "norm2.weight").Data
		b.norm2B = m.blockParam(i, "norm2.bias").Data
		b.fc1 = mat2(m.blockParam(i, "mlp.fc1.weight"))
		b.fc1Bias = m.blockParam(i, "mlp.fc1.bias").Data
		b.fc2 = mat2(m.blockParam(i, "mlp.fc2.weight"))
		b.fc2Bias = m.blockParam(i, "mlp.fc2.bias").Data
		b.outProj = mat2(m.blockParam(i, "mixer.out_proj.weight"))
		b.outBias = m.blockParam(i, "mixer.out_proj.bias").Data

		if cfg.IsAttnLayer(i) {
			b.attn = true
			b.wqkv = mat2(m.blockParam(i, "mixer.Wqkv.weight"))
			b.wqkvBias = m.blockParam(i, "mixer.Wqkv.bias").Data
		} else {
			b.qProj = mat2(m.blockParam(i, "mixer.q_proj.weight"))
			b.qBias = m.blockParam(i, "mixer.q_proj.bias").Data
			b.kProj = mat2(m.blockParam(i, "mixer.k_proj.weight"))
			b.kBias = m.blockParam(i, "mixer.k_proj.bias").Data
			b.vProj = mat2(m.blockParam(i, "mixer.v_proj.weight"))
			b.vBias = m.blockParam(i, "mixer.v_proj.bias").Data
			b.shiftKernel = mat2(m.blockParam(i, "mixer.ssm.shift_kernel"))
			b.logA = mat2(m.blockParam(i, "mixer.ssm.log_A"))
			b.ssmB = mat2(m.blockParam(i, "mixer.ssm.B"))
			b.ssmC = mat2(m.blockParam(i, "mixer.ssm.C"))
			b.ssmD = m.blockParam(i, "mixer.ssm.D").Data
			b.logDt = m.blockParam(i, "mixer.ssm.log_dt").Data

			s.states[i].shift = make([]float32, (state-1)*h)
			s.states[i].diag = make([]float32, h*state)
		}
	}
	return s, nil
}

func mat2(t *checkpoint.Tensor) tensor.Mat {
	return tensor.NewMatFromData(t.Shape[0], t.Shape[1], t.Data)
}

// step feeds one token and returns a fresh logits row for it.
func (s *session) step(id int) ([]float32, error) {
	cfg := s.cfg
	if id < 0 || id >= cfg.PaddedVocabSize() {
		return nil, fmt.Errorf("token id %d out of range [0,%d)", id, cfg.PaddedVocabSize())
	}
	copy(s.x, s.emb.Row(id))

	eps := float32(cfg.LayerNormEps)
	for i := range s.blocks {
		b := &s.blocks[i]

		tensor.LayerNorm(s.normed, s.x, b.norm1W, b.norm1B, eps)
		if b.attn {
			s.attention(b, &s.states[i])
		} else {
			s.ssmMixer(b, &s.states[i])
		}
		tensor.Add(s.x, s.mixed)

		tensor.LayerNorm(s.normed, s.x, b.norm2W, b.norm2B, eps)
		tensor.MatVecBias(s.inner, &b.fc1, s.normed, b.fc1Bias)
		for j := range s.inner {
			s.inner[j] = tensor.GELU(s.inner[j])
		}
		tensor.MatVecBias(s.mixed, &b.fc2, s.inner, b.fc2Bias)
		tensor.Add(s.x, s.mixed)
	}

	tensor.LayerNorm(s.normed, s.x, s.finalNormW, s.finalNormB, eps)
	logits := make([]float32, s.lmHead.R)
	tensor.MatVec(logits, &s.lmHead, s.normed)
	return logits, nil
}

// ssmMixer runs one recurrent step of the H3 mixer on s.normed, leaving the
// result in s.mixed: a shift SSM over k, a diagonal SSM over k·v, output
// gated by q.
func (s *session) ssmMixer(b *blockWeights, st *layerState) {
	h := s.cfg.HiddenSize
	n := s.cfg.SSMStateSize

	tensor.MatVecBias(s.q, &b.qProj, s.normed, b.qBias)
	tensor.MatVecBias(s.k, &b.kProj, s.normed, b.kBias)
	tensor.MatVecBias(s.v, &b.vProj, s.normed, b.vBias)

	// Shift SSM: causal depthwise convolution over the last n inputs of k.
	// shift holds the previous n-1 k vectors, oldest first; kernel tap n-1
	// multiplies the current input.
	for i := 0; i < h; i++ {
		row := b.shiftKernel.Row(i)
		var sum float32
		for j := 0; j < n-1; j++ {
			sum += row[j] * st.shift[j*h+i]
		}
		sum += row[n-1] * s.k[i]
		s.u[i] = sum * s.v[i]
	}
	if n > 1 {
		copy(st.shift, st.shift[h:])
		copy(st.shift[(n-2)*h:], s.k)
	}

	// Diagonal SSM over u, per channel, discretized with the channel's
	// learned step size.
	for i := 0; i < h; i++ {
		dt := expf(b.logDt[i])
		logA := b.logA.Row(i)
		bRow := b.ssmB.Row(i)
		cRow := b.ssmC.Row(i)
		state := st.diag[i*n : (i+1)*n]
		var y float32
		u := s.u[i]
		for j := 0; j < n; j++ {
			decay := expf(-expf(logA[j]) * dt)
			state[j] = decay*state[j] + dt*bRow[j]*u
			y += cRow[j] * state[j]
		}
		y += b.ssmD[i] * u
		s.u[i] = y * s.q[i]
	}

	tensor.MatVecBias(s.mixed, &b.outProj, s.u, b.outBias)
}

// attention runs one causal multi-head attention step on s.normed, leaving
// the result in s.mixed. H3 attention layers carry no positional encoding.
func (s *session) attention(b *blockWeights, st *layerState) {
	h := s.cfg.HiddenSize
	heads := s.cfg.NumAttentionHeads
	headDim := s.cfg.HeadDim()

	tensor.MatVecBias(s.qkv, &b.wqkv, s.normed, b.wqkvBias)
	q := s.qkv[:h]
	k := append([]float32(nil), s.qkv[h:2*h]...)
	v := append([]float32(nil), s.qkv[2*h:]...)
	st.cacheK = append(st.cacheK, k)
	st.cacheV = append(st.cacheV, v)

	pos := len(st.cacheK)
	if cap(s.scores) < pos {
		s.scores = make([]float32, pos)
	}
	scores := s.scores[:pos]

	scale := invSqrt(headDim)
	for hd := 0; hd < heads; hd++ {
		lo := hd * headDim
		hi := lo + headDim
		qh := q[lo:hi]
		for t := 0; t < pos; t++ {
			scores[t] = tensor.Dot(qh, st.cacheK[t][lo:hi]) * scale
		}
		tensor.Softmax(scores)
		out := s.u[lo:hi]
		for j := range out {
			out[j] = 0
		}
		for t := 0; t < pos; t++ {
			w := scores[t]
			vh := st.cacheV[t][lo:hi]
			for j := range out {
				out[j] += w * vh[j]
			}
		}
	}

	tensor.MatVecBias(s.mixed, &b.outProj, s.u, b.outBias)
}
