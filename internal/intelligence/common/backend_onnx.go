package common

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"

	logging "github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

// ---------------------------------------------------------------------------
// ONNXBackend
// ---------------------------------------------------------------------------

// ONNXBackendConfig configures an in-process ONNX tagger session.
type ONNXBackendConfig struct {
	// ModelPath points at the exported .onnx model file.
	ModelPath string `json:"model_path" yaml:"model_path"`

	// TokenizerPath points at the HuggingFace tokenizer.json file.
	TokenizerPath string `json:"tokenizer_path" yaml:"tokenizer_path"`

	// LibraryPath optionally points at the onnxruntime shared library.
	LibraryPath string `json:"library_path" yaml:"library_path"`

	// ModelVersion labels responses, e.g. "medner-it-1.2".
	ModelVersion string `json:"model_version" yaml:"model_version"`

	// MaxSeqLen bounds the subword sequence length per window, including
	// the two special tokens.
	MaxSeqLen int `json:"max_seq_len" yaml:"max_seq_len"`

	// OverlapWords is the number of words shared by consecutive windows.
	OverlapWords int `json:"overlap_words" yaml:"overlap_words"`

	// InputNames are the model graph inputs. A third name, when present,
	// is fed an all-zero token-type tensor.
	InputNames []string `json:"input_names" yaml:"input_names"`

	// OutputNames are the model graph outputs, logits first.
	OutputNames []string `json:"output_names" yaml:"output_names"`

	// ClsToken and SepToken are the special tokens framing each window.
	ClsToken string `json:"cls_token" yaml:"cls_token"`
	SepToken string `json:"sep_token" yaml:"sep_token"`
}

const (
	defaultMaxSeqLen    = 256
	defaultOverlapWords = 16
)

func (c *ONNXBackendConfig) applyDefaults() {
	if c.MaxSeqLen <= 2 {
		c.MaxSeqLen = defaultMaxSeqLen
	}
	if c.OverlapWords < 0 {
		c.OverlapWords = defaultOverlapWords
	}
	if len(c.InputNames) == 0 {
		c.InputNames = []string{"input_ids", "attention_mask"}
	}
	if len(c.OutputNames) == 0 {
		c.OutputNames = []string{"logits"}
	}
	if c.ClsToken == "" {
		c.ClsToken = "[CLS]"
	}
	if c.SepToken == "" {
		c.SepToken = "[SEP]"
	}
	if c.ModelVersion == "" {
		c.ModelVersion = "onnx"
	}
}

// onnxBackend implements ModelBackend with an in-process onnxruntime session
// and a HuggingFace tokenizer. Input words are encoded individually so that
// subword rows can be pooled back to exactly one emission row per word.
type onnxBackend struct {
	cfg     ONNXBackendConfig
	session *ort.DynamicAdvancedSession
	tok     *tokenizer.Tokenizer
	clsID   int64
	sepID   int64
	logger  logging.Logger

	// The tokenizer is not guaranteed safe for concurrent encoding.
	encodeMu sync.Mutex

	closed atomic.Bool
}

// NewONNXBackend loads the tokenizer and model session. Any failure here is
// a construction-time resource failure and is returned as a fatal error.
func NewONNXBackend(cfg ONNXBackendConfig, logger logging.Logger) (ModelBackend, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("onnx-backend")

	if cfg.ModelPath == "" {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "onnx backend model_path is required")
	}
	if cfg.TokenizerPath == "" {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "onnx backend tokenizer_path is required")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeModelLoadFailed, fmt.Sprintf("model file %q", cfg.ModelPath))
	}
	if _, err := os.Stat(cfg.TokenizerPath); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTokenizerLoadFailed, fmt.Sprintf("tokenizer file %q", cfg.TokenizerPath))
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeModelLoadFailed, "initialize onnxruntime environment")
		}
	}

	tok, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTokenizerLoadFailed, fmt.Sprintf("load tokenizer %q", cfg.TokenizerPath))
	}

	clsID, ok := tok.TokenToId(cfg.ClsToken)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeTokenizerLoadFailed,
			fmt.Sprintf("tokenizer vocabulary is missing %q", cfg.ClsToken))
	}
	sepID, ok := tok.TokenToId(cfg.SepToken)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeTokenizerLoadFailed,
			fmt.Sprintf("tokenizer vocabulary is missing %q", cfg.SepToken))
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, cfg.InputNames, cfg.OutputNames, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeModelLoadFailed, fmt.Sprintf("create session for %q", cfg.ModelPath))
	}

	logger.Info("onnx backend ready",
		logging.String("model", cfg.ModelPath),
		logging.String("version", cfg.ModelVersion),
		logging.Int("max_seq_len", cfg.MaxSeqLen),
	)

	return &onnxBackend{
		cfg:     cfg,
		session: session,
		tok:     tok,
		clsID:   int64(clsID),
		sepID:   int64(sepID),
		logger:  logger,
	}, nil
}

// ---------------------------------------------------------------------------
// ModelBackend implementation
// ---------------------------------------------------------------------------

func (b *onnxBackend) Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error) {
	if b.closed.Load() {
		return nil, apperrors.New(apperrors.ErrCodeModelNotReady, "onnx backend is closed")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	words, err := DecodeTokenList(req.InputData)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "decode token list")
	}

	variant := req.Variant
	if variant == "" {
		variant = VariantSimple
	}

	emissions, err := b.tagWords(ctx, words, variant)
	if err != nil {
		return nil, err
	}

	return &PredictResponse{
		ModelName:       req.ModelName,
		ModelVersion:    b.cfg.ModelVersion,
		Variant:         variant,
		Outputs:         map[string]interface{}{OutputEmission: emissions},
		InferenceTimeMs: msSince(start),
	}, nil
}

// tagWords produces one emission row per input word. Long inputs are split
// into overlapping windows; each word keeps the row from the window where it
// sits farthest from an edge.
func (b *onnxBackend) tagWords(ctx context.Context, words []string, variant string) ([][]float64, error) {
	numWords := len(words)
	if numWords == 0 {
		return [][]float64{}, nil
	}

	wordSubs, err := b.encodeWords(words)
	if err != nil {
		return nil, err
	}

	budget := b.cfg.MaxSeqLen - 2
	subCounts := make([]int, numWords)
	for i, subs := range wordSubs {
		n := len(subs)
		if n > budget {
			// A single word longer than a whole window is truncated.
			wordSubs[i] = subs[:budget]
			n = budget
		}
		subCounts[i] = n
	}

	windows := planWindows(subCounts, budget, b.cfg.OverlapWords)

	merged := make([][]float64, numWords)
	bestDist := make([]int, numWords)
	for i := range bestDist {
		bestDist[i] = -1
	}

	for _, win := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := b.runWindow(wordSubs[win[0]:win[1]], variant)
		if err != nil {
			return nil, err
		}
		for j := win[0]; j < win[1]; j++ {
			dist := j - win[0]
			if d := win[1] - 1 - j; d < dist {
				dist = d
			}
			if dist > bestDist[j] {
				merged[j] = rows[j-win[0]]
				bestDist[j] = dist
			}
		}
	}

	// Words the tokenizer could not encode get an outside row.
	for i, row := range merged {
		if row == nil {
			merged[i] = outsideRow()
		}
	}
	return merged, nil
}

// encodeWords encodes each word separately so word boundaries survive
// subword tokenization exactly.
func (b *onnxBackend) encodeWords(words []string) ([][]int64, error) {
	b.encodeMu.Lock()
	defer b.encodeMu.Unlock()

	out := make([][]int64, len(words))
	for i, w := range words {
		en, err := b.tok.EncodeSingle(w, false)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeTokenizerEncodeFailed, fmt.Sprintf("encode word %d", i))
		}
		ids := make([]int64, len(en.Ids))
		for j, id := range en.Ids {
			ids[j] = int64(id)
		}
		out[i] = ids
	}
	return out, nil
}

// runWindow runs one model pass over the given words and pools the subword
// probability rows back to one row per word.
func (b *onnxBackend) runWindow(wordSubs [][]int64, variant string) ([][]float64, error) {
	ids := make([]int64, 0, b.cfg.MaxSeqLen)
	ids = append(ids, b.clsID)

	// wordPos[i] is the index of word i's first subword within ids.
	wordPos := make([]int, len(wordSubs))
	for i, subs := range wordSubs {
		wordPos[i] = len(ids)
		ids = append(ids, subs...)
	}
	ids = append(ids, b.sepID)

	seqLen := len(ids)
	mask := make([]int64, seqLen)
	for i := range mask {
		mask[i] = 1
	}

	shape := ort.NewShape(1, int64(seqLen))
	idTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInferenceFailed, "create input_ids tensor")
	}
	defer idTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInferenceFailed, "create attention_mask tensor")
	}
	defer maskTensor.Destroy()

	inputs := []ort.Value{idTensor, maskTensor}
	if len(b.cfg.InputNames) > 2 {
		typeTensor, err := ort.NewTensor(shape, make([]int64, seqLen))
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInferenceFailed, "create token_type_ids tensor")
		}
		defer typeTensor.Destroy()
		inputs = append(inputs, typeTensor)
	}

	outputs := make([]ort.Value, len(b.cfg.OutputNames))
	if err := b.session.Run(inputs, outputs); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInferenceFailed, "run onnx session")
	}
	for _, out := range outputs {
		if out != nil {
			defer out.Destroy()
		}
	}

	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeInferenceFailed, "logits output is not a float32 tensor")
	}

	outShape := logits.GetShape()
	if len(outShape) != 3 || int(outShape[1]) != seqLen {
		return nil, apperrors.New(apperrors.ErrCodeInferenceFailed,
			fmt.Sprintf("unexpected logits shape %v for sequence length %d", outShape, seqLen))
	}
	numLabels := int(outShape[2])
	if numLabels != len(EmissionLabels) {
		return nil, apperrors.New(apperrors.ErrCodeInferenceFailed,
			fmt.Sprintf("model emits %d labels, expected %d", numLabels, len(EmissionLabels)))
	}

	data := logits.GetData()

	// Per-subword softmax.
	probs := make([][]float64, seqLen)
	for s := 0; s < seqLen; s++ {
		probs[s] = softmaxFloat32(data[s*numLabels : (s+1)*numLabels])
	}

	rows := make([][]float64, len(wordSubs))
	for i, subs := range wordSubs {
		start := wordPos[i]
		rows[i] = poolSubwordRows(probs[start:start+len(subs)], variant)
	}
	return rows, nil
}

// Healthy implements ModelBackend.
func (b *onnxBackend) Healthy(_ context.Context) error {
	if b.closed.Load() {
		return apperrors.New(apperrors.ErrCodeModelNotReady, "onnx backend is closed")
	}
	return nil
}

// Close implements ModelBackend. The shared onnxruntime environment stays up
// for other sessions.
func (b *onnxBackend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	if b.session != nil {
		if err := b.session.Destroy(); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "destroy onnx session")
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Pure helpers
// ---------------------------------------------------------------------------

// planWindows splits a word sequence into [start,end) ranges whose total
// subword count fits the budget. Consecutive windows share up to overlap
// words; every window advances by at least one word.
func planWindows(subCounts []int, budget, overlap int) [][2]int {
	n := len(subCounts)
	if n == 0 {
		return nil
	}

	var windows [][2]int
	start := 0
	for start < n {
		used := 0
		end := start
		for end < n {
			c := subCounts[end]
			if used+c > budget && end > start {
				break
			}
			used += c
			end++
		}
		windows = append(windows, [2]int{start, end})
		if end >= n {
			break
		}
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return windows
}

// softmaxFloat32 converts a logits row to probabilities, shifting by the max
// for numerical stability.
func softmaxFloat32(logits []float32) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxLogit))
		out[i] = e
		sum += e
	}
	if sum == 0 {
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// poolSubwordRows reduces the probability rows of one word's subwords to a
// single row according to the aggregation variant. "max" takes the
// element-wise maximum renormalized to sum 1, "average" the element-wise
// mean, everything else the first subword's row.
func poolSubwordRows(rows [][]float64, variant string) []float64 {
	if len(rows) == 0 {
		return outsideRow()
	}
	if len(rows) == 1 {
		return rows[0]
	}

	switch variant {
	case VariantMax:
		out := make([]float64, len(rows[0]))
		copy(out, rows[0])
		for _, row := range rows[1:] {
			for i, v := range row {
				if v > out[i] {
					out[i] = v
				}
			}
		}
		var sum float64
		for _, v := range out {
			sum += v
		}
		if sum > 0 {
			for i := range out {
				out[i] /= sum
			}
		}
		return out

	case VariantAverage:
		out := make([]float64, len(rows[0]))
		for _, row := range rows {
			for i, v := range row {
				out[i] += v
			}
		}
		for i := range out {
			out[i] /= float64(len(rows))
		}
		return out

	default:
		// simple and first both keep the first subword's row.
		return rows[0]
	}
}

// outsideRow is a one-hot distribution on the outside label.
func outsideRow() []float64 {
	row := make([]float64, len(EmissionLabels))
	row[0] = 1.0
	return row
}

var _ ModelBackend = (*onnxBackend)(nil)
