// Package config parses and validates CheckStream's declarative catalogs
// (spec §6.4): the model catalog, the classifier+pipeline catalog, and the
// proxy configuration embedded in the latter. Catalogs are YAML documents
// validated against a closed-tag JSON Schema before being decoded into the
// tagged-variant structs below — unknown architecture/aggregation/condition
// tags are rejected at load time in strict mode (spec DESIGN NOTES).
package config

// ModelSource is a tagged variant: exactly one of Local/Remote/Builtin
// fields is meaningful, selected by Type.
type ModelSource struct {
	Type string `yaml:"type" json:"type"` // "local" | "remote" | "builtin"

	// Local
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Remote
	ID       string `yaml:"id,omitempty" json:"id,omitempty"`
	Revision string `yaml:"revision,omitempty" json:"revision,omitempty"`

	// Builtin
	ImplementationName string `yaml:"implementation_name,omitempty" json:"implementation_name,omitempty"`
}

// Architecture closes over the set of supported model architectures
// (spec §6.4).
type Architecture struct {
	Type      string   `yaml:"type" json:"type"`
	NumLabels int      `yaml:"num_labels,omitempty" json:"num_labels,omitempty"`
	Labels    []string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// SupportedArchitectures is the closed set from spec §6.4; any other value
// is rejected at load time in strict mode.
var SupportedArchitectures = map[string]bool{
	"bert-sequence-classification":       true,
	"distilbert-sequence-classification": true,
	"roberta-sequence-classification":    true,
	"deberta-sequence-classification":    true,
	"sentence-transformer":               true,
}

// Quantization configures optional inference quantization.
type Quantization struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Method  string `yaml:"method,omitempty" json:"method,omitempty"`
	Dtype   string `yaml:"dtype,omitempty" json:"dtype,omitempty"`
}

// InferenceConfig configures how a model is run.
type InferenceConfig struct {
	Device       string        `yaml:"device,omitempty" json:"device,omitempty"` // cpu|gpu|metal
	MaxLength    int           `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	Threshold    float64       `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	BatchSize    int           `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	Quantization *Quantization `yaml:"quantization,omitempty" json:"quantization,omitempty"`
}

// PreprocessingStep is one entry from the closed set in spec §6.4.
type PreprocessingStep struct {
	Name      string `yaml:"name" json:"name"`
	MaxLength int    `yaml:"max_length,omitempty" json:"max_length,omitempty"` // for "truncate"
}

// SupportedPreprocessingSteps is the closed set from spec §6.4.
var SupportedPreprocessingSteps = map[string]bool{
	"lowercase":            true,
	"remove_urls":          true,
	"truncate":             true,
	"normalize_whitespace": true,
	"remove_emojis":        true,
}

// OutputConfig describes how model outputs are interpreted.
type OutputConfig struct {
	OutputType  string `yaml:"output_type,omitempty" json:"output_type,omitempty"` // single_label|multi_label|regression
	Aggregation string `yaml:"aggregation,omitempty" json:"aggregation,omitempty"` // max|mean|any
}

// ModelEntry is one entry in the model catalog, keyed by logical model name.
type ModelEntry struct {
	Source        ModelSource         `yaml:"source" json:"source"`
	Architecture  Architecture        `yaml:"architecture" json:"architecture"`
	Inference     InferenceConfig     `yaml:"inference" json:"inference"`
	Preprocessing []PreprocessingStep `yaml:"preprocessing,omitempty" json:"preprocessing,omitempty"`
	Output        *OutputConfig       `yaml:"output,omitempty" json:"output,omitempty"`
}

// ModelCatalog is the top-level model catalog document.
type ModelCatalog struct {
	Models map[string]ModelEntry `yaml:"models" json:"models"`
}

// ClassifierEntry describes one named classifier.
type ClassifierEntry struct {
	Type     string   `yaml:"type" json:"type"` // ml|pattern|builtin
	Model    string   `yaml:"model,omitempty" json:"model,omitempty"`
	Tier     string   `yaml:"tier,omitempty" json:"tier,omitempty"`
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	Score    float64  `yaml:"score,omitempty" json:"score,omitempty"`
	Label    string   `yaml:"label,omitempty" json:"label,omitempty"`

	// RefusalText is the canned message emitted when this classifier (as
	// the rule that triggered a Block or Terminate decision) gates the
	// response, keyed by rule id rather than hardcoded (SPEC_FULL.md §12,
	// "structured refusal text catalog").
	RefusalText string `yaml:"refusal_text,omitempty" json:"refusal_text,omitempty"`
	// AugmentText is the system-context string prepended to a request on
	// an Augment decision attributed to this classifier.
	AugmentText string `yaml:"augment_text,omitempty" json:"augment_text,omitempty"`
}

// StageEntry is the raw, YAML-shaped form of a pipeline.StageSpec (spec §3).
type StageEntry struct {
	Name        string          `yaml:"name" json:"name"`
	Kind        string          `yaml:"kind" json:"kind"` // single|parallel|sequential|conditional
	Classifier  string          `yaml:"classifier,omitempty" json:"classifier,omitempty"`
	Classifiers []string        `yaml:"classifiers,omitempty" json:"classifiers,omitempty"`
	Aggregation string          `yaml:"aggregation,omitempty" json:"aggregation,omitempty"`
	Condition   *ConditionEntry `yaml:"condition,omitempty" json:"condition,omitempty"`
	TimeoutMS   int64           `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
}

// ConditionEntry is the raw, YAML-shaped form of a pipeline.Condition.
type ConditionEntry struct {
	Kind           string  `yaml:"kind" json:"kind"`
	Threshold      float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	ClassifierName string  `yaml:"classifier_name,omitempty" json:"classifier_name,omitempty"`
}

// PipelineEntry is one named pipeline.
type PipelineEntry struct {
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Stages      []StageEntry `yaml:"stages" json:"stages"`
}

// SafetyThreshold gates the ingress phase's Block/Augment/Pass decision
// (spec §4.4).
type SafetyThreshold struct {
	Block  float64 `yaml:"block" json:"block"`
	Modify float64 `yaml:"modify" json:"modify"`
}

// StreamingConfig configures the per-request streaming buffer (spec §4.2).
type StreamingConfig struct {
	ContextChunks int    `yaml:"context_chunks" json:"context_chunks"`
	MaxBufferSize int    `yaml:"max_buffer_size" json:"max_buffer_size"`
	Delimiter     string `yaml:"delimiter" json:"delimiter"`
}

// PhasePipelines names a phase's primary and optional fallback pipeline
// (spec §4.5).
type PhasePipelines struct {
	Primary  string `yaml:"primary" json:"primary"`
	Fallback string `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// ProxyConfig is the Proxy Configuration entity from spec §3.
type ProxyConfig struct {
	ListenAddress        string          `yaml:"listen_address" json:"listen_address"`
	UpstreamBaseURL      string          `yaml:"upstream_base_url" json:"upstream_base_url"`
	DevMode              bool            `yaml:"dev_mode" json:"dev_mode"`
	Ingress              PhasePipelines  `yaml:"ingress" json:"ingress"`
	Midstream            PhasePipelines  `yaml:"midstream" json:"midstream"`
	Egress               PhasePipelines  `yaml:"egress" json:"egress"`
	SafetyThreshold      SafetyThreshold `yaml:"safety_threshold" json:"safety_threshold"`
	ChunkThreshold       float64         `yaml:"chunk_threshold" json:"chunk_threshold"`
	HardStopThreshold    *float64        `yaml:"hard_stop_threshold,omitempty" json:"hard_stop_threshold,omitempty"`
	FailOpen             bool            `yaml:"fail_open" json:"fail_open"`
	PipelineTimeoutMS    int64           `yaml:"pipeline_timeout_ms" json:"pipeline_timeout_ms"`
	Streaming            StreamingConfig `yaml:"streaming" json:"streaming"`
	AdminToken           string          `yaml:"admin_token,omitempty" json:"admin_token,omitempty"`
	AllowedUpstreamHosts []string        `yaml:"allowed_upstream_hosts,omitempty" json:"allowed_upstream_hosts,omitempty"`
	MidstreamDecimation  int             `yaml:"midstream_decimation,omitempty" json:"midstream_decimation,omitempty"`
	MaxRequestBodyBytes  int64           `yaml:"max_request_body_bytes,omitempty" json:"max_request_body_bytes,omitempty"`
	PreloadClassifiers   []string        `yaml:"preload_classifiers,omitempty" json:"preload_classifiers,omitempty"`
	EmergencyClassifier  string          `yaml:"emergency_classifier,omitempty" json:"emergency_classifier,omitempty"`
	// KnownTenants bounds which X-Tenant-Id values are logged verbatim
	// (spec §6.3: "only logged after being matched against a known set");
	// anything else is summarized as "unknown tenant" to prevent
	// enumeration.
	KnownTenants []string `yaml:"known_tenants,omitempty" json:"known_tenants,omitempty"`
}

// Catalog is the classifier+pipeline catalog document (spec §6.4).
type Catalog struct {
	Classifiers map[string]ClassifierEntry `yaml:"classifiers" json:"classifiers"`
	Pipelines   map[string]PipelineEntry   `yaml:"pipelines" json:"pipelines"`
	Proxy       ProxyConfig                `yaml:"proxy" json:"proxy"`
}

const (
	defaultMaxRequestBodyBytes = 10 << 20 // 10 MiB, spec §6.3
	maxCatalogFileBytes        = 1 << 20  // 1 MiB, spec §6.3
)

// applyDefaults fills zero-valued fields with the spec's stated defaults.
func (c *Catalog) applyDefaults() {
	if c.Proxy.MaxRequestBodyBytes == 0 {
		c.Proxy.MaxRequestBodyBytes = defaultMaxRequestBodyBytes
	}
}
