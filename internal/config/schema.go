package config

import (
	"fmt"

	"github.com/Skelf-Research/checkstream-sub000/internal/pipeline"
	"github.com/Skelf-Research/checkstream-sub000/pkg/ctxerr"
)

var supportedClassifierTypes = map[string]bool{"ml": true, "pattern": true, "builtin": true}

var supportedStageKinds = map[string]bool{
	string(pipeline.KindSingle):      true,
	string(pipeline.KindParallel):    true,
	string(pipeline.KindSequential):  true,
	string(pipeline.KindConditional): true,
}

var supportedAggregations = map[string]bool{
	string(pipeline.AggAll):             true,
	string(pipeline.AggMaxScore):        true,
	string(pipeline.AggMinScore):        true,
	string(pipeline.AggFirstPositive):   true,
	string(pipeline.AggUnanimous):       true,
	string(pipeline.AggWeightedAverage): true,
}

var supportedConditionKinds = map[string]bool{
	string(pipeline.CondAlways):              true,
	string(pipeline.CondAnyAboveThreshold):   true,
	string(pipeline.CondAllAboveThreshold):   true,
	string(pipeline.CondClassifierTriggered): true,
}

var supportedSourceTypes = map[string]bool{"local": true, "remote": true, "builtin": true}

// validateModelCatalog rejects unknown architecture/source/preprocessing
// tags, closing the open-ended shapes YAML would otherwise allow (spec
// DESIGN NOTES: "strict mode rejects unknown tags").
func validateModelCatalog(mc *ModelCatalog) error {
	for name, m := range mc.Models {
		if !supportedSourceTypes[m.Source.Type] {
			return fieldErr("model %q: unsupported source.type %q", name, m.Source.Type)
		}
		if m.Source.Type == "local" && m.Source.Path == "" {
			return fieldErr("model %q: source.type local requires source.path", name)
		}
		if m.Source.Type == "remote" && m.Source.ID == "" {
			return fieldErr("model %q: source.type remote requires source.id", name)
		}
		if m.Source.Type == "builtin" && m.Source.ImplementationName == "" {
			return fieldErr("model %q: source.type builtin requires source.implementation_name", name)
		}
		if !SupportedArchitectures[m.Architecture.Type] {
			return fieldErr("model %q: unsupported architecture.type %q", name, m.Architecture.Type)
		}
		for _, step := range m.Preprocessing {
			if !SupportedPreprocessingSteps[step.Name] {
				return fieldErr("model %q: unsupported preprocessing step %q", name, step.Name)
			}
		}
	}
	return nil
}

// validateCatalog rejects unknown classifier/stage/aggregation/condition
// tags and checks that every stage and proxy reference resolves within the
// same catalog document.
func validateCatalog(c *Catalog) error {
	for name, cl := range c.Classifiers {
		if !supportedClassifierTypes[cl.Type] {
			return fieldErr("classifier %q: unsupported type %q", name, cl.Type)
		}
		if cl.Type == "pattern" && len(cl.Patterns) == 0 {
			return fieldErr("classifier %q: type pattern requires patterns", name)
		}
	}

	for pname, p := range c.Pipelines {
		for _, stage := range p.Stages {
			if err := validateStage(pname, stage, c); err != nil {
				return err
			}
		}
	}

	if err := validatePhaseRef(c, "ingress", c.Proxy.Ingress); err != nil {
		return err
	}
	if err := validatePhaseRef(c, "midstream", c.Proxy.Midstream); err != nil {
		return err
	}
	if err := validatePhaseRef(c, "egress", c.Proxy.Egress); err != nil {
		return err
	}
	return nil
}

func validateStage(pipelineName string, s StageEntry, c *Catalog) error {
	if !supportedStageKinds[s.Kind] {
		return fieldErr("pipeline %q stage %q: unsupported kind %q", pipelineName, s.Name, s.Kind)
	}
	switch pipeline.StageKind(s.Kind) {
	case pipeline.KindSingle:
		if err := requireClassifier(pipelineName, s, c, s.Classifier); err != nil {
			return err
		}
	case pipeline.KindParallel:
		if !supportedAggregations[s.Aggregation] {
			return fieldErr("pipeline %q stage %q: unsupported aggregation %q", pipelineName, s.Name, s.Aggregation)
		}
		for _, cname := range s.Classifiers {
			if err := requireClassifier(pipelineName, s, c, cname); err != nil {
				return err
			}
		}
	case pipeline.KindSequential:
		for _, cname := range s.Classifiers {
			if err := requireClassifier(pipelineName, s, c, cname); err != nil {
				return err
			}
		}
	case pipeline.KindConditional:
		if s.Condition == nil {
			return fieldErr("pipeline %q stage %q: conditional stage requires condition", pipelineName, s.Name)
		}
		if !supportedConditionKinds[s.Condition.Kind] {
			return fieldErr("pipeline %q stage %q: unsupported condition.kind %q", pipelineName, s.Name, s.Condition.Kind)
		}
		if err := requireClassifier(pipelineName, s, c, s.Classifier); err != nil {
			return err
		}
	}
	return nil
}

func requireClassifier(pipelineName string, s StageEntry, c *Catalog, name string) error {
	if name == "" {
		return fieldErr("pipeline %q stage %q: missing classifier reference", pipelineName, s.Name)
	}
	if _, ok := c.Classifiers[name]; !ok {
		return fieldErr("pipeline %q stage %q: references undefined classifier %q", pipelineName, s.Name, name)
	}
	return nil
}

func validatePhaseRef(c *Catalog, phase string, pp PhasePipelines) error {
	if pp.Primary == "" {
		return fieldErr("proxy.%s: missing primary pipeline", phase)
	}
	if _, ok := c.Pipelines[pp.Primary]; !ok {
		return fieldErr("proxy.%s: primary pipeline %q is not defined", phase, pp.Primary)
	}
	if pp.Fallback != "" {
		if _, ok := c.Pipelines[pp.Fallback]; !ok {
			return fieldErr("proxy.%s: fallback pipeline %q is not defined", phase, pp.Fallback)
		}
	}
	return nil
}

func fieldErr(format string, args ...any) error {
	return ctxerr.New("config", "validate", fmt.Errorf(format, args...))
}

// toStageSpec converts the YAML-shaped StageEntry into pipeline.StageSpec.
func toStageSpec(e StageEntry) pipeline.StageSpec {
	spec := pipeline.StageSpec{
		Name:        e.Name,
		Kind:        pipeline.StageKind(e.Kind),
		Classifier:  e.Classifier,
		Classifiers: e.Classifiers,
		Aggregation: pipeline.Aggregation(e.Aggregation),
		Timeout:     e.TimeoutMS,
	}
	if e.Condition != nil {
		spec.Condition = pipeline.Condition{
			Kind:           pipeline.ConditionKind(e.Condition.Kind),
			Threshold:      e.Condition.Threshold,
			ClassifierName: e.Condition.ClassifierName,
		}
	}
	return spec
}

// ToPipelineSpec converts a named PipelineEntry into a pipeline.Spec.
func (p PipelineEntry) ToPipelineSpec(name string) pipeline.Spec {
	stages := make([]pipeline.StageSpec, len(p.Stages))
	for i, s := range p.Stages {
		stages[i] = toStageSpec(s)
	}
	return pipeline.Spec{Name: name, Description: p.Description, Stages: stages}
}
