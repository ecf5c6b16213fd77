package admin

import (
	"encoding/json"
	"net/http"

	"github.com/Skelf-Research/checkstream-sub000/internal/config"
)

type stageSummary struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Classifiers []string `json:"classifiers"`
}

type pipelineSummary struct {
	Description string         `json:"description,omitempty"`
	Stages      []stageSummary `json:"stages"`
}

type phaseSummary struct {
	Primary  string `json:"primary"`
	Fallback string `json:"fallback,omitempty"`
}

type policiesResponse struct {
	PolicyVersion uint64                     `json:"policy_version"`
	Classifiers   []string                   `json:"classifiers"`
	Pipelines     map[string]pipelineSummary `json:"pipelines"`
	Ingress       phaseSummary               `json:"ingress"`
	Midstream     phaseSummary               `json:"midstream"`
	Egress        phaseSummary               `json:"egress"`
}

// handlePolicies implements GET /admin/policies: a read-only summary of the
// currently loaded classifier and pipeline catalog (spec §6.2), letting an
// operator confirm what took effect after a reload without exposing full
// classifier internals (patterns, model paths).
func (s *Server) handlePolicies(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	cat := snap.Catalog

	resp := policiesResponse{
		PolicyVersion: snap.Version,
		Pipelines:     make(map[string]pipelineSummary, len(cat.Pipelines)),
		Ingress:       phaseSummary{Primary: cat.Proxy.Ingress.Primary, Fallback: cat.Proxy.Ingress.Fallback},
		Midstream:     phaseSummary{Primary: cat.Proxy.Midstream.Primary, Fallback: cat.Proxy.Midstream.Fallback},
		Egress:        phaseSummary{Primary: cat.Proxy.Egress.Primary, Fallback: cat.Proxy.Egress.Fallback},
	}

	for name := range cat.Classifiers {
		resp.Classifiers = append(resp.Classifiers, name)
	}

	for name, p := range cat.Pipelines {
		resp.Pipelines[name] = pipelineSummary{
			Description: p.Description,
			Stages:      summarizeStages(p.Stages),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func summarizeStages(stages []config.StageEntry) []stageSummary {
	out := make([]stageSummary, len(stages))
	for i, s := range stages {
		classifiers := s.Classifiers
		if s.Classifier != "" {
			classifiers = append(classifiers, s.Classifier)
		}
		out[i] = stageSummary{Name: s.Name, Kind: s.Kind, Classifiers: classifiers}
	}
	return out
}
