package orchestrator

import (
	"time"

	"github.com/tidwall/sjson"
)

// MarshalReport renders the report as a flat JSON document suitable for
// export, assembling only the decision-relevant fields instead of the full
// nested result structures.
func (r *Report) MarshalReport() ([]byte, error) {
	doc := []byte(`{}`)
	var err error

	set := func(path string, value any) {
		if err != nil {
			return
		}
		doc, err = sjson.SetBytes(doc, path, value)
	}

	set("id", r.ID)
	set("subject", r.Subject)
	set("started_at", r.StartedAt.Format(time.RFC3339Nano))
	set("completed_at", r.CompletedAt.Format(time.RFC3339Nano))

	for domain, res := range r.Findings {
		set("findings."+domain+".status", string(res.Status))
		if res.Output != nil {
			set("findings."+domain+".output", res.Output)
		}
	}

	if r.Assessment != nil {
		set("assessment.status", string(r.Assessment.Status))
		set("assessment.decision", r.Assessment.Decision)
		set("assessment.confidence", r.Assessment.Confidence)
	}

	if r.Synthesis != nil {
		set("synthesis.status", string(r.Synthesis.Status))
		if r.Synthesis.Output != nil {
			set("synthesis.output", r.Synthesis.Output)
		}
	}

	return doc, err
}
