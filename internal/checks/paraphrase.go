package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/veris-ai/sentinel/internal/check"
)

// paraphraseTopic is a small sample topic with several paraphrased
// queries expected to retrieve an overlapping result set (S3, §4.2).
type paraphraseTopic struct {
	Name        string
	Paraphrases []string
}

// ParaphraseRobustness implements S3: checks that paraphrases of the same
// intent retrieve overlapping result sets above a similarity threshold.
type ParaphraseRobustness struct {
	OverlapThreshold float64
	Topics           []paraphraseTopic
}

// NewParaphraseRobustness builds S3 with the default 2-topic x 3-paraphrase
// sample (§4.2).
func NewParaphraseRobustness() *ParaphraseRobustness {
	return &ParaphraseRobustness{
		OverlapThreshold: 0.5,
		Topics: []paraphraseTopic{
			{
				Name: "on-call-rotation",
				Paraphrases: []string{
					"who is on call this week",
					"what is our on-call rotation schedule",
					"when does on-call hand off",
				},
			},
			{
				Name: "deploy-approvals",
				Paraphrases: []string{
					"how many approvals for a production deploy",
					"what is the review requirement before deploying",
					"who needs to sign off on a release",
				},
			},
		},
	}
}

func (p *ParaphraseRobustness) Run(ctx context.Context, rc check.RunContext) check.Result {
	start := time.Now()
	res := check.Result{CheckID: "S3-paraphrase-robustness", TraceID: rc.TraceID}

	if !rc.Credentials.HasAPIKey() {
		return credentialMissingResult(res, start)
	}

	retrievePath := rc.Endpoint("retrieve_context", "/tools/retrieve_context")
	headers := rc.Credentials.AuthHeaders()

	topicDetails := make([]map[string]any, 0, len(p.Topics))
	worstOverlap := 1.0
	for _, topic := range p.Topics {
		resultSets := make([]map[string]struct{}, 0, len(topic.Paraphrases))
		for _, query := range topic.Paraphrases {
			resp := rc.HTTP.TimedPost(ctx, rc.TargetBaseURL+retrievePath, retrieveContextRequest{
				Query: query, Namespace: fixtureNamespace, TopK: 5,
			}, rc.Timeout, headers)
			if resp.TransportError != nil {
				return errorResult(res, start, "retrieve_context transport error", map[string]any{
					"topic": topic.Name, "query": query, "error": resp.TransportError.Error(),
				})
			}
			var parsed retrieveContextResponse
			set := map[string]struct{}{}
			if err := json.Unmarshal(resp.Body, &parsed); err == nil {
				for _, r := range parsed.Results {
					set[r.ID] = struct{}{}
				}
			}
			resultSets = append(resultSets, set)
		}
		overlap := pairwiseOverlap(resultSets)
		if overlap < worstOverlap {
			worstOverlap = overlap
		}
		topicDetails = append(topicDetails, map[string]any{"topic": topic.Name, "overlap": overlap})
	}

	details := map[string]any{
		"topics":    topicDetails,
		"threshold": p.OverlapThreshold,
	}
	if worstOverlap < p.OverlapThreshold {
		return failResult(res, start, fmt.Sprintf("worst-case paraphrase overlap %.2f below threshold %.2f", worstOverlap, p.OverlapThreshold), details)
	}
	return passResult(res, start, fmt.Sprintf("paraphrase overlap holds (min %.2f)", worstOverlap), details)
}

// pairwiseOverlap returns the minimum Jaccard overlap across all pairs of
// result sets; an empty or singleton input is treated as fully consistent.
func pairwiseOverlap(sets []map[string]struct{}) float64 {
	if len(sets) < 2 {
		return 1.0
	}
	min := 1.0
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			o := jaccard(sets[i], sets[j])
			if o < min {
				min = o
			}
		}
	}
	return min
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}
