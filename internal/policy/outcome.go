package policy

import (
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fyrsmithlabs/concord/internal/task"
	"github.com/fyrsmithlabs/concord/internal/validation"
)

// OutcomeEvaluation scores one completed task. Every score is in [0,1].
type OutcomeEvaluation struct {
	TaskID                   string    `json:"task_id" yaml:"task_id"`
	DecisionID               string    `json:"decision_id" yaml:"decision_id"`
	Strategy                 Strategy  `json:"strategy" yaml:"strategy"`
	Success                  bool      `json:"success" yaml:"success"`
	GoalAlignment            float64   `json:"goal_alignment" yaml:"goal_alignment"`
	NoveltyScore             float64   `json:"novelty_score" yaml:"novelty_score"`
	Feasibility              float64   `json:"feasibility" yaml:"feasibility"`
	ConstitutionalCompliance float64   `json:"constitutional_compliance" yaml:"constitutional_compliance"`
	OverallValue             float64   `json:"overall_value" yaml:"overall_value"`
	EvaluatedAt              time.Time `json:"evaluated_at" yaml:"evaluated_at"`
}

var (
	noveltyKeywords = []string{
		"novel", "new", "alternative", "creative", "innovative",
		"unconventional", "explore", "different", "unique", "experimental",
	}
	feasibilityKeywords = []string{
		"feasible", "practical", "implement", "step", "tested",
		"proven", "reliable", "plan", "concrete", "achievable",
	}
	stopWords = map[string]struct{}{
		"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
		"from": {}, "into": {}, "onto": {}, "about": {}, "your": {}, "have": {},
	}
)

// significantWords returns the distinct words of text longer than three
// letters, minus stop words.
func significantWords(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range task.Words(text) {
		if len(w) <= 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// keywordHits counts the distinct keywords present in words.
func keywordHits(words map[string]struct{}, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if _, ok := words[k]; ok {
			n++
		}
	}
	return n
}

// Evaluate scores res against the goal. input is the task text the result
// answers; the compliance score is the engine's aggregate confidence over it.
func Evaluate(goal, input string, res *task.Result, engine *validation.Engine, w OutcomeWeights) OutcomeEvaluation {
	ev := OutcomeEvaluation{TaskID: res.TaskID, Success: res.Success}

	outWords := make(map[string]struct{})
	for _, word := range task.Words(res.Output) {
		outWords[word] = struct{}{}
	}

	if goalWords := significantWords(goal); len(goalWords) > 0 {
		overlap := 0
		for word := range goalWords {
			if _, ok := outWords[word]; ok {
				overlap++
			}
		}
		ev.GoalAlignment = clamp01(float64(overlap) / float64(len(goalWords)) * res.Confidence)
	}

	ev.NoveltyScore = math.Min(float64(keywordHits(outWords, noveltyKeywords))*0.2, 0.8)
	if !res.Success {
		ev.NoveltyScore /= 2
	}

	ev.Feasibility = math.Min(float64(keywordHits(outWords, feasibilityKeywords))*0.15, 0.9)
	if res.Success {
		ev.Feasibility = math.Max(ev.Feasibility, 0.5)
	}

	verdict := engine.Validate(validation.PostInput(input, res.Output, validation.Metadata{
		TaskID:     res.TaskID,
		ExecutorID: res.ExecutorID,
	}))
	ev.ConstitutionalCompliance = verdict.AggregateConfidence

	total := w.GoalAlignment + w.Novelty + w.Feasibility + w.Compliance
	ev.OverallValue = clamp01((w.GoalAlignment*ev.GoalAlignment +
		w.Novelty*ev.NoveltyScore +
		w.Feasibility*ev.Feasibility +
		w.Compliance*ev.ConstitutionalCompliance) / total)
	return ev
}

// outcomeStore keeps evaluations keyed by task id. A bounded store evicts
// the least recently stored evaluation.
type outcomeStore struct {
	mu      sync.Mutex
	bounded *lru.Cache[string, OutcomeEvaluation]
	order   []string
	byID    map[string]OutcomeEvaluation
}

func newOutcomeStore(limit int) (*outcomeStore, error) {
	s := &outcomeStore{byID: make(map[string]OutcomeEvaluation)}
	if limit > 0 {
		cache, err := lru.New[string, OutcomeEvaluation](limit)
		if err != nil {
			return nil, err
		}
		s.bounded = cache
	}
	return s, nil
}

func (s *outcomeStore) put(ev OutcomeEvaluation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bounded != nil {
		s.bounded.Add(ev.TaskID, ev)
		return
	}
	if _, ok := s.byID[ev.TaskID]; ok {
		for i, id := range s.order {
			if id == ev.TaskID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.order = append(s.order, ev.TaskID)
	s.byID[ev.TaskID] = ev
}

func (s *outcomeStore) get(taskID string) (OutcomeEvaluation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bounded != nil {
		return s.bounded.Peek(taskID)
	}
	ev, ok := s.byID[taskID]
	return ev, ok
}

// values returns every evaluation, oldest first.
func (s *outcomeStore) values() []OutcomeEvaluation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bounded != nil {
		return s.bounded.Values()
	}
	out := make([]OutcomeEvaluation, len(s.order))
	for i, id := range s.order {
		out[i] = s.byID[id]
	}
	return out
}

func (s *outcomeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bounded != nil {
		return s.bounded.Len()
	}
	return len(s.order)
}

func (s *outcomeStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bounded != nil {
		s.bounded.Purge()
	}
	s.order = nil
	s.byID = make(map[string]OutcomeEvaluation)
}
