// Package analyzer implements the research query panel: a single free-text
// query posted to the remote analysis endpoint, with loading and error state
// for the view that renders it.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/greg-hellings/omnicognitor/pkg/api"
)

const (
	// AbstractPreviewLen is the number of characters of an abstract shown per publication.
	AbstractPreviewLen = 100

	// UnknownFailureMessage is shown when the service reports failure without a message.
	UnknownFailureMessage = "Analysis failed with an unknown error."

	// ConnectFailureMessage is shown when the service could not be reached.
	ConnectFailureMessage = "Failed to connect to the M2-3M analysis service. Please check the network connection."
)

var (
	// ErrEmptyQuery is returned when the query is blank; no request is made.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrBusy is returned when a submission is already in flight.
	ErrBusy = errors.New("an analysis is already in progress")
	// ErrAnalysisFailed wraps the user-facing message of a failed analysis.
	ErrAnalysisFailed = errors.New("analysis failed")
)

// Backend is the subset of the API client the panel needs.
type Backend interface {
	Analyze(ctx context.Context, query string) (*api.AnalysisEnvelope, error)
}

// State is a copy of the panel's view state.
type State struct {
	Query   string              `json:"query"`
	Loading bool                `json:"loading"`
	Result  *api.AnalysisResult `json:"result,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Panel owns the analyzer form state.
type Panel struct {
	backend Backend

	mu    sync.RWMutex
	state State
}

// NewPanel creates a panel posting to backend.
func NewPanel(backend Backend) *Panel {
	return &Panel{backend: backend}
}

// State returns a copy of the current state.
func (p *Panel) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyState(p.state)
}

func copyState(s State) State {
	if s.Result != nil {
		r := *s.Result
		r.Publications = append([]api.Publication(nil), s.Result.Publications...)
		s.Result = &r
	}
	return s
}

// Submit runs one analysis. A blank query returns ErrEmptyQuery and leaves
// the state untouched. While a submission is in flight further calls return
// ErrBusy. Failures are recorded in the state and also returned wrapped in
// ErrAnalysisFailed.
func (p *Panel) Submit(ctx context.Context, query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return ErrEmptyQuery
	}

	p.mu.Lock()
	if p.state.Loading {
		p.mu.Unlock()
		return ErrBusy
	}
	p.state = State{Query: query, Loading: true}
	p.mu.Unlock()

	var (
		result *api.AnalysisResult
		msg    string
	)

	env, err := p.backend.Analyze(ctx, trimmed)
	switch {
	case err != nil:
		slog.Error("Analysis request failed", "error", err)
		msg = ConnectFailureMessage
	case !env.Success:
		msg = env.Message
		if msg == "" {
			msg = UnknownFailureMessage
		}
		slog.Warn("Analysis rejected by service", "message", msg)
	default:
		result = env.Data
		if result != nil {
			slog.Info("Analysis complete", "publications", len(result.Publications))
		}
	}

	p.mu.Lock()
	p.state.Loading = false
	p.state.Result = result
	p.state.Error = msg
	p.mu.Unlock()

	if msg != "" {
		return fmt.Errorf("%w: %s", ErrAnalysisFailed, msg)
	}
	return nil
}

// ListItem formats a publication as shown in the referenced publications list:
// the title, then the first AbstractPreviewLen characters of the abstract and
// an ellipsis.
func ListItem(pub api.Publication) string {
	abstract := pub.Abstract
	if r := []rune(abstract); len(r) > AbstractPreviewLen {
		abstract = string(r[:AbstractPreviewLen])
	}
	return pub.Title + ": " + abstract + "..."
}
