// Package llmtest provides a scripted llm.Provider for tests
package llmtest

import (
	"context"
	"sync"

	"github.com/Conceptual-Machines/algorhythm-api/internal/llm"
)

// StubProvider answers each request with GenerateFunc and records what it was asked
type StubProvider struct {
	ProviderName string
	GenerateFunc func(ctx context.Context, request *llm.GenerationRequest) (*llm.GenerationResponse, error)

	mu       sync.Mutex
	requests []*llm.GenerationRequest
}

// Returning creates a stub that always answers with the given raw output
func Returning(raw string) *StubProvider {
	return &StubProvider{
		GenerateFunc: func(context.Context, *llm.GenerationRequest) (*llm.GenerationResponse, error) {
			return &llm.GenerationResponse{RawOutput: raw}, nil
		},
	}
}

// Failing creates a stub that always fails with err
func Failing(err error) *StubProvider {
	return &StubProvider{
		GenerateFunc: func(context.Context, *llm.GenerationRequest) (*llm.GenerationResponse, error) {
			return nil, err
		},
	}
}

// Blocking creates a stub that waits until its context is done
func Blocking() *StubProvider {
	return &StubProvider{
		GenerateFunc: func(ctx context.Context, _ *llm.GenerationRequest) (*llm.GenerationResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

func (s *StubProvider) Name() string {
	if s.ProviderName == "" {
		return "stub"
	}
	return s.ProviderName
}

func (s *StubProvider) Generate(ctx context.Context, request *llm.GenerationRequest) (*llm.GenerationResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, request)
	s.mu.Unlock()

	if s.GenerateFunc == nil {
		return &llm.GenerationResponse{}, nil
	}
	return s.GenerateFunc(ctx, request)
}

// Calls returns how many requests the stub has received
func (s *StubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// LastRequest returns the most recent request, or nil
func (s *StubProvider) LastRequest() *llm.GenerationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

// Content returns the text of the first user message of a request
func Content(request *llm.GenerationRequest) string {
	if request == nil || len(request.InputArray) == 0 {
		return ""
	}
	content, _ := request.InputArray[0]["content"].(string)
	return content
}
