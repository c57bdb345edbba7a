package core

import (
	"errors"
	"math"
	"testing"
)

func TestValidateContextBlock(t *testing.T) {
	tests := []struct {
		name    string
		block   *ContextBlock
		wantErr error
	}{
		{
			name:    "valid block",
			block:   &ContextBlock{Id: 1, Contents: "Hello world"},
			wantErr: nil,
		},
		{
			name:    "valid block with empty vector",
			block:   &ContextBlock{Id: 1, Contents: "Hello", Vector: nil},
			wantErr: nil,
		},
		{
			name:    "valid block with ID 0",
			block:   &ContextBlock{Id: 0, Contents: "Message"},
			wantErr: nil,
		},
		{
			name: "valid classified block",
			block: &ContextBlock{
				Contents: "Message",
				Scores:   &Scores{Relevance: 0.5, Superfluous: 0.25, Noise: 0.25},
			},
			wantErr: nil,
		},
		{
			name:    "nil block",
			block:   nil,
			wantErr: ErrInvalidContext,
		},
		{
			name:    "empty contents",
			block:   &ContextBlock{Id: 1, Contents: ""},
			wantErr: ErrEmptyContent,
		},
		{
			name: "negative score",
			block: &ContextBlock{
				Contents: "Message",
				Scores:   &Scores{Relevance: -0.1},
			},
			wantErr: ErrInvalidScores,
		},
		{
			name: "NaN score",
			block: &ContextBlock{
				Contents: "Message",
				Scores:   &Scores{Noise: math.NaN()},
			},
			wantErr: ErrInvalidScores,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContextBlock(tt.block)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateContextBlock() error = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Errorf("ValidateContextBlock() error = nil, want %v", tt.wantErr)
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateContextBlock() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   *Query
		wantErr error
	}{
		{
			name:    "valid query",
			query:   &Query{Id: "q1", Text: "What is machine learning?"},
			wantErr: nil,
		},
		{
			name:    "valid query without vector",
			query:   &Query{Text: "What is machine learning?", Vector: nil},
			wantErr: nil,
		},
		{
			name:    "nil query",
			query:   nil,
			wantErr: ErrInvalidQuery,
		},
		{
			name:    "empty text",
			query:   &Query{Id: "q1"},
			wantErr: ErrEmptyContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.query)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateQuery() error = %v, want nil", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateQuery() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckDimensions(t *testing.T) {
	if err := CheckDimensions(Embedding{1, 2}, Embedding{3, 4}); err != nil {
		t.Errorf("CheckDimensions() error = %v, want nil", err)
	}

	err := CheckDimensions(Embedding{1, 2, 3}, Embedding{1, 2})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("CheckDimensions() error = %v, want %v", err, ErrDimensionMismatch)
	}
}
