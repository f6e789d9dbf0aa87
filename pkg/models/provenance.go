package models

import (
	"context"
)

// ProvenanceSource represents how a workflow operation was triggered.
type ProvenanceSource string

const (
	SourceAPI       ProvenanceSource = "api"       // dashboard request
	SourceCallback  ProvenanceSource = "callback"  // external worker reporting back
	SourceScheduler ProvenanceSource = "scheduler" // cron job
	SourceMCP       ProvenanceSource = "mcp"       // operator via MCP tools
	SourceCLI       ProvenanceSource = "cli"       // operator via the command line
)

// String returns the string representation of a ProvenanceSource.
func (s ProvenanceSource) String() string {
	return string(s)
}

// IsValid returns true if the source is a valid provenance source.
func (s ProvenanceSource) IsValid() bool {
	switch s {
	case SourceAPI, SourceCallback, SourceScheduler, SourceMCP, SourceCLI:
		return true
	default:
		return false
	}
}

// IsSystem reports whether the operation runs without a human actor.
func (s ProvenanceSource) IsSystem() bool {
	return s == SourceCallback || s == SourceScheduler
}

// ProvenanceContext carries source and actor information through operations.
type ProvenanceContext struct {
	Source ProvenanceSource
	// UserID is the JWT subject of the acting user. Empty for system operations.
	UserID string
}

type provenanceKey struct{}

// WithProvenance returns a new context with provenance information attached.
func WithProvenance(ctx context.Context, p ProvenanceContext) context.Context {
	return context.WithValue(ctx, provenanceKey{}, p)
}

// GetProvenance retrieves provenance information from the context.
func GetProvenance(ctx context.Context) (ProvenanceContext, bool) {
	p, ok := ctx.Value(provenanceKey{}).(ProvenanceContext)
	return p, ok
}

// ProvenanceOrSystem returns the provenance in ctx, or a scheduler provenance
// with no user when none is attached.
func ProvenanceOrSystem(ctx context.Context) ProvenanceContext {
	if p, ok := GetProvenance(ctx); ok {
		return p
	}
	return ProvenanceContext{Source: SourceScheduler}
}

// WithAPIProvenance marks ctx as a dashboard request by userID.
func WithAPIProvenance(ctx context.Context, userID string) context.Context {
	return WithProvenance(ctx, ProvenanceContext{Source: SourceAPI, UserID: userID})
}

// WithCallbackProvenance marks ctx as a worker callback on behalf of userID.
func WithCallbackProvenance(ctx context.Context, userID string) context.Context {
	return WithProvenance(ctx, ProvenanceContext{Source: SourceCallback, UserID: userID})
}

// WithMCPProvenance marks ctx as an MCP tool invocation.
func WithMCPProvenance(ctx context.Context, userID string) context.Context {
	return WithProvenance(ctx, ProvenanceContext{Source: SourceMCP, UserID: userID})
}
