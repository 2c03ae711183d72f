package chat

import (
	"context"
	"fmt"

	"github.com/tagus/enterprise-agents/pkg/ingest"
	"github.com/tagus/enterprise-agents/pkg/multitenancy"
)

func (s *Service) files(ctx context.Context, agent string) (context.Context, FileManager, error) {
	a, err := s.Agent(agent)
	if err != nil {
		return ctx, nil, err
	}
	if a.Files == nil {
		return ctx, nil, fmt.Errorf("%w: %s", ErrNoFileSupport, agent)
	}
	return multitenancy.WithOrgID(ctx, a.Profile.Name), a.Files, nil
}

// ProcessKBFile adds a file to the agent's public knowledge base
func (s *Service) ProcessKBFile(ctx context.Context, agent string, req ingest.FileRequest) (*ingest.Output, error) {
	ctx, files, err := s.files(ctx, agent)
	if err != nil {
		return nil, err
	}
	return files.ProcessKBFile(ctx, req)
}

// ProcessUserFile adds a user's shared file
func (s *Service) ProcessUserFile(ctx context.Context, agent string, req ingest.FileRequest) (*ingest.Output, error) {
	ctx, files, err := s.files(ctx, agent)
	if err != nil {
		return nil, err
	}
	return files.ProcessUserFile(ctx, req)
}

// PurgeKBFile removes a public knowledge base file
func (s *Service) PurgeKBFile(ctx context.Context, agent string, req ingest.PurgeRequest) (*ingest.Output, error) {
	ctx, files, err := s.files(ctx, agent)
	if err != nil {
		return nil, err
	}
	return files.PurgeKBFile(ctx, req)
}

// PurgeUserFiles removes one or all of a user's shared files
func (s *Service) PurgeUserFiles(ctx context.Context, agent string, req ingest.PurgeRequest) (*ingest.Output, error) {
	ctx, files, err := s.files(ctx, agent)
	if err != nil {
		return nil, err
	}
	return files.PurgeUserFiles(ctx, req)
}
