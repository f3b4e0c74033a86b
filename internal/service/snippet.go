// Package service contains the business logic layer: SnippetService holds
// the authorization policy for snippets, AuthService is the identity
// provider. Both receive their dependencies through constructors; there are
// no package-level singletons, so tests wire isolated instances.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/devtoolbox/internal/apperror"
	"github.com/sakif/devtoolbox/internal/model"
	"github.com/sakif/devtoolbox/internal/repository"
)

const (
	MaxTitleLength   = 200
	MaxContentLength = 100000 // ~100KB
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// SnippetService enforces the per-request authorization rules on top of the
// repository: existence is checked before visibility, visibility before any
// mutation.
type SnippetService struct {
	repo    repository.SnippetRepository
	baseURL string
	logger  *slog.Logger
}

// NewSnippetService creates a SnippetService. baseURL is the public origin
// used to derive share links (e.g. "https://devtoolbox.example.com").
func NewSnippetService(repo repository.SnippetRepository, baseURL string, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:    repo,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// CreateInput carries the caller-supplied snippet fields.
type CreateInput struct {
	Title    string
	Content  string
	Type     string
	IsPublic bool
}

// Create validates the input and stores a snippet for ownerID (empty for
// anonymous callers).
//
// Anonymous public snippets are rejected: a public record with no owner
// could never be deleted through the owner-authorization path, so the
// combination is refused up front rather than minting immortal data.
func (s *SnippetService) Create(ctx context.Context, in CreateInput, ownerID string) (*model.Snippet, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if in.Content == "" {
		return nil, apperror.ValidationFailed("content", "content is required")
	}
	if len(in.Content) > MaxContentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxContentLength))
	}
	if strings.TrimSpace(in.Type) == "" {
		return nil, apperror.ValidationFailed("type", "type is required")
	}
	if in.IsPublic && ownerID == "" {
		return nil, apperror.ValidationFailed("isPublic",
			"public snippets require a signed-in owner")
	}

	snippet := &model.Snippet{
		Title:    title,
		Content:  in.Content,
		Type:     strings.TrimSpace(in.Type),
		IsPublic: in.IsPublic,
		OwnerID:  ownerID,
	}

	if err := s.repo.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.attachShareURL(snippet)

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("type", snippet.Type),
		slog.Bool("public", snippet.IsPublic),
	)

	return snippet, nil
}

// GetByID returns a snippet if the requester may see it: always for public
// snippets, owner-only otherwise. Absence is reported before visibility, so
// a private snippet and a missing one are distinguishable (the id is the
// capability; hiding existence adds nothing once the id is known).
func (s *SnippetService) GetByID(ctx context.Context, id, requesterID string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}

	snippet, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !snippet.IsPublic && (requesterID == "" || requesterID != snippet.OwnerID) {
		return nil, apperror.Forbidden("you do not have access to this snippet")
	}

	s.attachShareURL(snippet)
	return snippet, nil
}

// ListOwn returns the requester's snippets, newest first.
func (s *SnippetService) ListOwn(ctx context.Context, requesterID string) ([]model.Snippet, error) {
	if requesterID == "" {
		return nil, apperror.Unauthorized("valid authentication required")
	}

	snippets, err := s.repo.ListByOwner(ctx, requesterID)
	if err != nil {
		s.logger.Error("failed to list snippets",
			slog.String("ownerID", requesterID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing snippets: %w", err)
	}

	for i := range snippets {
		s.attachShareURL(&snippets[i])
	}
	return snippets, nil
}

// ListPublic returns metadata for recent public snippets. Content never
// appears in the result.
func (s *SnippetService) ListPublic(ctx context.Context, typeFilter string, limit int) ([]model.SnippetMeta, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	metas, err := s.repo.ListPublic(ctx, strings.TrimSpace(typeFilter), limit)
	if err != nil {
		s.logger.Error("failed to list public snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing public snippets: %w", err)
	}
	return metas, nil
}

// Delete removes a snippet owned by requesterID.
func (s *SnippetService) Delete(ctx context.Context, id, requesterID string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "snippet ID is required")
	}
	if requesterID == "" {
		return apperror.Unauthorized("valid authentication required")
	}

	if err := s.repo.Delete(ctx, id, requesterID); err != nil {
		return err
	}

	s.logger.Info("snippet deleted",
		slog.String("id", id),
		slog.String("ownerID", requesterID),
	)
	return nil
}

// ShareURL derives the canonical share address for a snippet id. The id's
// unguessability is the only access control on the link.
func (s *SnippetService) ShareURL(id string) string {
	return s.baseURL + "/share/" + id
}

func (s *SnippetService) attachShareURL(snippet *model.Snippet) {
	if snippet.IsPublic {
		snippet.ShareURL = s.ShareURL(snippet.ID)
	}
}
