package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/0xtaosu/meme-memos/internal/models"
	"github.com/0xtaosu/meme-memos/internal/repository"
	"github.com/0xtaosu/meme-memos/internal/stream"
)

const maxTokenAddressLen = 128

// TokenMetadataProvider resolves token metadata. A nil result with a nil
// error means the token is unknown to the provider.
type TokenMetadataProvider interface {
	Lookup(ctx context.Context, tokenAddress string) (*models.TokenMetadata, error)
}

// Publisher receives change notifications after successful writes.
type Publisher interface {
	Publish(msg stream.Message)
}

// EventDraft is a caller-supplied event before it has an id or enrichment.
type EventDraft struct {
	Timestamp     time.Time
	Description   string
	Link          *string
	EnrichmentEnd *time.Time
	MinAmountUSD  *decimal.Decimal
}

type Deps struct {
	Store      repository.Repository
	Metadata   TokenMetadataProvider
	Feed       TransactionFeed
	Enrichment *EnrichmentService
	Publisher  Publisher
	Logger     *zap.Logger
}

type MemoService struct {
	store     repository.Repository
	metadata  TokenMetadataProvider
	feed      TransactionFeed
	enricher  *EnrichmentService
	publisher Publisher
	logger    *zap.Logger

	// NewID generates event ids.
	NewID func() string
}

func NewMemoService(d Deps) *MemoService {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoService{
		store:     d.Store,
		metadata:  d.Metadata,
		feed:      d.Feed,
		enricher:  d.Enrichment,
		publisher: d.Publisher,
		logger:    logger,
		NewID:     func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// CreateMemo looks the token up and upserts the memo. Nothing is written when
// the token is unknown or the provider fails.
func (s *MemoService) CreateMemo(ctx context.Context, tokenAddress string) (*models.Memo, error) {
	tokenAddress, err := normalizeAddress(tokenAddress)
	if err != nil {
		return nil, err
	}
	meta, err := s.lookup(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}
	memo, err := s.store.UpsertMemo(ctx, tokenAddress, repository.MetadataFields(*meta))
	if err != nil {
		return nil, err
	}
	s.logger.Info("memo upserted", zap.String("token_address", tokenAddress), zap.String("symbol", memo.Symbol))
	s.publish(stream.TypeMemoUpserted, memo, "")
	return memo, nil
}

// AppendEvent validates the draft, enriches it best-effort and appends it.
// The returned Enrichment says whether the snapshot was attached.
func (s *MemoService) AppendEvent(ctx context.Context, tokenAddress string, draft EventDraft) (*models.Memo, Enrichment, error) {
	tokenAddress, err := normalizeAddress(tokenAddress)
	if err != nil {
		return nil, Enrichment{}, err
	}
	if err := s.validateDraft(draft); err != nil {
		return nil, Enrichment{}, err
	}
	// Skip the paid query for a memo that does not exist.
	if _, err := s.store.GetMemo(ctx, tokenAddress); err != nil {
		return nil, Enrichment{}, err
	}

	enrichment := s.enricher.Enrich(ctx, tokenAddress, draft.Timestamp, EnrichOptions{
		End:          draft.EnrichmentEnd,
		MinAmountUSD: draft.MinAmountUSD,
	})

	ev := models.MemoEvent{
		ID:          s.NewID(),
		Timestamp:   draft.Timestamp.UTC(),
		Description: strings.TrimSpace(draft.Description),
		Link:        cleanLink(draft.Link),
	}
	enrichment.Attach(&ev)

	memo, err := s.store.AppendEvent(ctx, tokenAddress, ev)
	if err != nil {
		return nil, enrichment, err
	}

	s.logger.Info("event appended",
		zap.String("token_address", tokenAddress),
		zap.String("event_id", ev.ID),
		zap.String("enrichment", enrichment.Status),
	)
	s.publish(stream.TypeEventAppended, memo, ev.ID)
	return memo, enrichment, nil
}

func (s *MemoService) GetMemo(ctx context.Context, tokenAddress string) (*models.Memo, error) {
	tokenAddress, err := normalizeAddress(tokenAddress)
	if err != nil {
		return nil, err
	}
	return s.store.GetMemo(ctx, tokenAddress)
}

func (s *MemoService) ListMemos(ctx context.Context) ([]models.Memo, error) {
	return s.store.ListMemos(ctx)
}

func (s *MemoService) DeleteMemo(ctx context.Context, tokenAddress string) error {
	tokenAddress, err := normalizeAddress(tokenAddress)
	if err != nil {
		return err
	}
	deleted, err := s.store.DeleteMemo(ctx, tokenAddress)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("memo %s: %w", tokenAddress, ErrNotFound)
	}
	s.logger.Info("memo deleted", zap.String("token_address", tokenAddress))
	s.publish(stream.TypeMemoDeleted, &models.Memo{TokenAddress: tokenAddress}, "")
	return nil
}

func (s *MemoService) DeleteEvent(ctx context.Context, tokenAddress, eventID string) (*models.Memo, error) {
	tokenAddress, err := normalizeAddress(tokenAddress)
	if err != nil {
		return nil, err
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, fmt.Errorf("event id is required: %w", ErrValidation)
	}
	memo, err := s.store.DeleteEvent(ctx, tokenAddress, eventID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("event deleted", zap.String("token_address", tokenAddress), zap.String("event_id", eventID))
	s.publish(stream.TypeEventDeleted, memo, eventID)
	return memo, nil
}

func (s *MemoService) lookup(ctx context.Context, tokenAddress string) (*models.TokenMetadata, error) {
	if s.metadata == nil {
		return nil, fmt.Errorf("no metadata provider: %w", ErrUpstreamUnavailable)
	}
	meta, err := s.metadata.Lookup(ctx, tokenAddress)
	if err != nil {
		s.logger.Warn("token metadata lookup failed", zap.String("token_address", tokenAddress), zap.Error(err))
		return nil, fmt.Errorf("lookup %s: %w: %w", tokenAddress, ErrUpstreamUnavailable, err)
	}
	if meta == nil {
		return nil, fmt.Errorf("%s: %w", tokenAddress, ErrTokenNotFound)
	}
	return meta, nil
}

func (s *MemoService) validateDraft(d EventDraft) error {
	if d.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required: %w", ErrValidation)
	}
	if strings.TrimSpace(d.Description) == "" {
		return fmt.Errorf("description is required: %w", ErrValidation)
	}
	if d.MinAmountUSD != nil && !d.MinAmountUSD.IsPositive() {
		return fmt.Errorf("min amount must be positive: %w", ErrValidation)
	}
	if d.EnrichmentEnd != nil && s.enricher != nil {
		start, _ := s.enricher.Window(d.Timestamp, EnrichOptions{})
		if d.EnrichmentEnd.Before(start) {
			return fmt.Errorf("enrichment end is before the window start: %w", ErrValidation)
		}
	}
	return nil
}

func (s *MemoService) publish(kind string, memo *models.Memo, eventID string) {
	if s.publisher == nil || memo == nil {
		return
	}
	msg := stream.Message{Type: kind, TokenAddress: memo.TokenAddress, EventID: eventID}
	if kind != stream.TypeMemoDeleted {
		msg.Memo = memo
	}
	s.publisher.Publish(msg)
}

func normalizeAddress(tokenAddress string) (string, error) {
	tokenAddress = strings.TrimSpace(tokenAddress)
	if tokenAddress == "" {
		return "", fmt.Errorf("token address is required: %w", ErrValidation)
	}
	if len(tokenAddress) > maxTokenAddressLen {
		return "", fmt.Errorf("token address is too long: %w", ErrValidation)
	}
	return tokenAddress, nil
}

func cleanLink(link *string) *string {
	if link == nil {
		return nil
	}
	v := strings.TrimSpace(*link)
	if v == "" {
		return nil
	}
	return &v
}
