package connectors

import (
	"context"

	"go.uber.org/zap"

	"nfce/internal/storage"
)

type FetchService struct {
	db        *storage.DB
	connector MailConnector
	store     *MailStoreService
	log       *zap.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, log *zap.Logger) *FetchService {
	if log == nil {
		log = zap.L()
	}
	return &FetchService{
		db:        db,
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		log:       log,
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for _, msg := range messages {
		row, err := s.store.Store(msg)
		if err != nil {
			return FetchResult{}, err
		}
		stored++
		s.log.Debug("mail stored",
			zap.String("provider", msg.Provider),
			zap.String("message_id", msg.MessageID),
			zap.String("path", row.RawRef),
		)
	}

	s.log.Info("mail fetched", zap.String("label", label), zap.Int("fetched", len(messages)), zap.Int("stored", stored))
	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}
