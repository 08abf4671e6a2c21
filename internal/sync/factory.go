package sync

import (
	"context"
	"fmt"

	config "github.com/fedibridge/skybridge/configs"
	"github.com/fedibridge/skybridge/internal/bluesky"
	"github.com/fedibridge/skybridge/internal/mastodon"
	"github.com/fedibridge/skybridge/internal/models"
	"github.com/fedibridge/skybridge/pkg/utils"
)

// clientFactory builds per-run authenticated clients from the stored
// account, decrypting credentials on the way.
type clientFactory struct {
	cfg config.Config
}

func NewClientFactory(cfg config.Config) ClientFactory {
	return &clientFactory{cfg: cfg}
}

func (f *clientFactory) SourceClient(ctx context.Context, account *models.Account) (SourceClient, error) {
	appPassword, err := utils.Decrypt(account.BlueskyAppPassword, []byte(f.cfg.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("decrypt app password: %w", err)
	}

	pds := account.BlueskyPDS
	if pds == "" {
		pds = f.cfg.BlueskyPDS
	}

	identifier := account.BlueskyHandle
	if identifier == "" {
		identifier = account.BlueskyDID
	}

	client := bluesky.NewClient(pds)
	if err := client.Login(ctx, identifier, appPassword); err != nil {
		return nil, fmt.Errorf("bluesky login: %w", err)
	}

	return client, nil
}

func (f *clientFactory) DestinationClient(ctx context.Context, account *models.Account) (DestinationClient, error) {
	token, err := utils.Decrypt(account.MastodonAccessToken, []byte(f.cfg.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("decrypt mastodon token: %w", err)
	}

	return mastodon.NewClient(account.MastodonServer, token), nil
}
