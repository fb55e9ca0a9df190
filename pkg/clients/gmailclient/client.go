package gmailclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jakechorley/volunteer-dispatch/internal/config"
	"github.com/jakechorley/volunteer-dispatch/pkg/utils"
)

// Client wraps the Gmail API client and implements services.Mailer
type Client struct {
	service  *gmail.Service
	ctx      context.Context
	userID   string
	sender   string
	interval time.Duration
	logger   *zap.Logger

	lastSendTime time.Time
	sendMutex    sync.Mutex
}

// NewClient creates a new Gmail client using an existing OAuth token.
// The token must carry the gmail.send scope.
func NewClient(ctx context.Context, oauthCfg *config.OAuthClientConfig, token *oauth2.Token, notifications config.Notifications, logger *zap.Logger) (*Client, error) {
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth config: %w", err)
	}

	httpClient := oauthConfig.Client(ctx, token)

	return NewClientWithOptions(ctx, notifications, logger, option.WithHTTPClient(httpClient))
}

// NewClientWithOptions creates a Gmail client from raw API options
func NewClientWithOptions(ctx context.Context, notifications config.Notifications, logger *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	userID := notifications.GmailUserID
	if userID == "" {
		userID = "me"
	}

	return &Client{
		service:  service,
		ctx:      ctx,
		userID:   userID,
		sender:   notifications.GmailSender,
		interval: EMAIL_INTERVAL,
		logger:   logger,
	}, nil
}

// SetInterval overrides the minimum gap between sends
func (c *Client) SetInterval(d time.Duration) {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	c.interval = d
}
