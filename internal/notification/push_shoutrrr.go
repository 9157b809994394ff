package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/attendsync/attendance-monitor/internal/conf"
	"github.com/attendsync/attendance-monitor/internal/privacy"
)

// ShoutrrrProvider pushes notifications to every configured shoutrrr URL
// through a single sender.
type ShoutrrrProvider struct {
	urls        []string
	minPriority Priority
	timeout     time.Duration
	sender      *router.ServiceRouter
}

// NewShoutrrrProvider builds a provider from push settings. Call ValidateConfig before Send.
func NewShoutrrrProvider(settings conf.PushSettings) *ShoutrrrProvider {
	minPriority := Priority(settings.MinPriority)
	if minPriority == "" {
		minPriority = PriorityMedium
	}
	return &ShoutrrrProvider{
		urls:        slices.Clone(settings.URLs),
		minPriority: minPriority,
		timeout:     settings.Timeout,
	}
}

func (s *ShoutrrrProvider) GetName() string { return "shoutrrr" }

func (s *ShoutrrrProvider) Accepts(n *Notification) bool {
	return n.Priority.AtLeast(s.minPriority)
}

// ValidateConfig parses the URLs and creates the sender.
func (s *ShoutrrrProvider) ValidateConfig() error {
	if len(s.urls) == 0 {
		return fmt.Errorf("at least one URL is required")
	}
	sender, err := shoutrrr.CreateSender(s.urls...)
	if err != nil {
		return privacy.WrapError(err)
	}
	if s.timeout > 0 {
		sender.Timeout = s.timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	s.sender = sender
	return nil
}

func (s *ShoutrrrProvider) Send(ctx context.Context, n *Notification) error {
	if s.sender == nil {
		return fmt.Errorf("shoutrrr sender not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	if n.Title != "" {
		params.SetTitle(n.Title)
	}
	for _, err := range s.sender.Send(n.Message, &params) {
		if err != nil {
			return privacy.WrapError(err)
		}
	}
	return nil
}

func (s *ShoutrrrProvider) Close() error { return nil }
