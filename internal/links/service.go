package links

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abdusco/shortly/internal"
	"github.com/abdusco/shortly/internal/code"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAttempts     = 5
	DefaultClickTimeout = 2 * time.Second
	maxURLLength        = 2048
)

// Store persists links. Implementations enforce code uniqueness themselves
// and must report a taken code as internal.ErrCodeExists and a missing one
// as internal.ErrLinkNotFound.
type Store interface {
	Insert(ctx context.Context, url, code string) (*internal.Link, error)
	FindByCode(ctx context.Context, code string) (*internal.Link, error)
	ListAll(ctx context.Context) ([]*internal.Link, error)
	DeleteByCode(ctx context.Context, code string) error
	// IncrementClick must be a single atomic update returning the updated link.
	IncrementClick(ctx context.Context, code string) (*internal.Link, error)
}

type Service struct {
	store        Store
	gen          code.Generator
	attempts     int
	clickTimeout time.Duration
}

type Option func(*Service)

func WithGenerator(gen code.Generator) Option {
	return func(s *Service) { s.gen = gen }
}

func WithAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.attempts = n
		}
	}
}

func WithClickTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.clickTimeout = d
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		gen:          code.NewGenerator(),
		attempts:     DefaultAttempts,
		clickTimeout: DefaultClickTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateRequest struct {
	URL  string `json:"url"`
	Code string `json:"code"`
}

// Create validates the request and stores a new link, generating a code when none is given.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*internal.Link, error) {
	rawURL := strings.TrimSpace(req.URL)
	requested := strings.TrimSpace(req.Code)

	if err := validate(rawURL, requested); err != nil {
		return nil, err
	}

	if requested != "" {
		link, err := s.store.Insert(ctx, rawURL, requested)
		if err != nil {
			return nil, err
		}
		return link, nil
	}

	return s.allocate(ctx, rawURL)
}

// allocate tries fresh candidates until an insert sticks. The store's unique
// constraint decides collisions, so there is no gap between check and insert.
func (s *Service) allocate(ctx context.Context, rawURL string) (*internal.Link, error) {
	for attempt := range s.attempts {
		candidate := s.gen.Generate(code.LengthForAttempt(attempt))

		link, err := s.store.Insert(ctx, rawURL, candidate)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, internal.ErrCodeExists) {
			return nil, err
		}

		log.Debug().Str("code", candidate).Int("attempt", attempt).Msg("generated code collided")
	}

	log.Warn().Int("attempts", s.attempts).Msg("code generation exhausted")
	return nil, internal.ErrCodeExhausted
}

// Resolution is the outcome of a redirect lookup. ClickErr reports a failed
// click update; the link is still usable when it is set.
type Resolution struct {
	Link     *internal.Link
	ClickErr error
}

// Resolve looks up the link for a redirect and records the click on a best-effort basis.
// Malformed and unknown codes both yield internal.ErrLinkNotFound.
func (s *Service) Resolve(ctx context.Context, c string) (Resolution, error) {
	if !code.IsValid(c) {
		return Resolution{}, internal.ErrLinkNotFound
	}

	link, err := s.store.FindByCode(ctx, c)
	if err != nil {
		return Resolution{}, err
	}

	clickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.clickTimeout)
	defer cancel()

	updated, err := s.recordClick(clickCtx, c)
	if err != nil {
		return Resolution{Link: link, ClickErr: fmt.Errorf("failed to record click: %w", err)}, nil
	}

	return Resolution{Link: updated}, nil
}

type clickResult struct {
	link *internal.Link
	err  error
}

// recordClick returns once the increment finishes or ctx expires, whichever
// comes first. A store that ignores ctx keeps running in the background.
func (s *Service) recordClick(ctx context.Context, c string) (*internal.Link, error) {
	done := make(chan clickResult, 1)
	go func() {
		link, err := s.store.IncrementClick(ctx, c)
		done <- clickResult{link: link, err: err}
	}()

	select {
	case res := <-done:
		return res.link, res.err
	case <-ctx.Done():
		select {
		case res := <-done:
			return res.link, res.err
		default:
			return nil, ctx.Err()
		}
	}
}

func (s *Service) RecordClick(ctx context.Context, c string) (*internal.Link, error) {
	if !code.IsValid(c) {
		return nil, internal.ErrLinkNotFound
	}
	return s.store.IncrementClick(ctx, c)
}

func (s *Service) Get(ctx context.Context, c string) (*internal.Link, error) {
	if !code.IsValid(c) {
		return nil, internal.ErrInvalidCode
	}
	return s.store.FindByCode(ctx, c)
}

func (s *Service) List(ctx context.Context) ([]*internal.Link, error) {
	return s.store.ListAll(ctx)
}

func (s *Service) Delete(ctx context.Context, c string) error {
	if !code.IsValid(c) {
		return internal.ErrInvalidCode
	}
	return s.store.DeleteByCode(ctx, c)
}

func validate(rawURL, requested string) error {
	verr := &internal.ValidationError{}

	if msg := checkURL(rawURL); msg != "" {
		verr.Add("url", msg)
	}

	if requested != "" && !code.IsValid(requested) {
		verr.Add("code", fmt.Sprintf("code must be %d-%d letters or numbers", code.MinLength, code.MaxLength))
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

func checkURL(rawURL string) string {
	if rawURL == "" {
		return "url is required"
	}
	if len(rawURL) > maxURLLength {
		return fmt.Sprintf("url must be at most %d characters", maxURLLength)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "enter a valid url"
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "url must start with http:// or https://"
	}
	if parsed.Host == "" {
		return "url must have a host"
	}
	return ""
}
