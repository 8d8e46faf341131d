package presence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"presencego/internal/store"
)

const (
	KindJoined = "person-joined"
	KindLeft   = "person-left"

	defaultDisplayName = "unknown"
)

var (
	// ErrInvalidName rejects display names that would corrupt token
	// decoding.
	ErrInvalidName = errors.New("display name contains reserved separator")

	// ErrUnknownLeaver signals a disconnect for a connection with no
	// record: a lifecycle violation, reported and never retried.
	ErrUnknownLeaver = errors.New("unknown leaver")
)

// Notifier publishes a membership-changed event after a registry
// mutation has committed.
type Notifier interface {
	Emit(ctx context.Context, roomKey, kind, actor string, members []Member) error
}

type IPresenceService interface {
	Join(ctx context.Context, roomKey, connID, name string) ([]Member, error)
	Leave(ctx context.Context, roomKey, connID string) (string, []Member, error)
	Evict(ctx context.Context, roomKey string, m Member) ([]Member, error)
	Members(ctx context.Context, roomKey string) ([]Member, error)
	Touch(ctx context.Context, connID string) error
}

type presenceService struct {
	store    *store.ConnStore
	notifier Notifier
}

func NewPresenceService(cs *store.ConnStore, n Notifier) IPresenceService {
	return &presenceService{store: cs, notifier: n}
}

// Join creates the connection record, adds the membership token, and
// emits person-joined with the post-add snapshot. If the store fails no
// event is emitted and the caller is expected to reject the connection.
// If only the emit fails the mutation stands: the snapshot carried by
// the next membership change re-synchronizes every client.
func (svc *presenceService) Join(ctx context.Context, roomKey, connID, name string) ([]Member, error) {
	if name == "" {
		name = defaultDisplayName
	}
	if strings.Contains(name, TokenSeparator) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if err := svc.store.SaveName(ctx, connID, name); err != nil {
		return nil, err
	}
	tokens, err := svc.store.AddMember(ctx, roomKey, EncodeToken(name, connID))
	if err != nil {
		return nil, err
	}
	members := DecodeTokens(tokens)

	if err := svc.notifier.Emit(ctx, roomKey, KindJoined, name, members); err != nil {
		return nil, fmt.Errorf("notify join: %w", err)
	}
	return members, nil
}

// Leave deletes the connection record, retrieving the display name stored
// at join time, removes the matching token and emits person-left with the
// post-remove snapshot. A missing record fails with ErrUnknownLeaver and
// leaves the membership set untouched: without the stored name the token
// cannot be reconstructed.
func (svc *presenceService) Leave(ctx context.Context, roomKey, connID string) (string, []Member, error) {
	name, err := svc.store.GetDelName(ctx, connID)
	if err != nil {
		if errors.Is(err, store.ErrConnNotFound) {
			return "", nil, fmt.Errorf("%w: %s", ErrUnknownLeaver, connID)
		}
		return "", nil, err
	}

	tokens, err := svc.store.RemoveMember(ctx, roomKey, EncodeToken(name, connID))
	if err != nil {
		return "", nil, err
	}
	members := DecodeTokens(tokens)

	if err := svc.notifier.Emit(ctx, roomKey, KindLeft, name, members); err != nil {
		return name, members, fmt.Errorf("notify leave: %w", err)
	}
	return name, members, nil
}

// Evict removes a member whose connection record is already gone (lease
// expired, or the transport reported it unreachable after the record was
// reaped). The token is reconstructed from the member itself, so no
// record lookup is needed.
func (svc *presenceService) Evict(ctx context.Context, roomKey string, m Member) ([]Member, error) {
	tokens, err := svc.store.RemoveMember(ctx, roomKey, EncodeToken(m.Name, m.ConnectionID))
	if err != nil {
		return nil, err
	}
	members := DecodeTokens(tokens)

	if err := svc.notifier.Emit(ctx, roomKey, KindLeft, m.Name, members); err != nil {
		return members, fmt.Errorf("notify evict: %w", err)
	}
	return members, nil
}

func (svc *presenceService) Members(ctx context.Context, roomKey string) ([]Member, error) {
	tokens, err := svc.store.Members(ctx, roomKey)
	if err != nil {
		return nil, err
	}
	return DecodeTokens(tokens), nil
}

func (svc *presenceService) Touch(ctx context.Context, connID string) error {
	return svc.store.Touch(ctx, connID)
}
